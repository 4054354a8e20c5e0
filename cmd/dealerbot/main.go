// dealerbot is the Prasad Motors conversational assistant: it answers Matrix
// messages, walks buyers and sellers through guided flows, and records the
// resulting leads.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/prasadmotors/dealerbot/common/environment"
	"github.com/prasadmotors/dealerbot/common/version"
	"github.com/prasadmotors/dealerbot/internal/bot/app"
	"github.com/prasadmotors/dealerbot/internal/bot/channel"
)

func main() {
	// A local .env is a convenience for development; absence is not an error.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded environment from .env")
	}

	setupLogging()

	slog.Info("dealerbot starting", "version", version.Info())

	cfg := loadConfig()
	if cfg.Matrix.Homeserver != "" {
		if cfg.Matrix.UserID == "" || cfg.Matrix.AccessToken == "" {
			fmt.Fprintln(os.Stderr, "Error: MATRIX_USER_ID and MATRIX_ACCESS_TOKEN are required when MATRIX_HOMESERVER is set")
			os.Exit(1)
		}
	}

	bot, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dealerbot: %v\n", err)
		os.Exit(1)
	}

	if err := bot.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error running dealerbot: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging configures the process-wide slog default.
func setupLogging() {
	level := slog.LevelInfo
	if strings.EqualFold(environment.StringOr("LOG_LEVEL", ""), "debug") {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if strings.EqualFold(environment.StringOr("LOG_FORMAT", "json"), "text") {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

// loadConfig loads configuration from environment variables.
func loadConfig() app.Config {
	return app.Config{
		DatabasePath: environment.StringOr("DATABASE_PATH", "./dealerbot.db"),
		HTTPAddr:     environment.StringOr("HTTP_ADDR", ":8080"),
		Matrix: channel.Config{
			Homeserver:   environment.StringOr("MATRIX_HOMESERVER", ""),
			UserID:       environment.StringOr("MATRIX_USER_ID", ""),
			AccessToken:  environment.StringOr("MATRIX_ACCESS_TOKEN", ""),
			AllowedRooms: environment.StringSliceOr("MATRIX_ALLOWED_ROOMS", nil),
		},
		NLUAPIKey:  environment.StringOr("NLU_API_KEY", ""),
		NLUBaseURL: environment.StringOr("NLU_BASE_URL", ""),
		NLUModel:   environment.StringOr("NLU_MODEL", ""),
	}
}
