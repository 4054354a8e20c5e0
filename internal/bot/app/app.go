// Package app assembles the dealerbot runtime: storage, NLU broker, dialogue
// engine, Matrix channel, and the operational HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prasadmotors/dealerbot/internal/bot/channel"
	"github.com/prasadmotors/dealerbot/internal/bot/config"
	"github.com/prasadmotors/dealerbot/internal/bot/engine"
	"github.com/prasadmotors/dealerbot/internal/bot/inventory"
	"github.com/prasadmotors/dealerbot/internal/bot/metrics"
	"github.com/prasadmotors/dealerbot/internal/bot/nlu"
	"github.com/prasadmotors/dealerbot/internal/bot/session"
	"github.com/prasadmotors/dealerbot/internal/bot/storage"
)

// Config holds application configuration.
type Config struct {
	// DatabasePath is the SQLite file; ":memory:" works for tests.
	DatabasePath string

	// Matrix holds the delivery-channel credentials.  When Homeserver is
	// empty the channel is disabled and the bot only serves the ops API
	// (useful for local engine testing).
	Matrix channel.Config

	// HTTPAddr is the TCP address for the ops HTTP server (e.g. ":8080").
	// When empty the server is disabled.
	HTTPAddr string

	// NLU provider settings.  When APIKey is empty the provider path is
	// disabled and every turn uses the deterministic fallback extractor.
	NLUAPIKey  string
	NLUBaseURL string
	NLUModel   string
}

// App is the assembled runtime.
type App struct {
	cfg Config

	db       *storage.DB
	sessions session.Store
	confs    config.Store
	knobs    *config.Knobs
	broker   *nlu.Broker
	eng      *engine.Engine
	turns    *metrics.TurnMetrics
	matrix   *channel.Client
	ops      *OpsServer
}

// New wires the application.  The database is opened (and migrated)
// immediately; network clients connect in Run.
func New(cfg Config) (*App, error) {
	db, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	confs := config.New(db)
	knobs := config.NewKnobs(confs)
	catalog := inventory.NewCatalog(db)
	sessions := session.NewSQLiteStore(db)

	var broker *nlu.Broker
	if cfg.NLUAPIKey != "" {
		provider := nlu.NewOpenAIProvider(nlu.ProviderConfig{
			APIKey:  cfg.NLUAPIKey,
			BaseURL: cfg.NLUBaseURL,
			Model:   cfg.NLUModel,
		})
		limits := knobLimits{knobs: knobs}
		broker = nlu.NewBroker(provider, limits, metrics.NewBrokerMetrics())
	} else {
		slog.Warn("no NLU API key configured; running on the deterministic fallback extractor only")
	}

	policy := engine.NewConfidencePolicy(func() float64 {
		return knobs.Float(config.KeyConfidenceGate, engine.DefaultConfidenceGate)
	})

	var brokerIface engine.Broker
	if broker != nil {
		brokerIface = broker
	}
	extractor := engine.NewExtractor(brokerIface, nlu.NewFallbackExtractor(), func() time.Duration {
		return knobs.Duration(config.KeySubmitTimeout, engine.DefaultSubmitTimeout)
	})

	eng := engine.New(sessions, extractor, policy, catalog)

	a := &App{
		cfg:      cfg,
		db:       db,
		sessions: sessions,
		confs:    confs,
		knobs:    knobs,
		broker:   broker,
		eng:      eng,
		turns:    metrics.NewTurnMetrics(),
	}

	if cfg.Matrix.Homeserver != "" {
		cfg.Matrix.DB = db.Conn()
		mc, err := channel.New(&cfg.Matrix)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.matrix = mc
	}

	if cfg.HTTPAddr != "" {
		a.ops = NewOpsServer(cfg.HTTPAddr, a)
	}

	return a, nil
}

// HandleTurn processes one inbound message.  It is the channel.TurnHandler
// for the Matrix client and the entry point the ops API's test endpoint
// uses.
func (a *App) HandleTurn(ctx context.Context, channelID, message string) (*engine.Response, error) {
	resp, err := a.eng.Handle(ctx, channelID, message)
	if err != nil {
		a.turns.TurnFailed()
		return nil, err
	}
	if sess, serr := a.sessions.Get(ctx, channelID); serr == nil {
		a.turns.TurnHandled(string(sess.Flow))
	}
	return resp, nil
}

// Run starts the channel and the ops server, then blocks until ctx is
// cancelled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if a.ops != nil {
		if err := a.ops.Start(ctx); err != nil {
			return err
		}
	}

	if a.matrix != nil {
		if err := a.matrix.Start(ctx, a.HandleTurn); err != nil {
			return fmt.Errorf("failed to start Matrix channel: %w", err)
		}
		slog.Info("Matrix channel started", "user", a.cfg.Matrix.UserID)
	}

	slog.Info("dealerbot running")
	<-ctx.Done()
	slog.Info("shutting down")
	a.Close()
	return nil
}

// Close releases all resources.
func (a *App) Close() {
	if a.matrix != nil {
		a.matrix.Stop()
	}
	if a.ops != nil {
		a.ops.Stop()
	}
	if a.broker != nil {
		a.broker.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Warn("failed to close database", "err", err)
		}
	}
}

// knobLimits adapts the config knobs to the broker's Limits interface so
// quota ceilings are operator-tunable without a restart.
type knobLimits struct {
	knobs *config.Knobs
}

func (l knobLimits) MaxPerMinute() int {
	return l.knobs.Int(config.KeyMaxPerMinute, nlu.DefaultMaxPerMinute)
}

func (l knobLimits) MaxPerDay() int {
	return l.knobs.Int(config.KeyMaxPerDay, nlu.DefaultMaxPerDay)
}
