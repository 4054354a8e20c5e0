package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prasadmotors/dealerbot/internal/bot/nlu"
	"github.com/prasadmotors/dealerbot/internal/bot/session"
)

// DefaultSubmitTimeout bounds how long a turn waits on the broker before
// routing to the deterministic fallback.  Queue depth and the per-minute
// ceiling can delay completions well past this; the conversation must not
// block on them.
const DefaultSubmitTimeout = 4 * time.Second

// Broker is the slice of the request broker the extractor needs.  Satisfied
// by *nlu.Broker.
type Broker interface {
	Submit(ctx context.Context, req nlu.Request) (string, error)
	CanAccept() bool
}

// Extractor is the dual-path extraction front: provider via the broker when
// it is usable, deterministic fallback otherwise.  It never returns an
// error; every failure degrades to the fallback result.
type Extractor struct {
	broker   Broker
	fallback *nlu.FallbackExtractor
	// timeout is the per-call broker deadline; hot-readable.
	timeout func() time.Duration
}

// NewExtractor builds the dual-path extractor.  broker may be nil (fallback
// only); timeout may be nil for the default.
func NewExtractor(broker Broker, fallback *nlu.FallbackExtractor, timeout func() time.Duration) *Extractor {
	if fallback == nil {
		fallback = nlu.NewFallbackExtractor()
	}
	return &Extractor{broker: broker, fallback: fallback, timeout: timeout}
}

// Extract analyses one message in the session's flow context.
func (x *Extractor) Extract(ctx context.Context, sess *session.Session, message string) nlu.Extraction {
	if x.broker == nil || !x.broker.CanAccept() {
		return x.fallback.Extract(message)
	}

	d := DefaultSubmitTimeout
	if x.timeout != nil {
		if t := x.timeout(); t > 0 {
			d = t
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	raw, err := x.broker.Submit(callCtx, nlu.Request{
		SystemPrompt: extractionSystemPrompt(sess),
		UserPrompt:   message,
		Config: nlu.GenerationConfig{
			JSONMode:    true,
			Temperature: 0,
		},
	})
	if err != nil {
		// Quota, provider, and timeout errors all take the same silent
		// path: the deterministic extractor.  None of them is a user-facing
		// failure.
		slog.Warn("extraction: provider path failed, using fallback",
			"channel", sess.ChannelID, "err", err)
		return x.fallback.Extract(message)
	}

	ext, err := nlu.ParseExtraction(raw)
	if err != nil {
		slog.Warn("extraction: malformed provider output, using fallback",
			"channel", sess.ChannelID, "err", err)
		return x.fallback.Extract(message)
	}
	return ext
}

// extractionSystemPrompt instructs the model to emit only the extraction
// JSON.  The option lists anchor the closed-set fields so the model produces
// values the alias tables can resolve.
func extractionSystemPrompt(sess *session.Session) string {
	var sb strings.Builder
	sb.WriteString(`You extract structured fields from messages sent to a used-car dealership assistant.

Respond ONLY with a JSON object in this shape (omit fields you cannot determine):
{
  "intent":     "browse" | "valuation" | "contact" | "about" | "unknown",
  "entities":   {"<key>": "<value>", ...},
  "confidence": 0.0-1.0
}

Entity keys: budget, car_type, brand, model, year, fuel, kms, owner, condition, name, phone, location.
`)
	fmt.Fprintf(&sb, "Budget brackets: %s.\n", strings.Join(nlu.BudgetOptions(), "; "))
	fmt.Fprintf(&sb, "Known brands: %s.\n", strings.Join(nlu.BrandOptions(), ", "))
	fmt.Fprintf(&sb, "Body styles: %s.\n", strings.Join(nlu.CarTypeOptions(), ", "))
	if sess.Flow != session.FlowNone {
		fmt.Fprintf(&sb, "The user is currently in the %q flow at step %q.\n", sess.Flow, sess.Step)
	}
	sb.WriteString("Never invent values the user did not state. Set confidence low when unsure.\n")
	return sb.String()
}
