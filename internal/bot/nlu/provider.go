package nlu

import (
	"context"
	"errors"
	"time"
)

// ErrQuotaExceeded is returned by the Broker when a quota ceiling blocks the
// request, immediately for the daily ceiling, which the broker treats as a
// fast reject rather than an indefinite stall.  Callers fall back silently to
// the deterministic extractor; this error is never surfaced to the end user.
var ErrQuotaExceeded = errors.New("nlu: provider quota exceeded")

// ErrProvider is returned for upstream failures: auth errors, transport
// errors, empty or undecodable API responses.  Same silent-fallback path as
// ErrQuotaExceeded, logged once per occurrence.
var ErrProvider = errors.New("nlu: provider error")

// ErrMalformedOutput is returned when the provider answered but its text
// cannot be interpreted as an extraction payload.  Treated as an extraction
// failure (confidence 0), never a crash.
var ErrMalformedOutput = errors.New("nlu: malformed provider output")

// GenerationConfig tunes a single provider call.
type GenerationConfig struct {
	// MaxTokens bounds the completion length.  Zero means the provider
	// default (512).
	MaxTokens int
	// Temperature controls sampling; extraction calls want it near zero.
	Temperature float64
	// JSONMode asks the provider to emit a single JSON object.
	JSONMode bool
}

// Request is one unit of work for the NLU provider.  It is owned exclusively
// by the Broker from enqueue to completion; nothing beyond the opaque prompt
// text is shared across sessions.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	// ModelHint optionally overrides the configured model for this call.
	ModelHint string
	Config    GenerationConfig
	// EnqueuedAt is stamped by the Broker on Submit.
	EnqueuedAt time.Time
}

// Provider executes a single NLU call and returns the raw provider text.
// Implementations must be safe for concurrent use, although the Broker only
// ever dispatches one call at a time.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}
