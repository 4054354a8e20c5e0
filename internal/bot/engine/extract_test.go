package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prasadmotors/dealerbot/internal/bot/engine"
	"github.com/prasadmotors/dealerbot/internal/bot/nlu"
)

// scriptedBroker returns a fixed response (or error) and reports a fixed
// CanAccept answer.
type scriptedBroker struct {
	accept bool
	text   string
	err    error
	calls  int
}

func (b *scriptedBroker) Submit(ctx context.Context, req nlu.Request) (string, error) {
	b.calls++
	return b.text, b.err
}

func (b *scriptedBroker) CanAccept() bool { return b.accept }

func TestExtractorUsesProviderResult(t *testing.T) {
	broker := &scriptedBroker{
		accept: true,
		text:   `{"intent": "browse", "entities": {"brand": "hyundai"}, "confidence": 0.92}`,
	}
	x := engine.NewExtractor(broker, nlu.NewFallbackExtractor(), nil)

	ext := x.Extract(context.Background(), browseSession("room"), "something a model understood")
	if ext.Intent != nlu.IntentBrowse || ext.Confidence != 0.92 {
		t.Fatalf("provider result not used: %+v", ext)
	}
	if ext.Entities[nlu.EntityBrand] != "Hyundai" {
		t.Fatalf("provider entity not canonicalized: %+v", ext.Entities)
	}
}

func TestExtractorSkipsBrokerWhenOverQuota(t *testing.T) {
	broker := &scriptedBroker{accept: false}
	x := engine.NewExtractor(broker, nlu.NewFallbackExtractor(), nil)

	ext := x.Extract(context.Background(), browseSession("room"), "a hyundai sedan please")
	if broker.calls != 0 {
		t.Fatal("broker must not be consulted when it cannot accept")
	}
	if ext.Entities[nlu.EntityBrand] != "Hyundai" {
		t.Fatalf("fallback path not taken: %+v", ext)
	}
}

func TestExtractorFallsBackOnBrokerError(t *testing.T) {
	broker := &scriptedBroker{accept: true, err: errors.New("boom")}
	x := engine.NewExtractor(broker, nlu.NewFallbackExtractor(), nil)

	ext := x.Extract(context.Background(), browseSession("room"), "a hyundai sedan please")
	if ext.Entities[nlu.EntityBrand] != "Hyundai" || ext.Confidence != nlu.FallbackEntityConfidence {
		t.Fatalf("fallback path not taken: %+v", ext)
	}
}

func TestExtractorFallsBackOnMalformedOutput(t *testing.T) {
	broker := &scriptedBroker{accept: true, text: "I am not JSON."}
	x := engine.NewExtractor(broker, nlu.NewFallbackExtractor(), nil)

	ext := x.Extract(context.Background(), browseSession("room"), "sell my car")
	if ext.Intent != nlu.IntentValuation {
		t.Fatalf("fallback path not taken: %+v", ext)
	}
}
