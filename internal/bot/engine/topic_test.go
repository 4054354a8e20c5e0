package engine_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/prasadmotors/dealerbot/internal/bot/engine"
	"github.com/prasadmotors/dealerbot/internal/bot/nlu"
	"github.com/prasadmotors/dealerbot/internal/bot/session"
)

func newGuard() *engine.TopicGuard {
	return engine.NewTopicGuard(engine.NewExtractor(nil, nlu.NewFallbackExtractor(), nil))
}

func TestTopicGuardFlagsOffTopic(t *testing.T) {
	guard := newGuard()
	sess := browseSession("room")

	check := guard.Check(context.Background(), sess, "what's the weather like today")
	if !check.OffTopic {
		t.Fatal("weather chat in the budget step should be off-topic")
	}
	if check.Redirect == "" {
		t.Fatal("off-topic verdict must carry a redirect message")
	}
}

func TestTopicGuardAllowsDomainSignal(t *testing.T) {
	guard := newGuard()
	sess := browseSession("room")

	// An entity match is on-topic even mid-sentence.
	if check := guard.Check(context.Background(), sess, "my wife prefers a sedan actually"); check.OffTopic {
		t.Fatalf("entity-bearing message flagged: %+v", check)
	}

	// So is a flow-switch request.
	if check := guard.Check(context.Background(), sess, "actually I want to sell my car"); check.OffTopic {
		t.Fatalf("intent-bearing message flagged: %+v", check)
	}
}

func TestTopicGuardExemptsFreeFormSteps(t *testing.T) {
	guard := newGuard()
	sess := browseSession("room")
	sess.Step = session.StepName

	// A bare name carries no topical signal; it must never be "redirected".
	if check := guard.Check(context.Background(), sess, "Chaitanya"); check.OffTopic {
		t.Fatalf("name reply flagged off-topic: %+v", check)
	}
}

func TestTopicGuardHasNoSideEffects(t *testing.T) {
	guard := newGuard()
	sess := browseSession("room")
	sess.SetSlot(nlu.EntityBudget, "₹5-10 Lakhs")
	sess.MarkExplicit(nlu.EntityBudget)
	before := sess.Clone()

	guard.Check(context.Background(), sess, "did you watch the match yesterday")

	if !reflect.DeepEqual(before, sess) {
		t.Fatalf("guard mutated the session:\nbefore %+v\nafter  %+v", before, sess)
	}
}
