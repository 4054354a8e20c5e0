package engine_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prasadmotors/dealerbot/internal/bot/engine"
	"github.com/prasadmotors/dealerbot/internal/bot/inventory"
	"github.com/prasadmotors/dealerbot/internal/bot/nlu"
	"github.com/prasadmotors/dealerbot/internal/bot/session"
)

// fakeCatalog serves a fixed listing and records outcomes.
type fakeCatalog struct {
	cars     []inventory.Car
	outcomes []recordedOutcome
}

type recordedOutcome struct {
	kind      string
	channelID string
	payload   map[string]string
}

func (c *fakeCatalog) SearchCars(ctx context.Context, q inventory.Query) ([]inventory.Car, error) {
	return c.cars, nil
}

func (c *fakeCatalog) RecordOutcome(ctx context.Context, kind, channelID string, payload map[string]string) error {
	c.outcomes = append(c.outcomes, recordedOutcome{kind: kind, channelID: channelID, payload: payload})
	return nil
}

func newTestEngine(catalog engine.Catalog) (*engine.Engine, *session.MemoryStore) {
	store := session.NewMemoryStore()
	policy := engine.StaticConfidencePolicy(engine.DefaultConfidenceGate)
	extractor := engine.NewExtractor(nil, nlu.NewFallbackExtractor(), nil)
	return engine.New(store, extractor, policy, catalog), store
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{cars: []inventory.Car{
		{ID: 1, Brand: "Hyundai", Model: "Verna", BodyType: "Sedan", Fuel: "Petrol", Year: 2021, Kms: 30000, Price: 850_000},
		{ID: 2, Brand: "Hyundai", Model: "Aura", BodyType: "Sedan", Fuel: "Petrol", Year: 2022, Kms: 18000, Price: 720_000},
	}}
}

func mustHandle(t *testing.T, e *engine.Engine, channelID, msg string) *engine.Response {
	t.Helper()
	resp, err := e.Handle(context.Background(), channelID, msg)
	if err != nil {
		t.Fatalf("Handle(%q): %v", msg, err)
	}
	return resp
}

func mustSession(t *testing.T, store *session.MemoryStore, channelID string) *session.Session {
	t.Helper()
	sess, err := store.Get(context.Background(), channelID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return sess
}

func TestGreetingShowsMainMenu(t *testing.T) {
	e, _ := newTestEngine(testCatalog())

	resp := mustHandle(t, e, "room", "hi")
	if resp == nil || len(resp.Options) != 4 {
		t.Fatalf("want 4 main-menu options, got %+v", resp)
	}
}

func TestEntrySkipAheadToResults(t *testing.T) {
	e, store := newTestEngine(testCatalog())

	resp := mustHandle(t, e, "room", "I want a Hyundai sedan under 8 lakhs")

	sess := mustSession(t, store, "room")
	if sess.Flow != session.FlowBrowse {
		t.Fatalf("flow = %v, want browse", sess.Flow)
	}
	if sess.Step != session.StepResults {
		t.Fatalf("step = %v, want results (budget, car_type, brand all satisfied)", sess.Step)
	}
	if sess.Slot(nlu.EntityBudget) != "₹5-10 Lakhs" {
		t.Fatalf("budget = %q", sess.Slot(nlu.EntityBudget))
	}
	if sess.Slot(nlu.EntityBrand) != "Hyundai" || sess.Slot(nlu.EntityCarType) != "Sedan" {
		t.Fatalf("slots = %v", sess.Slots)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("want 2 result cards, got %+v", resp)
	}
}

func TestMidFlowSkipAhead(t *testing.T) {
	e, store := newTestEngine(testCatalog())

	mustHandle(t, e, "room", "I want to buy a car")
	if sess := mustSession(t, store, "room"); sess.Step != session.StepBudget {
		t.Fatalf("step after intent = %v, want budget", sess.Step)
	}

	// One message satisfies three consecutive steps.
	mustHandle(t, e, "room", "a hyundai sedan under 8 lakhs please")
	if sess := mustSession(t, store, "room"); sess.Step != session.StepResults {
		t.Fatalf("step = %v, want results", sess.Step)
	}
}

func TestFullBookingFlow(t *testing.T) {
	catalog := testCatalog()
	e, store := newTestEngine(catalog)

	mustHandle(t, e, "room", "I want a Hyundai sedan under 8 lakhs")
	mustHandle(t, e, "room", "1") // pick the first car
	mustHandle(t, e, "room", "tomorrow")
	mustHandle(t, e, "room", "morning")
	mustHandle(t, e, "room", "Rahul")
	mustHandle(t, e, "room", "9876543210")
	mustHandle(t, e, "room", "yes") // has a license
	mustHandle(t, e, "room", "Showroom Visit")

	sess := mustSession(t, store, "room")
	if sess.Step != session.StepConfirm {
		t.Fatalf("step = %v, want confirm", sess.Step)
	}

	resp := mustHandle(t, e, "room", "yes")
	if sess := mustSession(t, store, "room"); sess.Step != session.StepDone {
		t.Fatalf("step = %v, want done", sess.Step)
	}
	if !strings.Contains(resp.Message, "Rahul") {
		t.Fatalf("summary should address the customer: %q", resp.Message)
	}

	if len(catalog.outcomes) != 1 {
		t.Fatalf("want 1 recorded outcome, got %d", len(catalog.outcomes))
	}
	out := catalog.outcomes[0]
	if out.kind != inventory.OutcomeTestDrive {
		t.Fatalf("outcome kind = %q", out.kind)
	}
	if out.payload["phone"] != "9876543210" {
		t.Fatalf("outcome payload = %v", out.payload)
	}
}

func TestExplicitChoiceChangeNeedsConfirmation(t *testing.T) {
	e, store := newTestEngine(testCatalog())

	mustHandle(t, e, "room", "I want to buy a car")
	mustHandle(t, e, "room", "Under ₹5 Lakhs") // explicit menu pick

	// A later extraction proposing a different budget must ask first.
	resp := mustHandle(t, e, "room", "actually I can stretch to 15 lakhs")
	sess := mustSession(t, store, "room")
	if sess.Slot(nlu.EntityBudget) != "Under ₹5 Lakhs" {
		t.Fatalf("explicit budget overwritten: %q", sess.Slot(nlu.EntityBudget))
	}
	if sess.Pending == nil {
		t.Fatal("expected pending confirmation")
	}
	if len(resp.Options) != 2 {
		t.Fatalf("want yes/no options, got %+v", resp)
	}

	// Approving applies the change.
	mustHandle(t, e, "room", "yes")
	sess = mustSession(t, store, "room")
	if sess.Pending != nil {
		t.Fatal("pending not cleared")
	}
	if sess.Slot(nlu.EntityBudget) != "₹10-20 Lakhs" {
		t.Fatalf("budget after approval = %q", sess.Slot(nlu.EntityBudget))
	}
}

func TestOffTopicQuestionMidBookingLeavesDateUnset(t *testing.T) {
	e, store := newTestEngine(testCatalog())

	mustHandle(t, e, "room", "I want a Hyundai sedan under 8 lakhs")
	mustHandle(t, e, "room", "1") // pick the first car

	// The date question is pending.  An unrelated question that happens to
	// contain an option word ("today") must not book anything.
	resp := mustHandle(t, e, "room", "what is the weather like today")

	sess := mustSession(t, store, "room")
	if got := sess.Slot(engine.SlotTestDriveDate); got != "" {
		t.Fatalf("interjection committed a test drive date: %q", got)
	}
	if sess.Step != session.StepTestDriveDate {
		t.Fatalf("step = %v, want test_drive_date unchanged", sess.Step)
	}
	// The redirect re-asks the date question.
	if resp == nil || len(resp.Options) == 0 {
		t.Fatalf("redirect should re-prompt with the date options: %+v", resp)
	}
}

func TestBudgetPhraseBeatsNearMissSuggestion(t *testing.T) {
	e, store := newTestEngine(testCatalog())

	mustHandle(t, e, "room", "I want to buy a car")

	// "under 8 lakhs" is an edit-distance near miss of "Under ₹5 Lakhs" but
	// the alias tables place it in the ₹5-10 bracket; extraction wins over
	// a did-you-mean exchange.
	mustHandle(t, e, "room", "under 8 lakhs")

	sess := mustSession(t, store, "room")
	if got := sess.Slot(nlu.EntityBudget); got != "₹5-10 Lakhs" {
		t.Fatalf("budget = %q, want ₹5-10 Lakhs", got)
	}
	if sess.Step != session.StepCarType {
		t.Fatalf("step = %v, want car_type", sess.Step)
	}
}

func TestUnmatchedTypoStillGetsSuggestions(t *testing.T) {
	e, store := newTestEngine(testCatalog())

	mustHandle(t, e, "room", "I want to buy a car")
	mustHandle(t, e, "room", "2") // budget by index

	resp := mustHandle(t, e, "room", "sedna")

	sess := mustSession(t, store, "room")
	if got := sess.Slot(nlu.EntityCarType); got != "" {
		t.Fatalf("typo auto-committed a body style: %q", got)
	}
	found := false
	for _, opt := range resp.Options {
		if opt == "Sedan" {
			found = true
		}
	}
	if !found {
		t.Fatalf("want Sedan suggested, got %+v", resp)
	}
}

func TestTerminalAcceptsOnlyFixedOptions(t *testing.T) {
	e, store := newTestEngine(testCatalog())

	mustHandle(t, e, "room", "About Us")

	// At the terminal, a fresh intent is re-prompted, not acted on.
	resp := mustHandle(t, e, "room", "I want to sell my car")
	sess := mustSession(t, store, "room")
	if sess.Flow != session.FlowAbout || sess.Step != session.StepDone {
		t.Fatalf("terminal state changed: flow=%v step=%v", sess.Flow, sess.Step)
	}
	if len(resp.Options) != 2 {
		t.Fatalf("want the two terminal options, got %+v", resp)
	}

	// Explore More starts fresh.
	resp = mustHandle(t, e, "room", "Explore More")
	if resp == nil || len(resp.Options) != 4 {
		t.Fatalf("Explore More should show the main menu, got %+v", resp)
	}
}

func TestOffTopicRedirectPreservesStep(t *testing.T) {
	e, store := newTestEngine(testCatalog())

	mustHandle(t, e, "room", "I want to buy a car")
	resp := mustHandle(t, e, "room", "what's the weather like today")

	sess := mustSession(t, store, "room")
	if sess.Step != session.StepBudget {
		t.Fatalf("step = %v, want budget unchanged", sess.Step)
	}
	if len(sess.Slots) != 0 {
		t.Fatalf("off-topic turn committed slots: %v", sess.Slots)
	}
	// The redirect re-asks the current question.
	if len(resp.Options) == 0 {
		t.Fatalf("redirect should re-prompt with options: %+v", resp)
	}
}

func TestRestartCommandResetsSession(t *testing.T) {
	e, store := newTestEngine(testCatalog())

	mustHandle(t, e, "room", "I want a Hyundai sedan under 8 lakhs")
	mustHandle(t, e, "room", "start over")

	sess := mustSession(t, store, "room")
	if sess.Flow != session.FlowNone || len(sess.Slots) != 0 {
		t.Fatalf("session not reset: flow=%v slots=%v", sess.Flow, sess.Slots)
	}
}

func TestEndedConversationStaysSilent(t *testing.T) {
	e, _ := newTestEngine(testCatalog())

	mustHandle(t, e, "room", "hi")
	mustHandle(t, e, "room", "bye")

	if resp := mustHandle(t, e, "room", "are you still there"); resp != nil {
		t.Fatalf("ended conversation replied: %+v", resp)
	}

	// A greeting revives it.
	if resp := mustHandle(t, e, "room", "hello"); resp == nil || len(resp.Options) != 4 {
		t.Fatalf("greeting should revive with the main menu, got %+v", resp)
	}
}

func TestValuationFlowRecordsLead(t *testing.T) {
	catalog := testCatalog()
	e, store := newTestEngine(catalog)

	mustHandle(t, e, "room", "I want to sell my car")
	if sess := mustSession(t, store, "room"); sess.Flow != session.FlowValuation {
		t.Fatalf("flow = %v, want valuation", sess.Flow)
	}

	mustHandle(t, e, "room", "Maruti Suzuki")
	mustHandle(t, e, "room", "Swift")
	mustHandle(t, e, "room", "2019")
	mustHandle(t, e, "room", "Petrol")
	mustHandle(t, e, "room", "45,000 km")
	mustHandle(t, e, "room", "1st Owner")
	mustHandle(t, e, "room", "Good")
	mustHandle(t, e, "room", "Priya")
	mustHandle(t, e, "room", "9812345670")
	mustHandle(t, e, "room", "Pune")

	sess := mustSession(t, store, "room")
	if sess.Step != session.StepDone {
		t.Fatalf("step = %v, want done; slots=%v", sess.Step, sess.Slots)
	}
	if len(catalog.outcomes) != 1 || catalog.outcomes[0].kind != inventory.OutcomeValuation {
		t.Fatalf("outcomes = %+v", catalog.outcomes)
	}
	if catalog.outcomes[0].payload["kms"] != "45000" {
		t.Fatalf("kms payload = %q", catalog.outcomes[0].payload["kms"])
	}
}
