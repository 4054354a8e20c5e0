package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prasadmotors/dealerbot/common/trace"
	"github.com/prasadmotors/dealerbot/internal/bot/inventory"
	"github.com/prasadmotors/dealerbot/internal/bot/nlu"
	"github.com/prasadmotors/dealerbot/internal/bot/session"
)

// Catalog is the slice of the inventory layer the engine needs.  Satisfied
// by *inventory.Catalog.
type Catalog interface {
	SearchCars(ctx context.Context, q inventory.Query) ([]inventory.Car, error)
	RecordOutcome(ctx context.Context, kind, channelID string, payload map[string]string) error
}

// stepHandler holds the operations of one flow step.
//
// menu, when set, describes the step's closed option set; the engine matches
// the raw message against it itself.  An unambiguous pick (exact text or
// menu index) settles the step before extraction; containment matches and
// suggestions are only applied after extraction commits nothing.
//
// consume handles direct answers the option matcher cannot: yes/no
// vocabulary, free-form input.  It runs before extraction and must only
// accept input that plausibly answers the step.  Its results:
//   - (nil, true): the slot was committed; the engine advances.
//   - (resp, true): the message was for this step but needs another exchange
//     (validation error, pending confirmation); resp is sent as-is.
//   - (_, false): the message is not an answer to this step; the engine
//     falls through to NLU extraction.
type stepHandler struct {
	prompt  func(ctx context.Context, e *Engine, sess *session.Session) *Response
	menu    *menuSpec
	consume func(ctx context.Context, e *Engine, sess *session.Session, msg string) (*Response, bool)
}

var handlers = map[session.Flow]map[session.Step]stepHandler{
	session.FlowBrowse:    browseHandlers,
	session.FlowValuation: valuationHandlers,
	session.FlowContact:   contactHandlers,
	session.FlowAbout:     aboutHandlers,
}

// Main-menu entry points shown to a fresh conversation.
var mainMenuOptions = []string{
	"Browse Used Cars",
	"Sell My Car",
	"Contact Us",
	"About Us",
}

var menuFlows = map[string]session.Flow{
	"Browse Used Cars": session.FlowBrowse,
	"Sell My Car":      session.FlowValuation,
	"Contact Us":       session.FlowContact,
	"About Us":         session.FlowAbout,
}

// Options shown once a flow reaches its terminal summary.
var terminalOptions = []string{"Explore More", "End Conversation"}

// Engine is the per-turn dialogue state machine.  One Handle call processes
// exactly one inbound message; callers must serialize turns per channel
// address.
type Engine struct {
	store     session.Store
	extractor *Extractor
	slots     *SlotExtractor
	guard     *TopicGuard
	catalog   Catalog
	policy    ConfidencePolicy
}

// New wires the engine.  catalog may be nil in tests; the results step then
// renders an empty listing.
func New(st session.Store, extractor *Extractor, policy ConfidencePolicy, catalog Catalog) *Engine {
	return &Engine{
		store:     st,
		extractor: extractor,
		slots:     NewSlotExtractor(policy),
		guard:     NewTopicGuard(extractor),
		catalog:   catalog,
		policy:    policy,
	}
}

// Handle processes one inbound message for a channel address and returns the
// reply.  A nil response with a nil error means "send nothing" (the
// conversation has explicitly ended).
func (e *Engine) Handle(ctx context.Context, channelID, message string) (*Response, error) {
	sess, err := e.store.Get(ctx, channelID)
	if errors.Is(err, session.ErrNotFound) {
		sess = session.New(channelID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	resp := e.process(ctx, sess, strings.TrimSpace(message))

	sess.UpdatedAt = time.Now().UTC()
	if err := e.store.Put(ctx, sess); err != nil {
		// The reply still goes out; losing one turn of state beats losing
		// the conversation.
		slog.Error("failed to persist session", "channel", channelID, "trace", trace.FromContext(ctx), "err", err)
	}
	return resp, nil
}

func (e *Engine) process(ctx context.Context, sess *session.Session, msg string) *Response {
	// Global commands come before everything, including pending
	// confirmations: the user can always bail out.
	if isRestart(msg) {
		sess.Reset()
		return e.welcome()
	}

	if sess.ConversationEnded {
		// A greeting revives an ended conversation; anything else stays
		// silent as promised.
		if isGreeting(msg) {
			sess.Reset()
			return e.welcome()
		}
		return nil
	}

	if sess.Pending != nil {
		return e.resolvePending(ctx, sess, msg)
	}

	if isGoodbye(msg) {
		sess.ConversationEnded = true
		return text("Thanks for visiting Prasad Motors! Say hi anytime you want to talk cars. 👋")
	}

	if sess.Flow == session.FlowNone {
		return e.handleEntry(ctx, sess, msg)
	}
	if sess.Step == session.StepDone {
		return e.handleTerminal(ctx, sess, msg)
	}
	return e.handleTurn(ctx, sess, msg)
}

// handleEntry routes the first meaningful message of a conversation.
func (e *Engine) handleEntry(ctx context.Context, sess *session.Session, msg string) *Response {
	if msg == "" || isGreeting(msg) {
		return e.welcome()
	}

	// A direct menu pick skips extraction entirely.
	if m := MatchOption(msg, mainMenuOptions); m.Matched {
		return e.startFlow(ctx, sess, menuFlows[m.Option], nil)
	}

	ext := e.extractor.Extract(ctx, sess, msg)
	if flow, ok := intentFlow(ext.Intent); ok {
		return e.startFlow(ctx, sess, flow, &ext)
	}

	// No intent keyword, but car-shopping entities at the very start of a
	// conversation ("hyundai sedan under 8 lakhs") imply browsing.
	if e.policy.Admit(ext.Confidence) {
		for _, key := range []string{nlu.EntityBudget, nlu.EntityCarType, nlu.EntityBrand} {
			if _, ok := ext.Entities[key]; ok {
				return e.startFlow(ctx, sess, session.FlowBrowse, &ext)
			}
		}
	}

	r := e.welcome()
	r.Message = "I can help with any of these. What would you like to do?"
	return r
}

// startFlow enters flow, applies any extraction from the triggering message
// so already-stated slots are skipped, and prompts the first unsatisfied
// step.
func (e *Engine) startFlow(ctx context.Context, sess *session.Session, flow session.Flow, ext *nlu.Extraction) *Response {
	sess.Flow = flow
	if ext != nil {
		e.slots.Commit(sess, ext.Entities, ext.Confidence)
	}
	sess.Step = firstUnsatisfied(flow, sess)
	if sess.Step == session.StepDone {
		return e.completeFlow(ctx, sess)
	}
	return e.promptStep(ctx, sess)
}

// handleTurn processes a message inside an active flow.
func (e *Engine) handleTurn(ctx context.Context, sess *session.Session, msg string) *Response {
	sess.Step = firstUnsatisfied(sess.Flow, sess)
	if sess.Step == session.StepDone {
		return e.completeFlow(ctx, sess)
	}

	h := handlers[sess.Flow][sess.Step]
	var m MatchResult
	if h.menu != nil {
		m = MatchOption(msg, h.menu.options(ctx, e, sess))
	}

	// An unambiguous pick from the step's own menu (exact text or index)
	// settles the step without an NLU round trip.
	if h.menu != nil && m.Matched && m.Confidence >= 1 {
		commitOption(sess, h.menu.slot, m.Option)
		return e.advance(ctx, sess)
	}
	if h.consume != nil {
		if resp, handled := h.consume(ctx, e, sess, msg); handled {
			if resp != nil {
				return resp
			}
			return e.advance(ctx, sess)
		}
	}

	ext := e.extractor.Extract(ctx, sess, msg)

	// A message with any fuzzy affinity to the current menu is an answer
	// attempt, not an interjection; only the rest is put to the guard.
	if !m.Matched && len(m.Suggestions) == 0 {
		if check := e.guard.Assess(sess, ext); check.OffTopic && check.Confidence >= offTopicActionBar {
			// Advisory verdict acted on here; session state is untouched so
			// the flow resumes exactly where it was.
			r := e.promptStep(ctx, sess)
			if r != nil {
				r.Message = check.Redirect + "\n\n" + r.Message
			}
			return r
		}
	}

	// An admitted intent for a different flow switches flows.  Shared slots
	// (brand, name, phone) carry over; the new flow resumes at its first
	// unsatisfied step.
	if flow, ok := intentFlow(ext.Intent); ok && flow != sess.Flow && e.policy.Admit(ext.Confidence) {
		return e.startFlow(ctx, sess, flow, &ext)
	}

	next, changed := e.slots.Commit(sess, ext.Entities, ext.Confidence)
	if sess.Pending != nil {
		return pendingPrompt(sess)
	}
	if changed {
		sess.Step = next
		if next == session.StepDone {
			return e.completeFlow(ctx, sess)
		}
		return e.promptStep(ctx, sess)
	}

	// Extraction committed nothing.  A containment match on the step's menu
	// is good enough now, and near misses come back as suggestions.
	if h.menu != nil {
		if m.Matched && m.Confidence >= matchConfidenceBar {
			commitOption(sess, h.menu.slot, m.Option)
			return e.advance(ctx, sess)
		}
		if len(m.Suggestions) > 0 {
			return withOptions("Hmm, I didn't quite catch that. Did you mean one of these?", m.Suggestions)
		}
	}

	r := e.promptStep(ctx, sess)
	if r != nil {
		r.Message = "Sorry, I didn't quite get that.\n\n" + r.Message
	}
	return r
}

// advance recomputes the current step after a consume committed its slot.
func (e *Engine) advance(ctx context.Context, sess *session.Session) *Response {
	if sess.Pending != nil {
		return pendingPrompt(sess)
	}
	sess.Step = firstUnsatisfied(sess.Flow, sess)
	if sess.Step == session.StepDone {
		return e.completeFlow(ctx, sess)
	}
	return e.promptStep(ctx, sess)
}

// promptStep renders the question for the session's current step.
func (e *Engine) promptStep(ctx context.Context, sess *session.Session) *Response {
	h, ok := handlers[sess.Flow][sess.Step]
	if !ok || h.prompt == nil {
		slog.Error("no prompt for step", "flow", sess.Flow, "step", sess.Step)
		sess.Reset()
		return e.welcome()
	}
	return h.prompt(ctx, e, sess)
}

// handleTerminal processes messages after a flow summary was delivered.
func (e *Engine) handleTerminal(ctx context.Context, sess *session.Session, msg string) *Response {
	if m := MatchOption(msg, terminalOptions); m.Matched {
		switch m.Option {
		case "End Conversation":
			sess.ConversationEnded = true
			return text("Thanks for visiting Prasad Motors! Say hi anytime you want to talk cars. 👋")
		default:
			sess.Reset()
			return e.welcome()
		}
	}

	// Only the two fixed options (or a global command, handled earlier) are
	// accepted at a terminal; anything else is a re-prompt.
	return withOptions("We're all done here. What next?", terminalOptions)
}

// resolvePending applies or discards the proposed slot change.
func (e *Engine) resolvePending(ctx context.Context, sess *session.Session, msg string) *Response {
	p := sess.Pending
	switch {
	case isPositive(msg):
		sess.Pending = nil
		sess.SetSlot(p.Slot, p.Proposed)
		// Approving the change is itself an explicit choice.
		sess.MarkExplicit(p.Slot)
		sess.Step = firstUnsatisfied(sess.Flow, sess)
		if sess.Step == session.StepDone {
			return e.completeFlow(ctx, sess)
		}
		r := e.promptStep(ctx, sess)
		if r != nil {
			r.Message = fmt.Sprintf("Done, %s updated to %s.\n\n", slotLabel(p.Slot), p.Proposed) + r.Message
		}
		return r
	case isNegative(msg):
		sess.Pending = nil
		r := e.promptStep(ctx, sess)
		if r != nil {
			r.Message = fmt.Sprintf("No problem, keeping %s as %s.\n\n", slotLabel(p.Slot), sess.Slot(p.Slot)) + r.Message
		}
		return r
	default:
		return pendingPrompt(sess)
	}
}

// pendingPrompt renders the yes/no question for a proposed slot change.
func pendingPrompt(sess *session.Session) *Response {
	p := sess.Pending
	msg := p.Prompt
	if msg == "" {
		msg = fmt.Sprintf("You'd picked %s as your %s. Change it to %s?",
			sess.Slot(p.Slot), slotLabel(p.Slot), p.Proposed)
	}
	return withOptions(msg, []string{"Yes", "No"})
}

// completeFlow records the flow's outcome and delivers its summary.
func (e *Engine) completeFlow(ctx context.Context, sess *session.Session) *Response {
	sess.Step = session.StepDone

	var r *Response
	switch sess.Flow {
	case session.FlowBrowse:
		e.recordOutcome(ctx, sess, inventory.OutcomeTestDrive)
		r = browseSummary(sess)
	case session.FlowValuation:
		e.recordOutcome(ctx, sess, inventory.OutcomeValuation)
		r = text("That's everything I need! Our valuation team will call you with a quote within 24 hours. 📞")
	case session.FlowContact:
		e.recordOutcome(ctx, sess, inventory.OutcomeContact)
		r = text("Got it! Someone from the Prasad Motors team will reach out to you shortly.")
	default:
		r = text("Glad I could help!")
	}
	r.Options = terminalOptions
	return r
}

// recordOutcome persists the flow's collected slots as a lead.  Failures are
// logged, never surfaced: the user already got their summary.
func (e *Engine) recordOutcome(ctx context.Context, sess *session.Session, kind string) {
	if e.catalog == nil {
		return
	}
	payload := make(map[string]string, len(sess.Slots)+1)
	for k, v := range sess.Slots {
		payload[k] = v
	}
	payload["flow"] = string(sess.Flow)
	if err := e.catalog.RecordOutcome(ctx, kind, sess.ChannelID, payload); err != nil {
		slog.Error("failed to record outcome", "kind", kind, "channel", sess.ChannelID, "err", err)
	}
}

func (e *Engine) welcome() *Response {
	return withOptions(
		"Welcome to Prasad Motors! 🚗 I can help you find a great used car, value the one you have, or put you in touch with our team.",
		mainMenuOptions,
	)
}

// slotLabel maps slot names to the words used in user-facing messages.
func slotLabel(slot string) string {
	if label, ok := slotLabels[slot]; ok {
		return label
	}
	return strings.ReplaceAll(slot, "_", " ")
}

var slotLabels = map[string]string{
	"budget":          "budget",
	"car_type":        "body style",
	"brand":           "brand",
	"fuel":            "fuel type",
	"kms":             "kilometres driven",
	SlotSelectedCar:   "selected car",
	SlotTestDriveDate: "test drive date",
	SlotTestDriveTime: "test drive time",
	SlotLocationMode:  "test drive location",
}
