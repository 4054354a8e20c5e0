package engine

import (
	"github.com/prasadmotors/dealerbot/internal/bot/nlu"
	"github.com/prasadmotors/dealerbot/internal/bot/session"
)

// SlotExtractor turns a raw entity bag (from the provider path or the
// fallback path, both already canonicalized) into committed session slots
// and computes the furthest reachable step.
type SlotExtractor struct {
	policy ConfidencePolicy
}

// NewSlotExtractor returns an extractor gated by policy.
func NewSlotExtractor(policy ConfidencePolicy) *SlotExtractor {
	return &SlotExtractor{policy: policy}
}

// Commit applies the entity bag to the session and returns the first
// unsatisfied step afterwards, plus whether any slot value changed.  The
// returned step may equal the current one even when a slot changed (e.g. a
// budget revision while already viewing results).
//
// Rules:
//   - sub-threshold extractions are discarded entirely, never partially
//     applied;
//   - every value is re-canonicalized through the alias tables, so broker
//     output and fallback output converge on identical representations;
//   - a slot in the explicit-choice set is never silently overwritten; a
//     differing extraction for it becomes a PendingConfirmation instead;
//   - only entities that are slots of the current flow are considered;
//   - the resulting step is recomputed fresh by walking the chain from its
//     start.
func (e *SlotExtractor) Commit(sess *session.Session, entities map[string]string, confidence float64) (session.Step, bool) {
	if !e.policy.Admit(confidence) || len(entities) == 0 {
		return firstUnsatisfied(sess.Flow, sess), false
	}

	allowed := flowSlots(sess.Flow)
	committed := false
	for key, raw := range entities {
		if !allowed[key] {
			continue
		}
		value, ok := nlu.Canonicalize(key, raw)
		if !ok {
			continue
		}
		if sess.IsExplicit(key) {
			if sess.Slot(key) != value && sess.Pending == nil {
				sess.Pending = &session.PendingConfirmation{
					Kind:     "slot_change",
					Slot:     key,
					Proposed: value,
				}
			}
			continue
		}
		if sess.Slot(key) == value {
			continue
		}
		sess.SetSlot(key, value)
		committed = true
	}

	return firstUnsatisfied(sess.Flow, sess), committed
}
