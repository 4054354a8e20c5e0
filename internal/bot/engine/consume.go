package engine

import (
	"context"

	"github.com/prasadmotors/dealerbot/internal/bot/session"
)

// menuSpec describes a step whose answer is one of a closed option set,
// committed to slot.  The engine drives the matching; see stepHandler.
type menuSpec struct {
	slot    string
	options func(ctx context.Context, e *Engine, sess *session.Session) []string
}

// staticMenu builds a menuSpec over a fixed option list.
func staticMenu(slot string, options []string) *menuSpec {
	return &menuSpec{
		slot: slot,
		options: func(context.Context, *Engine, *session.Session) []string {
			return options
		},
	}
}

// commitOption records a matched option as an explicit choice.
func commitOption(sess *session.Session, slot, option string) {
	sess.SetSlot(slot, option)
	sess.MarkExplicit(slot)
}

// consumeFreeText satisfies a free-form step.  validate returns the value to
// commit, or an error message to send back; it must reject input that cannot
// plausibly answer the step.
func consumeFreeText(sess *session.Session, slot, msg string, validate func(string) (string, string)) (*Response, bool) {
	value, errMsg := validate(msg)
	if errMsg != "" {
		return text(errMsg), true
	}
	if value == "" {
		return nil, false
	}
	sess.SetSlot(slot, value)
	return nil, true
}
