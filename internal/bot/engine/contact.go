package engine

import (
	"context"
	"fmt"

	"github.com/prasadmotors/dealerbot/internal/bot/nlu"
	"github.com/prasadmotors/dealerbot/internal/bot/session"
)

var contactHandlers = map[session.Step]stepHandler{
	session.StepName: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return text("Sure, I'll connect you with the team. What's your name?")
		},
		consume: func(ctx context.Context, e *Engine, sess *session.Session, msg string) (*Response, bool) {
			return consumeFreeText(sess, nlu.EntityName, msg, validateName)
		},
	},
	session.StepPhone: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return text(fmt.Sprintf("Thanks %s! What number can they reach you on?", sess.Slot(nlu.EntityName)))
		},
		consume: func(ctx context.Context, e *Engine, sess *session.Session, msg string) (*Response, bool) {
			return consumeFreeText(sess, nlu.EntityPhone, msg, validatePhone)
		},
	},
	session.StepMessage: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return text("What would you like them to know? A line or two is perfect.")
		},
		consume: func(ctx context.Context, e *Engine, sess *session.Session, msg string) (*Response, bool) {
			return consumeFreeText(sess, SlotMessage, msg, validateMessage)
		},
	},
}
