package engine

import (
	"context"

	"github.com/prasadmotors/dealerbot/internal/bot/session"
)

const aboutMessage = `Prasad Motors has been putting families behind the wheel since 1998. 🚗

📍 12 MG Road, Pune (open 9:30 AM to 7:30 PM, all seven days)
✅ Every car inspected on 150+ checkpoints
🛡️ 6-month warranty and 5-day money-back guarantee on all cars
💰 Finance and exchange options available

Want to do anything else?`

var aboutHandlers = map[session.Step]stepHandler{
	session.StepInfo: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			// Showing the info satisfies the flow; the next message lands on
			// the terminal handler.
			sess.SetSlot(SlotInfoAck, "seen")
			r := withOptions(aboutMessage, terminalOptions)
			sess.Step = session.StepDone
			return r
		},
	},
}
