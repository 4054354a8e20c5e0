package engine

import (
	"context"
	"fmt"

	"github.com/prasadmotors/dealerbot/internal/bot/nlu"
	"github.com/prasadmotors/dealerbot/internal/bot/session"
)

var ownerOptions = []string{"1st Owner", "2nd Owner", "3rd Owner or More"}

var conditionOptions = []string{"Excellent", "Good", "Fair", "Needs Work"}

var valuationHandlers = map[session.Step]stepHandler{
	session.StepBrand: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return withOptions("Let's get your car valued! Which brand is it?", nlu.BrandOptions())
		},
		menu: staticMenu(nlu.EntityBrand, nlu.BrandOptions()),
	},
	session.StepModel: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return text(fmt.Sprintf("Which %s model is it?", sess.Slot(nlu.EntityBrand)))
		},
		consume: func(ctx context.Context, e *Engine, sess *session.Session, msg string) (*Response, bool) {
			return consumeFreeText(sess, nlu.EntityModel, msg, validateShortText)
		},
	},
	session.StepYear: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return text("Which year was it manufactured?")
		},
		consume: func(ctx context.Context, e *Engine, sess *session.Session, msg string) (*Response, bool) {
			return consumeFreeText(sess, nlu.EntityYear, msg, validateYear)
		},
	},
	session.StepFuel: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return withOptions("What's the fuel type?", nlu.FuelOptions())
		},
		menu: staticMenu(nlu.EntityFuel, nlu.FuelOptions()),
	},
	session.StepKms: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return text("Roughly how many kilometres has it done?")
		},
		consume: func(ctx context.Context, e *Engine, sess *session.Session, msg string) (*Response, bool) {
			return consumeFreeText(sess, nlu.EntityKms, msg, validateKms)
		},
	},
	session.StepOwner: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return withOptions("How many owners has the car had?", ownerOptions)
		},
		menu: staticMenu(nlu.EntityOwner, ownerOptions),
	},
	session.StepCondition: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return withOptions("How would you rate its condition?", conditionOptions)
		},
		menu: staticMenu(nlu.EntityCondition, conditionOptions),
	},
	session.StepName: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return text("Great, the details are in! What's your name?")
		},
		consume: func(ctx context.Context, e *Engine, sess *session.Session, msg string) (*Response, bool) {
			return consumeFreeText(sess, nlu.EntityName, msg, validateName)
		},
	},
	session.StepPhone: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return text(fmt.Sprintf("Thanks %s! What number should our team call you on?", sess.Slot(nlu.EntityName)))
		},
		consume: func(ctx context.Context, e *Engine, sess *session.Session, msg string) (*Response, bool) {
			return consumeFreeText(sess, nlu.EntityPhone, msg, validatePhone)
		},
	},
	session.StepLocation: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return text("And which city or area is the car in?")
		},
		consume: func(ctx context.Context, e *Engine, sess *session.Session, msg string) (*Response, bool) {
			return consumeFreeText(sess, nlu.EntityLocation, msg, validateShortText)
		},
	},
}
