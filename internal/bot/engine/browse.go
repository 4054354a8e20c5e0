package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prasadmotors/dealerbot/internal/bot/inventory"
	"github.com/prasadmotors/dealerbot/internal/bot/nlu"
	"github.com/prasadmotors/dealerbot/internal/bot/session"
)

// resultsLimit caps how many cars one results screen shows.
const resultsLimit = 5

var testDriveDateOptions = []string{"Today", "Tomorrow", "This Weekend"}

var testDriveTimeOptions = []string{
	"Morning (10 AM - 12 PM)",
	"Afternoon (12 PM - 4 PM)",
	"Evening (4 PM - 7 PM)",
}

var licenseOptions = []string{"Yes, I have a license", "No, not yet"}

var locationModeOptions = []string{LocationShowroom, LocationHome}

var browseHandlers = map[session.Step]stepHandler{
	session.StepBudget: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return withOptions("Great, let's find you a car! What's your budget?", nlu.BudgetOptions())
		},
		menu: staticMenu(nlu.EntityBudget, nlu.BudgetOptions()),
	},
	session.StepCarType: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return withOptions("What body style are you looking for?", nlu.CarTypeOptions())
		},
		menu: staticMenu(nlu.EntityCarType, nlu.CarTypeOptions()),
	},
	session.StepBrand: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return withOptions("Any preferred brand?", nlu.BrandOptions())
		},
		menu: staticMenu(nlu.EntityBrand, nlu.BrandOptions()),
	},
	session.StepResults: {
		prompt:  promptResults,
		menu:    &menuSpec{slot: SlotSelectedCar, options: resultTitles},
		consume: consumeResults,
	},
	session.StepTestDriveDate: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return withOptions(
				fmt.Sprintf("Nice choice, the %s it is! When would you like to come in for a test drive?", sess.Slot(SlotSelectedCar)),
				testDriveDateOptions,
			)
		},
		menu: staticMenu(SlotTestDriveDate, testDriveDateOptions),
		consume: func(ctx context.Context, e *Engine, sess *session.Session, msg string) (*Response, bool) {
			// A typed date ("next Tuesday", "5th Sep") is fine too.
			return consumeFreeText(sess, SlotTestDriveDate, msg, validateDate)
		},
	},
	session.StepTestDriveTime: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return withOptions("What time suits you?", testDriveTimeOptions)
		},
		menu: staticMenu(SlotTestDriveTime, testDriveTimeOptions),
	},
	session.StepName: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return text("Almost there. What's your name?")
		},
		consume: func(ctx context.Context, e *Engine, sess *session.Session, msg string) (*Response, bool) {
			return consumeFreeText(sess, nlu.EntityName, msg, validateName)
		},
	},
	session.StepPhone: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return text(fmt.Sprintf("Thanks %s! What's the best phone number to reach you on?", sess.Slot(nlu.EntityName)))
		},
		consume: func(ctx context.Context, e *Engine, sess *session.Session, msg string) (*Response, bool) {
			return consumeFreeText(sess, nlu.EntityPhone, msg, validatePhone)
		},
	},
	session.StepLicense: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return withOptions("Do you hold a valid driving license?", licenseOptions)
		},
		menu: staticMenu(SlotLicense, licenseOptions),
		consume: func(ctx context.Context, e *Engine, sess *session.Session, msg string) (*Response, bool) {
			// Bare yes/no answers the question too.
			if isPositive(msg) {
				commitOption(sess, SlotLicense, licenseOptions[0])
				return nil, true
			}
			if isNegative(msg) {
				commitOption(sess, SlotLicense, licenseOptions[1])
				return nil, true
			}
			return nil, false
		},
	},
	session.StepLocationMode: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			msg := "Where would you like the test drive?"
			if sess.Slot(SlotLicense) == licenseOptions[1] {
				msg = "No problem, one of our executives will drive. Where would you like the test drive?"
			}
			return withOptions(msg, locationModeOptions)
		},
		menu: staticMenu(SlotLocationMode, locationModeOptions),
	},
	session.StepAddress: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return text("What address should we bring the car to?")
		},
		consume: func(ctx context.Context, e *Engine, sess *session.Session, msg string) (*Response, bool) {
			return consumeFreeText(sess, SlotAddress, msg, validateAddress)
		},
	},
	session.StepConfirm: {
		prompt: func(ctx context.Context, e *Engine, sess *session.Session) *Response {
			return withOptions(bookingRecap(sess), []string{"Confirm Booking", "Start Over"})
		},
		consume: func(ctx context.Context, e *Engine, sess *session.Session, msg string) (*Response, bool) {
			if m := MatchOption(msg, []string{"Confirm Booking", "Start Over"}); m.Matched {
				if m.Option == "Start Over" {
					sess.Reset()
					return withOptions("No worries, let's start fresh!", mainMenuOptions), true
				}
				sess.SetSlot(SlotConfirmed, "yes")
				sess.MarkExplicit(SlotConfirmed)
				return nil, true
			}
			if isPositive(msg) {
				sess.SetSlot(SlotConfirmed, "yes")
				sess.MarkExplicit(SlotConfirmed)
				return nil, true
			}
			if isNegative(msg) {
				sess.Reset()
				return withOptions("No worries, let's start fresh!", mainMenuOptions), true
			}
			return nil, false
		},
	},
}

// promptResults queries the catalog and renders matching cars as cards.
// The step captured before the query guards against the session having
// moved on by the time results are assembled.
func promptResults(ctx context.Context, e *Engine, sess *session.Session) *Response {
	cars, err := e.searchMatching(ctx, sess)
	if err != nil {
		slog.Error("failed to assemble results", "channel", sess.ChannelID, "err", err)
		return withOptions("I'm having trouble pulling up listings right now. Want to adjust your budget while I retry?", nlu.BudgetOptions())
	}
	if len(cars) == 0 {
		return withOptions(
			fmt.Sprintf("I couldn't find any %s %s cars in the %s range right now. Want to try a different budget?",
				sess.Slot(nlu.EntityBrand), strings.ToLower(sess.Slot(nlu.EntityCarType)), sess.Slot(nlu.EntityBudget)),
			nlu.BudgetOptions(),
		)
	}

	r := &Response{
		Message: "Here's what we have for you! Pick one to book a test drive.",
		Options: make([]string, 0, len(cars)),
		Items:   make([]Card, 0, len(cars)),
	}
	for _, car := range cars {
		r.Options = append(r.Options, car.Title())
		r.Items = append(r.Items, Card{
			Title:    car.Title(),
			Subtitle: car.PriceLabel(),
			Detail:   fmt.Sprintf("%s · %s km driven", car.Fuel, formatKms(car.Kms)),
		})
	}
	return r
}

// resultTitles lists the car titles currently selectable at the results
// step.  The step captured before the query guards against the session
// having moved on by the time the listing is assembled.
func resultTitles(ctx context.Context, e *Engine, sess *session.Session) []string {
	captured := sess.Step

	cars, err := e.searchMatching(ctx, sess)
	if err != nil {
		slog.Error("failed to reload results", "channel", sess.ChannelID, "err", err)
		return nil
	}
	if err := guardStep(sess, captured); err != nil {
		return nil
	}

	titles := make([]string, 0, len(cars))
	for _, car := range cars {
		titles = append(titles, car.Title())
	}
	return titles
}

// consumeResults handles a budget revision from the results screen; car
// picks go through the step's menu.
func consumeResults(ctx context.Context, e *Engine, sess *session.Session, msg string) (*Response, bool) {
	m := MatchOption(msg, nlu.BudgetOptions())
	if !m.Matched || m.Confidence < matchConfidenceBar {
		return nil, false
	}
	if sess.IsExplicit(nlu.EntityBudget) && sess.Slot(nlu.EntityBudget) != m.Option {
		sess.Pending = &session.PendingConfirmation{
			Kind:     "slot_change",
			Slot:     nlu.EntityBudget,
			Proposed: m.Option,
		}
		return pendingPrompt(sess), true
	}
	commitOption(sess, nlu.EntityBudget, m.Option)
	return promptResults(ctx, e, sess), true
}

// searchMatching runs the catalog query for the session's browse filters.
func (e *Engine) searchMatching(ctx context.Context, sess *session.Session) ([]inventory.Car, error) {
	if e.catalog == nil {
		return nil, nil
	}
	return e.catalog.SearchCars(ctx, inventory.Query{
		Budget:  sess.Slot(nlu.EntityBudget),
		CarType: sess.Slot(nlu.EntityCarType),
		Brand:   sess.Slot(nlu.EntityBrand),
		Limit:   resultsLimit,
	})
}

// guardStep rejects work assembled for a step the session has since left.
func guardStep(sess *session.Session, captured session.Step) error {
	if sess.Step != captured {
		return ErrStepMismatch
	}
	return nil
}

// bookingRecap renders the pre-confirmation summary.
func bookingRecap(sess *session.Session) string {
	var sb strings.Builder
	sb.WriteString("Here's your test drive booking:\n")
	fmt.Fprintf(&sb, "🚗 Car: %s\n", sess.Slot(SlotSelectedCar))
	fmt.Fprintf(&sb, "📅 Date: %s\n", sess.Slot(SlotTestDriveDate))
	fmt.Fprintf(&sb, "🕐 Time: %s\n", sess.Slot(SlotTestDriveTime))
	fmt.Fprintf(&sb, "📍 Location: %s\n", sess.Slot(SlotLocationMode))
	if addr := sess.Slot(SlotAddress); addr != "" {
		fmt.Fprintf(&sb, "🏠 Address: %s\n", addr)
	}
	fmt.Fprintf(&sb, "👤 Name: %s (%s)\n", sess.Slot(nlu.EntityName), sess.Slot(nlu.EntityPhone))
	sb.WriteString("\nShall I confirm it?")
	return sb.String()
}

// browseSummary is the terminal message after the booking is confirmed.
func browseSummary(sess *session.Session) *Response {
	return text(fmt.Sprintf(
		"You're all set, %s! 🎉 Your test drive of the %s is booked for %s, %s. We'll send a reminder to %s.",
		sess.Slot(nlu.EntityName),
		sess.Slot(SlotSelectedCar),
		sess.Slot(SlotTestDriveDate),
		sess.Slot(SlotTestDriveTime),
		sess.Slot(nlu.EntityPhone),
	))
}

func formatKms(kms int) string {
	if kms >= 1000 {
		return fmt.Sprintf("%d,%03d", kms/1000, kms%1000)
	}
	return fmt.Sprintf("%d", kms)
}
