package engine

import (
	"context"

	"github.com/prasadmotors/dealerbot/internal/bot/nlu"
	"github.com/prasadmotors/dealerbot/internal/bot/session"
)

// offTopicActionBar is the guard confidence above which the engine returns
// the redirect instead of processing the turn.
const offTopicActionBar = 0.7

// TopicCheck is the advisory result of an off-topic check.
type TopicCheck struct {
	OffTopic   bool
	Confidence float64
	// Redirect is the step-preserving message to send when OffTopic.
	Redirect string
}

// redirectMessages is the fixed per-flow redirect table.
var redirectMessages = map[session.Flow]string{
	session.FlowBrowse:    "I can help you with cars, but let's first finish finding the right one for you. 🚗",
	session.FlowValuation: "Happy to chat, but let's finish valuing your car first so I can get you a quote. 📋",
	session.FlowContact:   "Let me first grab your contact details so the team can reach you. 📞",
	session.FlowAbout:     "I'm best at talking about our dealership and cars. Here's where we were:",
	session.FlowNone:      "I'm the Prasad Motors assistant. I can help you browse cars, value your car, or reach our team.",
}

// freeFormSteps are collection steps whose expected replies (names, phone
// numbers, addresses, model names) carry no topical signal.  The guard never
// flags them; a user typing their own name must not be "redirected".
var freeFormSteps = map[session.Step]bool{
	session.StepName:     true,
	session.StepPhone:    true,
	session.StepAddress:  true,
	session.StepMessage:  true,
	session.StepModel:    true,
	session.StepLocation: true,
	session.StepKms:      true,
	session.StepYear:     true,
}

// TopicGuard classifies a turn as on/off-topic for the current flow context.
//
// Check has zero observable side effect on the session; it is advisory
// only.  The caller is solely responsible for leaving step and slots
// untouched when acting on an off-topic verdict.
type TopicGuard struct {
	extractor *Extractor
}

// NewTopicGuard builds a guard sharing the engine's dual-path extractor.
func NewTopicGuard(extractor *Extractor) *TopicGuard {
	return &TopicGuard{extractor: extractor}
}

// Check decides topicality for freeText given the session's flow context.
// The session is read, never written.
func (g *TopicGuard) Check(ctx context.Context, sess *session.Session, freeText string) TopicCheck {
	if freeFormSteps[sess.Step] {
		return TopicCheck{OffTopic: false, Confidence: 1}
	}
	return g.Assess(sess, g.extractor.Extract(ctx, sess, freeText))
}

// Assess is Check for callers that already ran extraction this turn.  It
// shares Check's guarantees: the session is read, never written.
func (g *TopicGuard) Assess(sess *session.Session, ext nlu.Extraction) TopicCheck {
	if freeFormSteps[sess.Step] {
		return TopicCheck{OffTopic: false, Confidence: 1}
	}

	// Any recognized entity or intent is on-topic: either it belongs to the
	// current flow, or it is a flow-switch request the engine handles
	// itself.  Only a message with no dealership signal at all is an
	// off-topic interjection.
	if len(ext.Entities) > 0 {
		return TopicCheck{OffTopic: false, Confidence: 0.9}
	}
	if ext.Intent != nlu.IntentUnknown {
		return TopicCheck{OffTopic: false, Confidence: 0.8}
	}

	confidence := 0.9
	if ext.Confidence > 0 {
		// The extractor saw something but could not classify it; be less
		// certain about redirecting.
		confidence = 0.6
	}
	return TopicCheck{
		OffTopic:   true,
		Confidence: confidence,
		Redirect:   redirectMessages[sess.Flow],
	}
}
