package engine

import (
	"github.com/prasadmotors/dealerbot/internal/bot/nlu"
	"github.com/prasadmotors/dealerbot/internal/bot/session"
)

// Slot names beyond the entity keys shared with the nlu package.  These are
// collected through menus or free-form steps rather than extraction.
const (
	SlotSelectedCar   = "selected_car"
	SlotTestDriveDate = "test_drive_date"
	SlotTestDriveTime = "test_drive_time"
	SlotLicense       = "license"
	SlotLocationMode  = "location_mode"
	SlotAddress       = "address"
	SlotConfirmed     = "confirmed"
	SlotMessage       = "message"
	SlotInfoAck       = "info_ack"
)

// Location-mode values for the browse flow's test-drive location step.
const (
	LocationShowroom = "Showroom Visit"
	LocationHome     = "Home Test Drive"
)

// chainLink ties one step of a flow to the slot that satisfies it.
type chainLink struct {
	step session.Step
	slot string
	// needed reports whether the step applies given the current slots.
	// nil means always needed.
	needed func(s *session.Session) bool
}

// Each flow is an ordered slot-dependency chain.  A step is satisfied once
// its slot is committed; the engine always resumes at the first unsatisfied
// step, which is also how skip-ahead and resume-after-redirect work: they
// are the same operation applied at different points.
var flowChains = map[session.Flow][]chainLink{
	session.FlowBrowse: {
		{step: session.StepBudget, slot: nlu.EntityBudget},
		{step: session.StepCarType, slot: nlu.EntityCarType},
		{step: session.StepBrand, slot: nlu.EntityBrand},
		{step: session.StepResults, slot: SlotSelectedCar},
		{step: session.StepTestDriveDate, slot: SlotTestDriveDate},
		{step: session.StepTestDriveTime, slot: SlotTestDriveTime},
		{step: session.StepName, slot: nlu.EntityName},
		{step: session.StepPhone, slot: nlu.EntityPhone},
		{step: session.StepLicense, slot: SlotLicense},
		{step: session.StepLocationMode, slot: SlotLocationMode},
		{step: session.StepAddress, slot: SlotAddress, needed: func(s *session.Session) bool {
			return s.Slot(SlotLocationMode) == LocationHome
		}},
		{step: session.StepConfirm, slot: SlotConfirmed},
	},
	session.FlowValuation: {
		{step: session.StepBrand, slot: nlu.EntityBrand},
		{step: session.StepModel, slot: nlu.EntityModel},
		{step: session.StepYear, slot: nlu.EntityYear},
		{step: session.StepFuel, slot: nlu.EntityFuel},
		{step: session.StepKms, slot: nlu.EntityKms},
		{step: session.StepOwner, slot: nlu.EntityOwner},
		{step: session.StepCondition, slot: nlu.EntityCondition},
		{step: session.StepName, slot: nlu.EntityName},
		{step: session.StepPhone, slot: nlu.EntityPhone},
		{step: session.StepLocation, slot: nlu.EntityLocation},
	},
	session.FlowContact: {
		{step: session.StepName, slot: nlu.EntityName},
		{step: session.StepPhone, slot: nlu.EntityPhone},
		{step: session.StepMessage, slot: SlotMessage},
	},
	session.FlowAbout: {
		{step: session.StepInfo, slot: SlotInfoAck},
	},
}

// firstUnsatisfied walks flow's chain from the start and returns the first
// step whose slot is missing, or StepDone when everything is satisfied.
// Always recomputed fresh from the slot map, never incrementally tracked,
// so stored state and displayed step cannot drift apart.
func firstUnsatisfied(flow session.Flow, sess *session.Session) session.Step {
	chain, ok := flowChains[flow]
	if !ok {
		return session.StepNone
	}
	for _, link := range chain {
		if link.needed != nil && !link.needed(sess) {
			continue
		}
		if sess.Slot(link.slot) == "" {
			return link.step
		}
	}
	return session.StepDone
}

// flowSlots returns the set of slot names belonging to flow's chain.  The
// slot extractor only commits entities whose key is a slot of the current
// flow; everything else in the bag is ignored.
func flowSlots(flow session.Flow) map[string]bool {
	chain := flowChains[flow]
	slots := make(map[string]bool, len(chain))
	for _, link := range chain {
		slots[link.slot] = true
	}
	return slots
}

// intentFlow maps an extraction intent to its flow.
func intentFlow(intent nlu.Intent) (session.Flow, bool) {
	switch intent {
	case nlu.IntentBrowse:
		return session.FlowBrowse, true
	case nlu.IntentValuation:
		return session.FlowValuation, true
	case nlu.IntentContact:
		return session.FlowContact, true
	case nlu.IntentAbout:
		return session.FlowAbout, true
	default:
		return session.FlowNone, false
	}
}
