// Package session defines the per-user conversation state and the stores
// that persist it.
//
// One Session exists per external channel address (an opaque string such as
// "roomID:userID").  Sessions are mutated exclusively by the flow engine
// while handling a message; callers must serialize turns per channel address
// (the channel dispatcher does this).  Sessions are never deleted; an
// explicit restart or a terminal state only clears their fields.
package session

import (
	"time"
)

// Flow is the top-level conversation purpose.
type Flow string

const (
	// FlowNone means no flow has been chosen yet (fresh conversation).
	FlowNone Flow = "none"
	// FlowBrowse is the used-car browsing / test-drive booking flow.
	FlowBrowse Flow = "browse"
	// FlowValuation is the sell-your-car valuation flow.
	FlowValuation Flow = "valuation"
	// FlowContact is the talk-to-the-dealership flow.
	FlowContact Flow = "contact"
	// FlowAbout is the dealership info flow.
	FlowAbout Flow = "about"
)

// Step is a named position within a flow's slot-dependency chain.
// Step values are scoped to their flow; Valid reports membership.
type Step string

// Steps shared by several flows.
const (
	StepNone Step = ""
	StepDone Step = "done"
)

// Browse flow steps, in chain order.
const (
	StepBudget        Step = "budget"
	StepCarType       Step = "car_type"
	StepBrand         Step = "brand"
	StepResults       Step = "results"
	StepTestDriveDate Step = "test_drive_date"
	StepTestDriveTime Step = "test_drive_time"
	StepName          Step = "name"
	StepPhone         Step = "phone"
	StepLicense       Step = "license"
	StepLocationMode  Step = "location_mode"
	StepAddress       Step = "address"
	StepConfirm       Step = "confirm"
)

// Valuation flow steps (brand/name/phone reuse the shared constants above).
const (
	StepModel     Step = "model"
	StepYear      Step = "year"
	StepFuel      Step = "fuel"
	StepKms       Step = "kms"
	StepOwner     Step = "owner"
	StepCondition Step = "condition"
	StepLocation  Step = "location"
)

// Contact / about flow steps.
const (
	StepMessage Step = "message"
	StepInfo    Step = "info"
)

// flowSteps lists the valid steps per flow.  The engine owns the ordered
// dependency chains; this map only answers membership for the
// step-belongs-to-flow invariant.
var flowSteps = map[Flow]map[Step]bool{
	FlowNone: {StepNone: true},
	FlowBrowse: {
		StepBudget: true, StepCarType: true, StepBrand: true, StepResults: true,
		StepTestDriveDate: true, StepTestDriveTime: true, StepName: true,
		StepPhone: true, StepLicense: true, StepLocationMode: true,
		StepAddress: true, StepConfirm: true, StepDone: true,
	},
	FlowValuation: {
		StepBrand: true, StepModel: true, StepYear: true, StepFuel: true,
		StepKms: true, StepOwner: true, StepCondition: true, StepName: true,
		StepPhone: true, StepLocation: true, StepDone: true,
	},
	FlowContact: {
		StepName: true, StepPhone: true, StepMessage: true, StepDone: true,
	},
	FlowAbout: {
		StepInfo: true, StepDone: true,
	},
}

// Valid reports whether step is a member of flow's step set.
func (f Flow) Valid(step Step) bool {
	steps, ok := flowSteps[f]
	if !ok {
		return false
	}
	return steps[step]
}

// PendingConfirmation is a proposed slot change awaiting a yes/no answer,
// e.g. an extraction that would overwrite an explicitly chosen budget.
type PendingConfirmation struct {
	Kind     string `json:"kind"` // e.g. "slot_change"
	Slot     string `json:"slot"`
	Proposed string `json:"proposed"`
	Prompt   string `json:"prompt,omitempty"`
}

// Session is the conversation state for one channel address.
type Session struct {
	// ChannelID is the opaque external channel address identifying the user.
	ChannelID string

	Flow Flow
	Step Step

	// Slots holds the structured fields collected so far.  Keys depend on
	// the flow (browse: budget, car_type, brand, selected_car, ...;
	// valuation: brand, model, year, ...).
	Slots map[string]string

	// ExplicitChoices is the audit set of slot names the user picked
	// directly from a menu.  Slots in this set are never silently
	// overwritten by automatic extraction.
	ExplicitChoices map[string]bool

	// Pending is a proposed change awaiting yes/no, or nil.
	Pending *PendingConfirmation

	// ConversationEnded marks the terminal "say nothing further" state.
	ConversationEnded bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New returns a fresh session for the given channel address.
func New(channelID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ChannelID:       channelID,
		Flow:            FlowNone,
		Step:            StepNone,
		Slots:           make(map[string]string),
		ExplicitChoices: make(map[string]bool),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Slot returns the committed value for name, or "" when unset.
func (s *Session) Slot(name string) string {
	return s.Slots[name]
}

// SetSlot commits value under name.
func (s *Session) SetSlot(name, value string) {
	if s.Slots == nil {
		s.Slots = make(map[string]string)
	}
	s.Slots[name] = value
}

// MarkExplicit records that the user picked name directly from a menu.
func (s *Session) MarkExplicit(name string) {
	if s.ExplicitChoices == nil {
		s.ExplicitChoices = make(map[string]bool)
	}
	s.ExplicitChoices[name] = true
}

// IsExplicit reports whether name was an explicit menu choice.
func (s *Session) IsExplicit(name string) bool {
	return s.ExplicitChoices[name]
}

// Reset clears all conversational state while keeping the channel identity.
// Used for the global "start over" command and when a terminal state is
// re-entered with "explore more".
func (s *Session) Reset() {
	s.Flow = FlowNone
	s.Step = StepNone
	s.Slots = make(map[string]string)
	s.ExplicitChoices = make(map[string]bool)
	s.Pending = nil
	s.ConversationEnded = false
	s.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy of the session.  Stores hand out copies so
// callers cannot mutate persisted state without going through Put.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Slots = make(map[string]string, len(s.Slots))
	for k, v := range s.Slots {
		cp.Slots[k] = v
	}
	cp.ExplicitChoices = make(map[string]bool, len(s.ExplicitChoices))
	for k, v := range s.ExplicitChoices {
		cp.ExplicitChoices[k] = v
	}
	if s.Pending != nil {
		p := *s.Pending
		cp.Pending = &p
	}
	return &cp
}
