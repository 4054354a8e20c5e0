// Package nlu provides structured extraction from free-form user messages.
//
// Two paths produce the same Extraction shape:
//   - the external NLU provider, reached only through the rate-limited
//     request Broker, and
//   - the deterministic table-driven FallbackExtractor, used whenever the
//     provider is unavailable, over quota, too slow, or low-confidence.
//
// Keeping the shapes identical means the flow engine never needs to know
// which path produced a result; canonicalization through the shared alias
// tables makes both paths converge on identical slot values.
package nlu

// Intent is the high-level conversation purpose inferred from a message.
type Intent string

const (
	// IntentBrowse means the user wants to look at cars for sale.
	IntentBrowse Intent = "browse"
	// IntentValuation means the user wants to sell / value their car.
	IntentValuation Intent = "valuation"
	// IntentContact means the user wants to reach the dealership.
	IntentContact Intent = "contact"
	// IntentAbout means the user is asking about the dealership itself.
	IntentAbout Intent = "about"
	// IntentUnknown means no intent could be determined.
	IntentUnknown Intent = "unknown"
)

// Entity keys used in Extraction.Entities.  Values are canonical strings
// produced by the alias tables (see Canonicalize).
const (
	EntityBudget    = "budget"
	EntityCarType   = "car_type"
	EntityBrand     = "brand"
	EntityModel     = "model"
	EntityYear      = "year"
	EntityFuel      = "fuel"
	EntityKms       = "kms"
	EntityOwner     = "owner"
	EntityCondition = "condition"
	EntityName      = "name"
	EntityPhone     = "phone"
	EntityLocation  = "location"
)

// Extraction is the structured result of analysing one user message.
// Both the provider path and the fallback path produce this shape.
type Extraction struct {
	// Intent is the inferred conversation purpose.
	Intent Intent `json:"intent"`

	// Entities maps entity keys to canonical values.  Absent keys mean the
	// message carried no usable signal for that field.
	Entities map[string]string `json:"entities,omitempty"`

	// Confidence is a 0–1 certainty score.  The fallback path is
	// deliberately coarse (0.8 / 0.3 / 0) so it is never mistaken for a
	// high-confidence structured result.
	Confidence float64 `json:"confidence"`
}
