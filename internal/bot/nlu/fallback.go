package nlu

import (
	"regexp"
	"strings"
)

// Fallback confidence levels.  The fallback path is deliberately coarse so
// that its output is never mistaken for a high-confidence structured result
// while remaining usable as a same-shape substitute for a provider result.
const (
	// FallbackEntityConfidence is reported when at least one entity matched
	// an alias table.
	FallbackEntityConfidence = 0.8
	// FallbackIntentConfidence is reported when only an intent keyword
	// matched.
	FallbackIntentConfidence = 0.3
)

// FallbackExtractor is the deterministic, offline extraction path.  It is
// purely computational (static alias tables plus keyword-based intent
// classification) and always returns within microseconds.
type FallbackExtractor struct{}

// NewFallbackExtractor returns the deterministic extractor.
func NewFallbackExtractor() *FallbackExtractor {
	return &FallbackExtractor{}
}

// Extract scans freeText against the alias tables and intent keywords.
func (f *FallbackExtractor) Extract(freeText string) Extraction {
	lower := strings.ToLower(freeText)
	entities := scanEntities(lower)
	intent := scanIntent(lower)

	switch {
	case len(entities) > 0:
		return Extraction{Intent: intent, Entities: entities, Confidence: FallbackEntityConfidence}
	case intent != IntentUnknown:
		return Extraction{Intent: intent, Confidence: FallbackIntentConfidence}
	default:
		return Extraction{Intent: IntentUnknown, Confidence: 0}
	}
}

// scanIntent returns the first flow whose keyword list matches the text.
// Browse wins ties by check order, matching the menu order shown to users.
func scanIntent(lower string) Intent {
	for _, intent := range []Intent{IntentBrowse, IntentValuation, IntentContact, IntentAbout} {
		for _, kw := range tables.Intents[string(intent)] {
			if strings.Contains(lower, kw) {
				return intent
			}
		}
	}
	return IntentUnknown
}

var (
	rupeePrefixedRe = regexp.MustCompile(`(?:₹|rs\.?\s*|inr\s*)([\d,]{4,})`)
	kmsRe           = regexp.MustCompile(`([\d,]{3,})\s*(?:kms?|kilometers?|kilometres?)\b`)
)

// scanEntities walks the lowercased text looking for alias-table matches.
// Tokens and bigrams are checked against the closed-set tables; numeric
// patterns cover budgets, years, kilometre readings, and phone numbers.
func scanEntities(lower string) map[string]string {
	entities := make(map[string]string)

	words := strings.FieldsFunc(lower, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?'
	})
	tryAlias := func(key, candidate string) {
		if _, seen := entities[key]; seen {
			return
		}
		if v, ok := Canonicalize(key, candidate); ok {
			entities[key] = v
		}
	}
	for i, w := range words {
		tryAlias(EntityBrand, w)
		tryAlias(EntityCarType, w)
		tryAlias(EntityFuel, w)
		if i+1 < len(words) {
			bigram := w + " " + words[i+1]
			tryAlias(EntityBrand, bigram)
			tryAlias(EntityCarType, bigram)
		}
	}

	// Budget: "N lakhs" phrasing or a ₹/Rs-prefixed amount first, keyword
	// aliases second.  Bare numbers are NOT treated as budgets so that
	// kilometre readings and years do not misfire.
	if _, ok := entities[EntityBudget]; !ok {
		if m := lakhsRe.FindStringSubmatch(lower); m != nil {
			if v, ok := ParseLakhs(m[0]); ok {
				entities[EntityBudget] = BudgetForLakhs(v)
			}
		} else if m := rupeePrefixedRe.FindStringSubmatch(lower); m != nil {
			if v, ok := ParseLakhs(m[0]); ok {
				entities[EntityBudget] = BudgetForLakhs(v)
			}
		}
	}
	if _, ok := entities[EntityBudget]; !ok {
	scan:
		for _, b := range tables.Budgets {
			for _, alias := range b.Aliases {
				if strings.Contains(lower, alias) {
					entities[EntityBudget] = b.Label
					break scan
				}
			}
		}
	}

	if y, ok := parseYear(lower); ok {
		entities[EntityYear] = y
	}
	if m := kmsRe.FindStringSubmatch(lower); m != nil {
		entities[EntityKms] = strings.ReplaceAll(m[1], ",", "")
	}
	if p, ok := parsePhone(lower); ok {
		entities[EntityPhone] = p
	}

	return entities
}
