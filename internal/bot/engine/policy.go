package engine

// DefaultConfidenceGate is the extraction confidence an entity bag must
// reach before any of it is committed to session slots.  The workable range
// is 0.6–0.75: below that, keyword noise starts filling slots; above it,
// the deterministic fallback (0.8 on an entity hit) is the only path that
// ever commits.
const DefaultConfidenceGate = 0.65

// ConfidencePolicy is the single, injectable decision point for whether an
// extraction is trustworthy enough to commit.  Centralizing it here keeps
// the gate out of individual call sites and makes it unit-testable in
// isolation; the threshold source may be hot-readable (runtime config).
type ConfidencePolicy struct {
	threshold func() float64
}

// NewConfidencePolicy builds a policy from a threshold source.  A nil source
// or an out-of-range value falls back to DefaultConfidenceGate.
func NewConfidencePolicy(threshold func() float64) ConfidencePolicy {
	return ConfidencePolicy{threshold: threshold}
}

// StaticConfidencePolicy returns a policy with a fixed threshold.
func StaticConfidencePolicy(gate float64) ConfidencePolicy {
	return ConfidencePolicy{threshold: func() float64 { return gate }}
}

// Gate returns the effective threshold.
func (p ConfidencePolicy) Gate() float64 {
	if p.threshold == nil {
		return DefaultConfidenceGate
	}
	g := p.threshold()
	if g <= 0 || g > 1 {
		return DefaultConfidenceGate
	}
	return g
}

// Admit reports whether an extraction with the given confidence may commit
// entities.  Sub-threshold extractions are discarded entirely, never
// partially applied.
func (p ConfidencePolicy) Admit(confidence float64) bool {
	return confidence >= p.Gate()
}
