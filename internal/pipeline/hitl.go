package pipeline

import "fmt"

// Policy configures the human-in-the-loop gate.
type Policy struct {
	// DegradedMinTier is the lowest risk tier that needs review when the
	// language model was unavailable.
	DegradedMinTier Tier
	// TreatAbsentAsDegraded makes a pipeline run without any adapter count as
	// degraded for DegradedMinTier.
	TreatAbsentAsDegraded bool
}

// DefaultPolicy reviews every turn at moderate risk or above that ran without a
// working language model.
func DefaultPolicy() Policy {
	return Policy{DegradedMinTier: TierModerate, TreatAbsentAsDegraded: true}
}

// Signals is everything the gate looks at.
type Signals struct {
	InvalidInput    bool
	Tier            Tier
	Band            Band
	Inconclusive    bool
	RuleStageFailed bool
	Confidence      Confidence
}

// HITL rule identifiers, in evaluation order.
const (
	HITLInvalidInput         = "invalid-input"
	HITLEmergencyBand        = "emergency-band"
	HITLStageFailure         = "stage-failure"
	HITLInconclusiveDegraded = "inconclusive-degraded"
	HITLDegradedConfidence   = "degraded-confidence"
	HITLGateUnavailable      = "gate-unavailable"
)

// Degraded reports whether c counts as running without a working language
// model under p.
func (p Policy) Degraded(c Confidence) bool {
	return c == ConfidenceDegraded || (c == ConfidenceRulesOnly && p.TreatAbsentAsDegraded)
}

// Decide applies the gate. The first matching rule wins.
func (p Policy) Decide(s Signals) *HITLDecision {
	degraded := p.Degraded(s.Confidence)

	switch {
	case s.InvalidInput:
		return review(HITLInvalidInput, "the message was empty and could not be assessed")
	case s.Band == BandEmergency:
		return review(HITLEmergencyBand, "emergency triage needs clinician confirmation")
	case s.RuleStageFailed:
		return review(HITLStageFailure, "a safety stage fell back to defaults")
	case s.Inconclusive && degraded:
		return review(HITLInconclusiveDegraded, "risk could not be assessed and the language model was unavailable")
	case degraded && s.Tier >= p.DegradedMinTier:
		return review(HITLDegradedConfidence, fmt.Sprintf("%s risk assessed without a working language model", s.Tier))
	}
	return &HITLDecision{NeedsReview: false}
}

func review(rule, reason string) *HITLDecision {
	return &HITLDecision{NeedsReview: true, Rule: rule, Reason: reason}
}
