package pipeline

// BandFor maps a risk tier to its triage band. The mapping is fixed and monotonic.
func BandFor(t Tier) Band {
	switch t {
	case TierEmergency:
		return BandEmergency
	case TierHigh:
		return BandUrgent
	case TierModerate:
		return BandRoutine
	default:
		return BandSelfCare
	}
}
