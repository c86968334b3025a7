package schema

// Tier is a coarse risk severity bucket.
type Tier string

const (
	TierLow      Tier = "low"
	TierMedium   Tier = "medium"
	TierHigh     Tier = "high"
	TierCritical Tier = "critical"
)

// Tiers lists tiers from least to most severe.
var Tiers = []Tier{TierLow, TierMedium, TierHigh, TierCritical}

// tierOrder maps tiers to numeric severity (higher = more severe).
var tierOrder = map[Tier]int{
	TierLow:      1,
	TierMedium:   2,
	TierHigh:     3,
	TierCritical: 4,
}

// Severity returns 1..4 for known tiers and 0 otherwise.
func (t Tier) Severity() int {
	return tierOrder[t]
}

// TierForSeverity is the inverse of Severity, clamped to [low, critical].
func TierForSeverity(s int) Tier {
	switch {
	case s <= 1:
		return TierLow
	case s == 2:
		return TierMedium
	case s == 3:
		return TierHigh
	default:
		return TierCritical
	}
}

// IsAtLeast reports whether t is as severe as min or more.
func (t Tier) IsAtLeast(min Tier) bool {
	return t.Severity() >= min.Severity()
}
