package actions

import (
	"fmt"

	"github.com/spboyer/churnkit/internal/schema"
)

// Priority is the urgency of an action.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorityLevels = map[Priority]int{
	PriorityLow:    1,
	PriorityMedium: 2,
	PriorityHigh:   3,
	PriorityUrgent: 4,
}

// Level returns 1..4 for known priorities and 0 otherwise.
func (p Priority) Level() int {
	return priorityLevels[p]
}

// ParsePriority validates a priority name.
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if p.Level() == 0 {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}

// PriorityForTier maps a risk tier to its action priority. Critical maps to
// urgent; unknown tiers map to medium.
func PriorityForTier(t schema.Tier) Priority {
	switch t {
	case schema.TierLow:
		return PriorityLow
	case schema.TierMedium:
		return PriorityMedium
	case schema.TierHigh:
		return PriorityHigh
	case schema.TierCritical:
		return PriorityUrgent
	}
	return PriorityMedium
}
