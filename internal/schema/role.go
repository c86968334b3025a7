// Package schema is the static catalog of abstract column roles, their
// detection vocabulary, and the churn signal and action template definitions
// keyed by role.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Role is an abstract, domain-agnostic column role.
type Role string

const (
	RoleID          Role = "id"
	RoleTarget      Role = "target"
	RoleTenure      Role = "tenure"
	RoleCostMonthly Role = "cost_monthly"
	RoleCostTotal   Role = "cost_total"
	RoleContract    Role = "contract"
	RoleCategorical Role = "categorical"
	RoleBinary      Role = "binary"
	RoleNumeric     Role = "numeric"
)

// Roles lists every role in catalog order.
var Roles = []Role{
	RoleID,
	RoleTarget,
	RoleTenure,
	RoleCostMonthly,
	RoleCostTotal,
	RoleContract,
	RoleCategorical,
	RoleBinary,
	RoleNumeric,
}

// ErrUnknownRole is returned by ParseRole for names outside the closed set.
var ErrUnknownRole = errors.New("unknown column role")

// ParseRole converts a caller-supplied role name into a Role. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r.Valid() {
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// IsNumeric reports whether values of this role are expected to be numbers.
func (r Role) IsNumeric() bool {
	switch r {
	case RoleTenure, RoleCostMonthly, RoleCostTotal, RoleNumeric:
		return true
	}
	return false
}

// IsCost reports whether r is one of the cost roles.
func (r Role) IsCost() bool {
	return r == RoleCostMonthly || r == RoleCostTotal
}

func (r Role) String() string { return string(r) }

// FoldValue case-folds a cell value for vocabulary comparisons. Casers are
// stateful and not shared.
func FoldValue(s string) string {
	return cases.Fold().String(s)
}
