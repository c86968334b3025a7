package mapper

import "context"

// ColumnInfo is the per-column summary sent to a semantic suggester.
type ColumnInfo struct {
	Name     string   `json:"name"`
	DType    string   `json:"dtype"`
	Distinct int      `json:"unique_values"`
	Sample   []string `json:"sample"`
}

// Suggestions is a semantic suggester's answer. Roles maps column name to a
// role name; names outside the role set are ignored by the mapper.
type Suggestions struct {
	Roles   map[string]string `json:"suggestions"`
	Insight string            `json:"insights"`
}

// Suggester proposes roles for columns from their names and sample values.
type Suggester interface {
	SuggestRoles(ctx context.Context, columns []ColumnInfo) (*Suggestions, error)
}

// NoopSuggester never suggests anything.
type NoopSuggester struct{}

func (NoopSuggester) SuggestRoles(context.Context, []ColumnInfo) (*Suggestions, error) {
	return nil, nil
}

// IsNoop reports whether s is the null suggester.
func IsNoop(s Suggester) bool {
	switch s.(type) {
	case nil, NoopSuggester, *NoopSuggester:
		return true
	}
	return false
}
