package mapper

import (
	"github.com/spboyer/churnkit/internal/schema"
)

// Method records how a mapping was produced.
type Method string

const (
	MethodKeyword       Method = "keyword"
	MethodValueHint     Method = "value_hint"
	MethodTypeInference Method = "type_inference"
	MethodSemantic      Method = "semantic_model"
	MethodManual        Method = "manual"
)

// ColumnMapping assigns a role to one source column.
type ColumnMapping struct {
	SourceColumn string      `json:"source_column"`
	Role         schema.Role `json:"role"`
	Confidence   float64     `json:"confidence"`
	Method       Method      `json:"method"`
	Notes        string      `json:"notes,omitempty"`
}

// MappingResult is the outcome of one mapping operation. Mappings are unique
// by column and ordered by the dataset's column order.
type MappingResult struct {
	Mappings      []ColumnMapping `json:"mappings"`
	Unmapped      []string        `json:"unmapped"`
	Warnings      []string        `json:"warnings"`
	DomainInsight string          `json:"domain_insight,omitempty"`
}

// Lookup returns the mapping for a column.
func (r *MappingResult) Lookup(column string) (ColumnMapping, bool) {
	if r == nil {
		return ColumnMapping{}, false
	}
	for _, m := range r.Mappings {
		if m.SourceColumn == column {
			return m, true
		}
	}
	return ColumnMapping{}, false
}

// RoleOf returns the role of a column, or "" when unmapped.
func (r *MappingResult) RoleOf(column string) schema.Role {
	m, _ := r.Lookup(column)
	return m.Role
}

// ColumnsByRole returns the columns mapped to any of roles, in column order.
func (r *MappingResult) ColumnsByRole(roles ...schema.Role) []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, m := range r.Mappings {
		for _, role := range roles {
			if m.Role == role {
				out = append(out, m.SourceColumn)
				break
			}
		}
	}
	return out
}

// FirstByRole returns the first column mapped to role.
func (r *MappingResult) FirstByRole(role schema.Role) (string, bool) {
	cols := r.ColumnsByRole(role)
	if len(cols) == 0 {
		return "", false
	}
	return cols[0], true
}

// HasRole reports whether at least one column carries role.
func (r *MappingResult) HasRole(role schema.Role) bool {
	_, ok := r.FirstByRole(role)
	return ok
}

// ToMap returns the plain column to role view.
func (r *MappingResult) ToMap() map[string]schema.Role {
	out := make(map[string]schema.Role, len(r.Mappings))
	for _, m := range r.Mappings {
		out[m.SourceColumn] = m.Role
	}
	return out
}

// ExportEntry is one column in an exported mapping document.
type ExportEntry struct {
	Type       schema.Role `json:"type" yaml:"type"`
	Confidence float64     `json:"confidence" yaml:"confidence"`
	Method     Method      `json:"method" yaml:"method"`
	Notes      string      `json:"notes" yaml:"notes"`
}

// Export is the document form of a mapping result, suitable for JSON or
// YAML output and for reuse as an override file.
type Export struct {
	Mappings map[string]ExportEntry `json:"mappings" yaml:"mappings"`
	Unmapped []string               `json:"unmapped" yaml:"unmapped"`
	Warnings []string               `json:"warnings" yaml:"warnings"`
	Insights string                 `json:"insights,omitempty" yaml:"insights,omitempty"`
}

// Export builds the document form of r.
func (r *MappingResult) Export() *Export {
	doc := &Export{
		Mappings: make(map[string]ExportEntry, len(r.Mappings)),
		Unmapped: append([]string{}, r.Unmapped...),
		Warnings: append([]string{}, r.Warnings...),
		Insights: r.DomainInsight,
	}
	for _, m := range r.Mappings {
		doc.Mappings[m.SourceColumn] = ExportEntry{
			Type:       m.Role,
			Confidence: m.Confidence,
			Method:     m.Method,
			Notes:      m.Notes,
		}
	}
	return doc
}

// Overrides converts an exported document back into manual overrides.
func (e *Export) Overrides() map[string]string {
	out := make(map[string]string, len(e.Mappings))
	for col, entry := range e.Mappings {
		out[col] = string(entry.Type)
	}
	return out
}

// builder accumulates mappings keyed by column and emits them in dataset
// column order.
type builder struct {
	byColumn map[string]ColumnMapping
	warnings []string
	insight  string
}

func newBuilder() *builder {
	return &builder{byColumn: map[string]ColumnMapping{}}
}

func builderFrom(r *MappingResult) *builder {
	b := newBuilder()
	for _, m := range r.Mappings {
		b.byColumn[m.SourceColumn] = m
	}
	b.warnings = append(b.warnings, r.Warnings...)
	b.insight = r.DomainInsight
	return b
}

func (b *builder) set(m ColumnMapping) {
	b.byColumn[m.SourceColumn] = m
}

func (b *builder) warn(msg string) {
	b.warnings = append(b.warnings, msg)
}

func (b *builder) result(columns []string) *MappingResult {
	res := &MappingResult{
		Mappings:      []ColumnMapping{},
		Unmapped:      []string{},
		Warnings:      b.warnings,
		DomainInsight: b.insight,
	}
	if res.Warnings == nil {
		res.Warnings = []string{}
	}
	for _, col := range columns {
		if m, ok := b.byColumn[col]; ok {
			res.Mappings = append(res.Mappings, m)
		} else {
			res.Unmapped = append(res.Unmapped, col)
		}
	}
	return res
}
