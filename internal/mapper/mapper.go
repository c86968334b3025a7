// Package mapper infers the abstract role of every column of a dataset using
// keyword matching, value hints, type inference and an optional semantic
// suggester, and merges manual overrides on top.
package mapper

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/schema"
)

// Mode selects how mappings are produced.
type Mode string

const (
	ModeManual Mode = "manual"
	ModeAuto   Mode = "auto"
	ModeHybrid Mode = "hybrid"
)

// ParseMode validates a mode name. The empty string selects auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeManual:
		return ModeManual, nil
	case ModeHybrid:
		return ModeHybrid, nil
	}
	return "", fmt.Errorf("unknown mapping mode %q (available: manual, auto, hybrid)", s)
}

// Request configures one Map call.
type Request struct {
	Mode Mode
	// Overrides maps column name to role name. Unknown roles and columns
	// become warnings.
	Overrides   map[string]string
	UseSemantic bool
}

// Mapper assigns roles to dataset columns.
type Mapper struct {
	suggester Suggester
	logger    *slog.Logger
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithSuggester sets the semantic suggester consulted in auto and hybrid mode.
func WithSuggester(s Suggester) Option {
	return func(m *Mapper) {
		if s != nil {
			m.suggester = s
		}
	}
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mapper) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Mapper. Without options it never calls out of process.
func New(opts ...Option) *Mapper {
	m := &Mapper{suggester: NoopSuggester{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

const (
	valueHintConfidence = 0.85
	semanticConfidence  = 0.85
	semanticReplaceAt   = 0.8
	sampleSize          = 5
)

// Map produces a MappingResult for every column of frame.
func (m *Mapper) Map(ctx context.Context, frame *dataset.Frame, req Request) (*MappingResult, error) {
	if frame == nil {
		return nil, fmt.Errorf("mapping: nil dataset")
	}
	mode := req.Mode
	if mode == "" {
		mode = ModeAuto
	}

	switch mode {
	case ModeManual:
		b := newBuilder()
		m.applyOverrides(b, frame, req.Overrides, "User-provided mapping")
		return b.result(frame.Names()), nil
	case ModeAuto, ModeHybrid:
		b := m.autoDetect(ctx, frame, req.UseSemantic)
		if mode == ModeHybrid {
			m.applyOverrides(b, frame, req.Overrides, "User override")
		}
		return b.result(frame.Names()), nil
	}
	return nil, fmt.Errorf("unknown mapping mode %q (available: manual, auto, hybrid)", mode)
}

// Merge returns a copy of base with overrides applied as manual mappings.
// Invalid overrides become warnings on the copy.
func (m *Mapper) Merge(frame *dataset.Frame, base *MappingResult, overrides map[string]string) *MappingResult {
	b := builderFrom(base)
	m.applyOverrides(b, frame, overrides, "User override")
	return b.result(frame.Names())
}

func (m *Mapper) applyOverrides(b *builder, frame *dataset.Frame, overrides map[string]string, note string) {
	cols := make([]string, 0, len(overrides))
	for col := range overrides {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	for _, col := range cols {
		name := overrides[col]
		if !frame.Has(col) {
			b.warn(fmt.Sprintf("Column '%s' not found in dataset", col))
			continue
		}
		role, err := schema.ParseRole(name)
		if err != nil {
			b.warn(fmt.Sprintf("Unknown type '%s' for column '%s'", name, col))
			continue
		}
		b.set(ColumnMapping{
			SourceColumn: col,
			Role:         role,
			Confidence:   1.0,
			Method:       MethodManual,
			Notes:        note,
		})
	}
}

func (m *Mapper) autoDetect(ctx context.Context, frame *dataset.Frame, useSemantic bool) *builder {
	b := newBuilder()
	for _, col := range frame.Columns() {
		mapping, ok := matchKeyword(col.Name)
		if !ok {
			mapping, ok = matchValueHint(col)
		}
		if !ok {
			mapping, ok = inferType(col)
		}
		if ok {
			b.set(mapping)
		}
	}

	if useSemantic && !IsNoop(m.suggester) {
		m.applySuggestions(ctx, b, frame)
	}
	return b
}

func (m *Mapper) applySuggestions(ctx context.Context, b *builder, frame *dataset.Frame) {
	infos := make([]ColumnInfo, 0, frame.Width())
	for _, col := range frame.Columns() {
		infos = append(infos, ColumnInfo{
			Name:     col.Name,
			DType:    col.Kind.String(),
			Distinct: len(col.Distinct()),
			Sample:   col.NonNull(sampleSize),
		})
	}

	sugg, err := m.suggester.SuggestRoles(ctx, infos)
	if err != nil {
		m.logger.Warn("semantic column suggestion failed", "error", err)
		return
	}
	if sugg == nil {
		return
	}
	b.insight = sugg.Insight

	for _, col := range frame.Names() {
		name, ok := sugg.Roles[col]
		if !ok {
			continue
		}
		role, err := schema.ParseRole(name)
		if err != nil {
			m.logger.Debug("ignoring suggested role", "column", col, "role", name)
			continue
		}
		if cur, ok := b.byColumn[col]; ok && cur.Confidence >= semanticReplaceAt {
			continue
		}
		b.set(ColumnMapping{
			SourceColumn: col,
			Role:         role,
			Confidence:   semanticConfidence,
			Method:       MethodSemantic,
			Notes:        "Detected by semantic analysis",
		})
	}
}

// targetNameHints gate the value-hint fallback.
var targetNameHints = []string{"churn", "churned", "cancelled", "left", "attrition", "exit", "target", "label"}

func matchValueHint(col *dataset.Column) (ColumnMapping, bool) {
	name := Normalize(col.Name)
	candidate := false
	for _, kw := range targetNameHints {
		if strings.Contains(name, kw) {
			candidate = true
			break
		}
	}
	if !candidate {
		return ColumnMapping{}, false
	}

	target, _ := schema.Lookup(schema.RoleTarget)
	hints := make(map[string]bool, len(target.ValueHints))
	for _, h := range target.ValueHints {
		hints[h] = true
	}

	distinct := foldedDistinct(col)
	if len(distinct) == 0 {
		return ColumnMapping{}, false
	}
	matches := 0
	for _, v := range distinct {
		if hints[v] {
			matches++
		}
	}
	if float64(matches) < float64(len(distinct))*0.5 {
		return ColumnMapping{}, false
	}
	return ColumnMapping{
		SourceColumn: col.Name,
		Role:         schema.RoleTarget,
		Confidence:   valueHintConfidence,
		Method:       MethodValueHint,
		Notes:        "Values and name match target pattern",
	}, true
}

var binaryVocabularies = []map[string]bool{
	{"yes": true, "no": true},
	{"0": true, "1": true},
	{"true": true, "false": true},
	{"y": true, "n": true},
}

var costNameHints = []string{"charge", "price", "cost", "amount", "fee"}

func inferType(col *dataset.Column) (ColumnMapping, bool) {
	distinct := col.Distinct()

	if len(distinct) > 0 && len(distinct) <= 3 {
		folded := foldedDistinct(col)
		for _, vocab := range binaryVocabularies {
			if subsetOf(folded, vocab) {
				return ColumnMapping{
					SourceColumn: col.Name,
					Role:         schema.RoleBinary,
					Confidence:   0.8,
					Method:       MethodTypeInference,
					Notes:        "Binary values detected",
				}, true
			}
		}
	}

	if col.Kind == dataset.Numeric {
		if lo, ok := minValue(col.Floats()); ok && lo >= 0 {
			lower := strings.ToLower(col.Name)
			for _, k := range costNameHints {
				if strings.Contains(lower, k) {
					return ColumnMapping{
						SourceColumn: col.Name,
						Role:         schema.RoleCostMonthly,
						Confidence:   0.6,
						Method:       MethodTypeInference,
						Notes:        "Numeric with cost-related name",
					}, true
				}
			}
			return ColumnMapping{
				SourceColumn: col.Name,
				Role:         schema.RoleNumeric,
				Confidence:   0.5,
				Method:       MethodTypeInference,
				Notes:        "Generic numeric column",
			}, true
		}
	}

	if n := len(distinct); n > 2 && n < 20 {
		return ColumnMapping{
			SourceColumn: col.Name,
			Role:         schema.RoleCategorical,
			Confidence:   0.5,
			Method:       MethodTypeInference,
			Notes:        fmt.Sprintf("Categorical with %d unique values", n),
		}, true
	}
	return ColumnMapping{}, false
}

func foldedDistinct(col *dataset.Column) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range col.Distinct() {
		f := schema.FoldValue(v)
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func subsetOf(vals []string, vocab map[string]bool) bool {
	for _, v := range vals {
		if !vocab[v] {
			return false
		}
	}
	return true
}

func minValue(vals []float64) (float64, bool) {
	lo, found := math.Inf(1), false
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		found = true
		lo = min(lo, v)
	}
	return lo, found
}
