// Package signals detects per-customer churn risk signals from mapped column
// roles and data-driven thresholds computed once on a reference dataset.
package signals

import (
	"errors"
	"math"
	"slices"
	"strings"

	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/mapper"
	"github.com/spboyer/churnkit/internal/schema"
	"github.com/spboyer/churnkit/internal/statistics"
)

var (
	// ErrNoMapping is returned when thresholds or a detector are requested
	// without column mappings.
	ErrNoMapping = errors.New("column mappings not set")
	// ErrNoThresholds is returned when a detector is built without thresholds.
	ErrNoThresholds = errors.New("thresholds not computed")
)

// lowCommitmentMarkers flag contract values without long-term commitment.
var lowCommitmentMarkers = []string{"month", "no ", "none", "basic", "free"}

// adoptedValues are the case-folded values that count as having a service.
var adoptedValues = map[string]bool{"yes": true, "1": true, "true": true}

// Thresholds are the reference statistics used by the detector. They are
// computed once and read-only afterwards.
type Thresholds struct {
	High          map[string]float64  `json:"high"`
	Low           map[string]float64  `json:"low"`
	Median        map[string]float64  `json:"median"`
	LowCommitment map[string][]string `json:"low_commitment"`
	Adoption      map[string]float64  `json:"service_engagement"`
}

func newThresholds() *Thresholds {
	return &Thresholds{
		High:          map[string]float64{},
		Low:           map[string]float64{},
		Median:        map[string]float64{},
		LowCommitment: map[string][]string{},
		Adoption:      map[string]float64{},
	}
}

// ComputeThresholds derives thresholds from frame:
//   - cost columns: 75th percentile (High) and median;
//   - tenure columns: 25th percentile (Low) and median;
//   - contract columns: the distinct values that signal low commitment;
//   - binary columns: the share of rows that have the service.
func ComputeThresholds(frame *dataset.Frame, mapping *mapper.MappingResult) (*Thresholds, error) {
	if mapping == nil {
		return nil, ErrNoMapping
	}
	th := newThresholds()

	for _, name := range mapping.ColumnsByRole(schema.RoleCostMonthly, schema.RoleCostTotal) {
		if vals, ok := numericValues(frame, name); ok {
			th.High[name] = statistics.Quantile(vals, 0.75)
			th.Median[name] = statistics.Median(vals)
		}
	}
	for _, name := range mapping.ColumnsByRole(schema.RoleTenure) {
		if vals, ok := numericValues(frame, name); ok {
			th.Low[name] = statistics.Quantile(vals, 0.25)
			th.Median[name] = statistics.Median(vals)
		}
	}
	for _, name := range mapping.ColumnsByRole(schema.RoleContract) {
		col, ok := frame.Column(name)
		if !ok {
			continue
		}
		low := []string{}
		for _, v := range col.Distinct() {
			f := schema.FoldValue(v)
			for _, marker := range lowCommitmentMarkers {
				if strings.Contains(f, marker) {
					low = append(low, f)
					break
				}
			}
		}
		slices.Sort(low)
		th.LowCommitment[name] = slices.Compact(low)
	}
	for _, name := range mapping.ColumnsByRole(schema.RoleBinary) {
		col, ok := frame.Column(name)
		if !ok {
			continue
		}
		adopted := 0
		for i := 0; i < col.Len(); i++ {
			if adoptedValues[schema.FoldValue(col.Text(i))] {
				adopted++
			}
		}
		if n := col.Len(); n > 0 {
			th.Adoption[name] = float64(adopted) / float64(n)
		} else {
			th.Adoption[name] = 0
		}
	}
	return th, nil
}

// numericValues coerces a column and reports whether any number survived.
func numericValues(frame *dataset.Frame, name string) ([]float64, bool) {
	col, ok := frame.Column(name)
	if !ok {
		return nil, false
	}
	vals := statistics.Finite(col.Coerce())
	return vals, len(vals) > 0
}

// Keys returns the flat "<column>_<statistic>" view of the thresholds, with
// adoption rates under "service_engagement".
func (t *Thresholds) Keys() map[string]any {
	out := make(map[string]any, len(t.High)+len(t.Low)+len(t.Median)+len(t.LowCommitment)+1)
	for col, v := range t.High {
		out[col+"_high"] = v
	}
	for col, v := range t.Low {
		out[col+"_low"] = v
	}
	for col, v := range t.Median {
		out[col+"_median"] = v
	}
	for col, v := range t.LowCommitment {
		out[col+"_low_commitment"] = v
	}
	engagement := make(map[string]float64, len(t.Adoption))
	for col, v := range t.Adoption {
		engagement[col] = v
	}
	out["service_engagement"] = engagement
	return out
}

func isNumber(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
