package signals

import (
	"fmt"
	"strings"

	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/mapper"
	"github.com/spboyer/churnkit/internal/schema"
)

const (
	highProbability     = 0.70
	criticalProbability = 0.85
	// minMissingPopular is the number of missing popular services that
	// raises missing_features.
	minMissingPopular = 2
	popularAdoption   = 0.5
	maxMissingListed  = 5
	// manySignals bumps the signal-derived risk by one tier.
	manySignals = 4
)

var notAdoptedValues = map[string]bool{"no": true, "0": true, "false": true, "none": true}

// Signal is one detected risk factor for a customer.
type Signal struct {
	Type        string      `json:"signal_type"`
	Description string      `json:"description"`
	Tier        schema.Tier `json:"risk_level"`
	Evidence    string      `json:"evidence"`
	Column      string      `json:"column_involved,omitempty"`
	// Value is a float64, a string, or a []string of column names.
	Value     any `json:"value,omitempty"`
	Threshold any `json:"threshold,omitempty"`
}

// CustomerSignals collects the signals of one customer.
type CustomerSignals struct {
	CustomerID  string      `json:"customer_id,omitempty"`
	Signals     []Signal    `json:"signals"`
	OverallRisk schema.Tier `json:"overall_risk"`
	Probability *float64    `json:"churn_probability,omitempty"`
}

// NewCustomerSignals returns an empty result at low risk.
func NewCustomerSignals(prob *float64) *CustomerSignals {
	cs := &CustomerSignals{Signals: []Signal{}, Probability: prob}
	cs.updateRisk()
	return cs
}

// Add appends a signal and recomputes the overall risk.
func (c *CustomerSignals) Add(s Signal) {
	c.Signals = append(c.Signals, s)
	c.updateRisk()
}

// SetProbability replaces the churn probability and recomputes the overall
// risk.
func (c *CustomerSignals) SetProbability(p *float64) {
	c.Probability = p
	c.updateRisk()
}

// updateRisk derives the overall tier. A probability, when present, decides
// alone; otherwise the most severe signal decides, raised one tier when there
// are many signals.
func (c *CustomerSignals) updateRisk() {
	if c.Probability != nil {
		c.OverallRisk = ProbabilityTier(*c.Probability)
		return
	}
	severity := schema.TierLow.Severity()
	for _, s := range c.Signals {
		severity = max(severity, s.Tier.Severity())
	}
	if len(c.Signals) >= manySignals {
		severity++
	}
	c.OverallRisk = schema.TierForSeverity(severity)
}

// ProbabilityTier maps a churn probability to a risk tier.
func ProbabilityTier(p float64) schema.Tier {
	switch {
	case p >= 0.70:
		return schema.TierCritical
	case p >= 0.50:
		return schema.TierHigh
	case p >= 0.25:
		return schema.TierMedium
	}
	return schema.TierLow
}

// Detector evaluates rows against thresholds.
type Detector struct {
	th        *Thresholds
	idColumn  string
	costs     []string
	tenures   []string
	contracts []string
	binaries  []string
}

// NewDetector binds the mapped roles and thresholds.
func NewDetector(mapping *mapper.MappingResult, th *Thresholds) (*Detector, error) {
	if mapping == nil {
		return nil, ErrNoMapping
	}
	if th == nil {
		return nil, ErrNoThresholds
	}
	d := &Detector{
		th:        th,
		costs:     mapping.ColumnsByRole(schema.RoleCostMonthly, schema.RoleCostTotal),
		tenures:   mapping.ColumnsByRole(schema.RoleTenure),
		contracts: mapping.ColumnsByRole(schema.RoleContract),
		binaries:  mapping.ColumnsByRole(schema.RoleBinary),
	}
	d.idColumn, _ = mapping.FirstByRole(schema.RoleID)
	return d, nil
}

// Detect runs every check on one row. prob may be nil.
func (d *Detector) Detect(row dataset.Row, prob *float64) *CustomerSignals {
	cs := NewCustomerSignals(prob)
	if d.idColumn != "" {
		if id, ok := row[d.idColumn]; ok {
			cs.CustomerID = id
		}
	}

	if prob != nil && *prob >= highProbability {
		tier := schema.TierHigh
		if *prob >= criticalProbability {
			tier = schema.TierCritical
		}
		cs.Add(Signal{
			Type:        schema.SignalHighChurnProbability,
			Description: "Model predicts high likelihood of churn",
			Tier:        tier,
			Evidence:    fmt.Sprintf("Churn probability: %.1f%%", *prob*100),
			Value:       *prob,
			Threshold:   highProbability,
		})
	}

	d.checkHighCost(row, cs)
	d.checkLowTenure(row, cs)
	d.checkCommitment(row, cs)
	d.checkMissingFeatures(row, cs)

	cs.updateRisk()
	return cs
}

// DetectBatch runs Detect for every row of frame in order. probs is either
// nil or one probability per row.
func (d *Detector) DetectBatch(frame *dataset.Frame, probs []float64) ([]*CustomerSignals, error) {
	if probs != nil && len(probs) != frame.Len() {
		return nil, fmt.Errorf("got %d probabilities for %d rows", len(probs), frame.Len())
	}
	out := make([]*CustomerSignals, frame.Len())
	for i := range out {
		var p *float64
		if probs != nil {
			v := probs[i]
			p = &v
		}
		out[i] = d.Detect(frame.Row(i), p)
	}
	return out, nil
}

func (d *Detector) checkHighCost(row dataset.Row, cs *CustomerSignals) {
	for _, col := range d.costs {
		raw, ok := row[col]
		if !ok {
			continue
		}
		threshold, ok := d.th.High[col]
		if !ok {
			continue
		}
		v := dataset.ParseNumber(raw)
		if !isNumber(v) || !isNumber(threshold) || v <= threshold {
			continue
		}
		cs.Add(Signal{
			Type:        schema.SignalHighCost,
			Description: fmt.Sprintf("High charges in %s", col),
			Tier:        schema.TierMedium,
			Evidence:    fmt.Sprintf("%s = %.2f (above 75th percentile: %.2f)", col, v, threshold),
			Column:      col,
			Value:       v,
			Threshold:   threshold,
		})
	}
}

func (d *Detector) checkLowTenure(row dataset.Row, cs *CustomerSignals) {
	for _, col := range d.tenures {
		raw, ok := row[col]
		if !ok {
			continue
		}
		threshold, ok := d.th.Low[col]
		if !ok {
			continue
		}
		v := dataset.ParseNumber(raw)
		if !isNumber(v) || v >= threshold {
			continue
		}
		cs.Add(Signal{
			Type:        schema.SignalLowTenure,
			Description: "New or short-tenure customer",
			Tier:        schema.TierHigh,
			Evidence: fmt.Sprintf("%s = %s (below 25th percentile: %s)",
				col, dataset.FormatFloat(v), dataset.FormatFloat(threshold)),
			Column:    col,
			Value:     v,
			Threshold: threshold,
		})
	}
}

func (d *Detector) checkCommitment(row dataset.Row, cs *CustomerSignals) {
	for _, col := range d.contracts {
		raw, ok := row[col]
		if !ok || raw == "" {
			continue
		}
		low, ok := d.th.LowCommitment[col]
		if !ok {
			continue
		}
		folded := schema.FoldValue(raw)
		for _, v := range low {
			if v != folded {
				continue
			}
			cs.Add(Signal{
				Type:        schema.SignalNoCommitment,
				Description: "No long-term commitment",
				Tier:        schema.TierHigh,
				Evidence:    fmt.Sprintf("%s = '%s' (short-term/no contract)", col, raw),
				Column:      col,
				Value:       raw,
			})
			break
		}
	}
}

func (d *Detector) checkMissingFeatures(row dataset.Row, cs *CustomerSignals) {
	var missing []string
	for _, col := range d.binaries {
		raw, ok := row[col]
		if !ok {
			continue
		}
		rate, ok := d.th.Adoption[col]
		if !ok || rate <= popularAdoption {
			continue
		}
		if notAdoptedValues[schema.FoldValue(raw)] {
			missing = append(missing, col)
		}
	}
	if len(missing) < minMissingPopular {
		return
	}
	listed := missing[:min(len(missing), maxMissingListed)]
	cs.Add(Signal{
		Type:        schema.SignalMissingFeatures,
		Description: "Lacks popular value-added services",
		Tier:        schema.TierMedium,
		Evidence:    "Missing: " + strings.Join(listed, ", "),
		Value:       missing,
	})
}
