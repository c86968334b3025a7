package validation

import (
	"fmt"
	"strings"
)

const rule = "============================================================"

// Report renders a human-readable validation report.
func Report(res *Result) string {
	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString("DATASET VALIDATION REPORT\n")
	b.WriteString(rule + "\n")

	status := "✅ VALID"
	if !res.IsValid {
		status = "❌ INVALID"
	}
	fmt.Fprintf(&b, "\nStatus: %s\n", status)
	fmt.Fprintf(&b, "Data Quality Score: %.1f/100\n", res.QualityScore)

	if m := res.Mapping; m != nil {
		b.WriteString("\nColumn Mappings:\n")
		for _, cm := range m.Mappings {
			fmt.Fprintf(&b, "  • %s → %s (%s, %.0f%%)\n", cm.SourceColumn, cm.Role, cm.Method, cm.Confidence*100)
		}
		if len(m.Unmapped) > 0 {
			b.WriteString("\n⚠️ Unmapped Columns:\n")
			for _, col := range m.Unmapped {
				fmt.Fprintf(&b, "  • %s\n", col)
			}
		}
	}

	if len(res.Errors) > 0 {
		b.WriteString("\n❌ Errors:\n")
		for _, e := range res.Errors {
			fmt.Fprintf(&b, "  • %s\n", e)
		}
	}
	if len(res.Warnings) > 0 {
		b.WriteString("\n⚠️ Warnings:\n")
		for _, w := range res.Warnings {
			fmt.Fprintf(&b, "  • %s\n", w)
		}
	}

	if res.Mapping != nil && res.Mapping.DomainInsight != "" {
		b.WriteString("\nAI Insights:\n")
		fmt.Fprintf(&b, "  %s\n", res.Mapping.DomainInsight)
	}

	b.WriteString("\n" + rule + "\n")
	return b.String()
}
