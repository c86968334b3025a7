package mapper

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/schema"
	"golang.org/x/term"
)

const skipChoice = "skip"

// Interactive asks the user to confirm or change the role of every column,
// starting from base. Columns set to "skip" are left unmapped. Changed
// columns become manual mappings.
func (m *Mapper) Interactive(in io.Reader, out io.Writer, frame *dataset.Frame, base *MappingResult) (*MappingResult, error) {
	choices := make(map[string]*string, frame.Width())
	var fields []huh.Field

	for _, col := range frame.Columns() {
		current := skipChoice
		desc := "unmapped"
		if mp, ok := base.Lookup(col.Name); ok {
			current = string(mp.Role)
			desc = fmt.Sprintf("auto: %s (%s, %.0f%%)", mp.Role, mp.Method, mp.Confidence*100)
		}
		if sample := col.NonNull(3); len(sample) > 0 {
			desc += " | sample: " + strings.Join(sample, ", ")
		}

		value := current
		choices[col.Name] = &value

		opts := []huh.Option[string]{huh.NewOption(skipChoice, skipChoice)}
		for _, r := range schema.Roles {
			opts = append(opts, huh.NewOption(string(r), string(r)))
		}
		fields = append(fields, huh.NewSelect[string]().
			Title(col.Name).
			Description(desc).
			Options(opts...).
			Value(&value))
	}

	form := huh.NewForm(huh.NewGroup(fields...)).
		WithInput(in).
		WithOutput(out)

	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("interactive mapping failed: %w", err)
	}

	selected := make(map[string]string, len(choices))
	for col, v := range choices {
		selected[col] = *v
	}
	return applySelections(frame, base, selected), nil
}

// applySelections folds per-column choices into base. A choice equal to the
// current role keeps the existing mapping.
func applySelections(frame *dataset.Frame, base *MappingResult, selected map[string]string) *MappingResult {
	if base == nil {
		base = &MappingResult{}
	}
	b := builderFrom(base)
	for _, col := range frame.Names() {
		choice, ok := selected[col]
		if !ok {
			continue
		}
		if choice == skipChoice {
			delete(b.byColumn, col)
			continue
		}
		role, err := schema.ParseRole(choice)
		if err != nil {
			b.warn(fmt.Sprintf("Unknown type '%s' for column '%s'", choice, col))
			continue
		}
		if cur, ok := b.byColumn[col]; ok && cur.Role == role {
			continue
		}
		b.set(ColumnMapping{
			SourceColumn: col,
			Role:         role,
			Confidence:   1.0,
			Method:       MethodManual,
			Notes:        "User override",
		})
	}
	return b.result(frame.Names())
}
