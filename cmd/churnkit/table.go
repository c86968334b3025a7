package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const maxCellWidth = 48

// printTable writes rows under headers with columns padded to the widest
// cell. Cells are cut at maxCellWidth display cells.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i := range row {
			row[i] = runewidth.Truncate(row[i], maxCellWidth, "…")
			if cw := runewidth.StringWidth(row[i]); i < len(widths) && cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	total := 0
	for _, cw := range widths {
		total += cw + 2
	}

	writeRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, c := range cells {
			if i == len(cells)-1 {
				parts[i] = c
				continue
			}
			parts[i] = padRight(c, widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	writeRow(headers)
	fmt.Fprintln(w, strings.Repeat("─", max(total-2, 0)))
	for _, row := range rows {
		writeRow(row)
	}
}

func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: expected %s", format, strings.Join(allowed, " or "))
}
