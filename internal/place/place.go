// Package place builds human-readable location strings from optional
// address parts.
package place

import (
	"strings"

	"github.com/KaramelBytes/promedmap/internal/table"
)

// Separator joins the present fields.
const Separator = ", "

// Format joins the non-missing fields in order. A field is missing when it is
// empty after trimming; missing fields are elided rather than rendered as an
// empty segment. Format returns "" when every field is missing.
func Format(fields []string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, Separator)
}

// FromRow formats the named columns of row i, treating null cells and absent
// columns as missing.
func FromRow(t *table.Table, i int, columns ...string) string {
	fields := make([]string, 0, len(columns))
	for _, name := range columns {
		c, ok := t.Column(name)
		if !ok || c.Cells[i].Null {
			continue
		}
		fields = append(fields, c.Cells[i].Text)
	}
	return Format(fields)
}

// Column derives a text column holding the formatted place of every row.
func Column(t *table.Table, name string, columns ...string) *table.Column {
	out := &table.Column{Name: name, Kind: table.KindText, Cells: make([]table.Cell, t.Len())}
	for i := range out.Cells {
		s := FromRow(t, i, columns...)
		out.Cells[i] = table.Cell{Text: s, Null: s == ""}
	}
	return out
}
