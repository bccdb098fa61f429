// Package filter narrows a table with per-column controls.
//
// Columns are classified once by Inspect into a closed set of kinds. The
// caller's choices arrive as a Spec whose selections are one of four variants,
// and Build composes the active selections with logical AND.
package filter

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/KaramelBytes/promedmap/internal/table"
)

// CategoricalLimit is the distinct-value count below which a column is
// treated as categorical.
const CategoricalLimit = 10

// Kind selects the control presented for a column.
type Kind int

const (
	Categorical Kind = iota
	Numeric
	Date
	Text
)

func (k Kind) String() string {
	switch k {
	case Categorical:
		return "categorical"
	case Numeric:
		return "numeric"
	case Date:
		return "date"
	default:
		return "text"
	}
}

// Control describes the UI primitive to request for one column.
type Control struct {
	Column string
	Kind   Kind
	Label  string
	// Categorical: distinct values in sorted order.
	Options []string
	// Numeric bounds. Step is (Max-Min)/100.
	Min, Max, Step float64
	// Date bounds.
	MinDate, MaxDate time.Time
	// Selection is the effective selection for the column, including the
	// default when the caller supplied none.
	Selection Selection
}

// Selection is the value returned by a control. The concrete types are
// CategorySelection, RangeSelection, DateSelection and PatternSelection.
type Selection interface {
	kind() Kind
}

// CategorySelection keeps rows whose value is one of Values. An empty set
// keeps no rows.
type CategorySelection struct{ Values []string }

// RangeSelection keeps rows with Min <= value <= Max.
type RangeSelection struct{ Min, Max float64 }

// DateSelection keeps rows between From and To inclusive. It is applied only
// when both ends are set.
type DateSelection struct{ From, To time.Time }

// PatternSelection keeps rows whose text matches Pattern as a regular
// expression, or contains it literally when it does not compile. An empty
// pattern keeps every row.
type PatternSelection struct{ Pattern string }

func (CategorySelection) kind() Kind { return Categorical }
func (RangeSelection) kind() Kind    { return Numeric }
func (DateSelection) kind() Kind     { return Date }
func (PatternSelection) kind() Kind  { return Text }

// Spec is the caller's filter state.
type Spec struct {
	// Enabled is the "Filter data" toggle. When false Build is the identity.
	Enabled bool
	// Columns lists the columns chosen for filtering, in order.
	Columns []string
	// Selections holds the control value per column name.
	Selections map[string]Selection
}

// Select records sel for column and adds the column to Columns if absent.
func (s *Spec) Select(column string, sel Selection) {
	if s.Selections == nil {
		s.Selections = map[string]Selection{}
	}
	s.Selections[column] = sel
	for _, c := range s.Columns {
		if c == column {
			return
		}
	}
	s.Columns = append(s.Columns, column)
}

// Inspect classifies every filterable column present in t. Columns missing
// from t are skipped.
func Inspect(t *table.Table, filterable []string) []Control {
	out := make([]Control, 0, len(filterable))
	for _, name := range filterable {
		c, ok := t.Column(name)
		if !ok {
			continue
		}
		out = append(out, inspect(c))
	}
	return out
}

func inspect(c *table.Column) Control {
	ctl := Control{Column: c.Name, Label: "Values for " + c.Name}
	switch {
	case c.Categorical || c.NumDistinct() < CategoricalLimit:
		ctl.Kind = Categorical
		for _, v := range c.Distinct() {
			ctl.Options = append(ctl.Options, optionValue(v, c.Kind))
		}
		ctl.Selection = CategorySelection{}
	case c.Kind == table.KindNumeric:
		ctl.Kind = Numeric
		ctl.Min, ctl.Max, _ = c.NumRange()
		ctl.Step = (ctl.Max - ctl.Min) / 100
		ctl.Selection = RangeSelection{Min: ctl.Min, Max: ctl.Max}
	case c.Kind == table.KindDate:
		ctl.Kind = Date
		ctl.MinDate, ctl.MaxDate, _ = c.TimeRange()
		ctl.Selection = DateSelection{From: ctl.MinDate, To: ctl.MaxDate}
	default:
		ctl.Kind = Text
		ctl.Label = "Substring or regex in " + c.Name
		ctl.Selection = PatternSelection{}
	}
	return ctl
}

// Build returns the rows of t that satisfy every selected column's control,
// together with the controls for the selected columns. When the spec is
// disabled t itself is returned. t is never modified.
func Build(t *table.Table, filterable []string, spec Spec) (*table.Table, []Control) {
	if !spec.Enabled {
		return t, nil
	}
	t = t.NormalizeDates()

	allowed := make(map[string]bool, len(filterable))
	for _, f := range filterable {
		allowed[strings.ToLower(f)] = true
	}
	keep := make([]bool, t.Len())
	for i := range keep {
		keep[i] = true
	}
	var controls []Control
	seen := map[string]bool{}
	for _, name := range spec.Columns {
		key := strings.ToLower(name)
		if !allowed[key] || seen[key] {
			continue
		}
		seen[key] = true
		c, ok := t.Column(name)
		if !ok {
			continue
		}
		ctl := inspect(c)
		if sel, ok := lookup(spec.Selections, name); ok && sel.kind() == ctl.Kind {
			ctl.Selection = merge(ctl, sel)
		}
		controls = append(controls, ctl)
		apply(c, ctl.Selection, keep)
	}
	return t.Mask(keep), controls
}

func lookup(m map[string]Selection, name string) (Selection, bool) {
	if sel, ok := m[name]; ok && sel != nil {
		return sel, true
	}
	for k, sel := range m {
		if strings.EqualFold(k, name) && sel != nil {
			return sel, true
		}
	}
	return nil, false
}

// merge replaces unbounded range ends with the observed bounds.
func merge(ctl Control, sel Selection) Selection {
	r, ok := sel.(RangeSelection)
	if !ok {
		return sel
	}
	if math.IsInf(r.Min, -1) {
		r.Min = ctl.Min
	}
	if math.IsInf(r.Max, 1) {
		r.Max = ctl.Max
	}
	if r.Min > r.Max {
		r.Min, r.Max = r.Max, r.Min
	}
	return r
}

// apply clears keep[i] for rows rejected by sel. Null cells never match a
// selection that filters.
func apply(c *table.Column, sel Selection, keep []bool) {
	switch s := sel.(type) {
	case CategorySelection:
		set := make(map[string]bool, len(s.Values))
		for _, v := range s.Values {
			set[v] = true
		}
		for i, v := range c.Cells {
			keep[i] = keep[i] && !v.Null && set[optionValue(v, c.Kind)]
		}
	case RangeSelection:
		for i, v := range c.Cells {
			keep[i] = keep[i] && !v.Null && v.Num >= s.Min && v.Num <= s.Max
		}
	case DateSelection:
		if s.From.IsZero() || s.To.IsZero() {
			return
		}
		for i, v := range c.Cells {
			keep[i] = keep[i] && !v.Null && !v.Time.Before(s.From) && !v.Time.After(s.To)
		}
	case PatternSelection:
		if s.Pattern == "" {
			return
		}
		match := matcher(s.Pattern)
		for i, v := range c.Cells {
			keep[i] = keep[i] && !v.Null && match(v.Text)
		}
	}
}

func matcher(pattern string) func(string) bool {
	if re, err := regexp.Compile(pattern); err == nil {
		return re.MatchString
	}
	return func(s string) bool { return strings.Contains(s, pattern) }
}

// optionValue renders a cell the way categorical options and selections name
// it.
func optionValue(v table.Cell, k table.Kind) string {
	if k == table.KindDate {
		if v.Time.Hour() == 0 && v.Time.Minute() == 0 && v.Time.Second() == 0 {
			return v.Time.Format(DateLayout)
		}
		return v.Time.Format("2006-01-02 15:04:05")
	}
	return v.Key(k)
}
