package table

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// naTokens are the spreadsheet placeholders read as missing in numeric and
// date columns. Matching is case-sensitive. In text columns only blank cells
// are null, so labels such as "NA" (Namibia) or "None" survive.
var naTokens = map[string]struct{}{
	"#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {}, "-NaN": {}, "-nan": {},
	"1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {},
	"n/a": {}, "nan": {}, "null": {},
}

func isNA(s string) bool {
	_, ok := naTokens[strings.TrimSpace(s)]
	return ok
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"01/02/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// naive drops the zone while keeping the wall clock reading.
func naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func parseNumeric(s string, dec rune) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0 && cpos > dpos:
			dec = ','
		case cpos >= 0 && dpos < 0:
			dec = ','
		default:
			dec = '.'
		}
	}
	for _, sep := range []rune{',', '.', ' '} {
		if sep != dec {
			raw = strings.ReplaceAll(raw, string(sep), "")
		}
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// inferColumn runs the inspection pass over raw values: numeric when every
// non-null value is a number, date when every non-null value is a date,
// text otherwise. NA tokens count as missing while inferring and stay null
// only when the column ends up numeric or dated.
func inferColumn(name string, raw []string, dec rune) *Column {
	c := &Column{Name: name, Kind: KindText, Cells: make([]Cell, len(raw))}
	numeric, dated, present := true, true, false
	var tokens []int
	for i, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			c.Cells[i] = Cell{Null: true}
			continue
		}
		if isNA(v) {
			c.Cells[i] = Cell{Text: v, Null: true}
			tokens = append(tokens, i)
			continue
		}
		present = true
		cell := Cell{Text: v}
		if numeric {
			if x, ok := parseNumeric(v, dec); ok {
				cell.Num = x
			} else {
				numeric = false
			}
		}
		if dated {
			if t, ok := parseTime(v); ok {
				cell.Time = t
			} else {
				dated = false
			}
		}
		c.Cells[i] = cell
	}
	switch {
	case !present:
	case numeric:
		c.Kind = KindNumeric
	case dated:
		c.Kind = KindDate
	}
	if c.Kind == KindText {
		for _, i := range tokens {
			c.Cells[i].Null = false
		}
	}
	return c
}

// NormalizeDates returns a table in which text columns whose every non-null
// value parses as a date become date columns, and every date column has its
// zone stripped. Columns that fail to parse are left untouched.
func (t *Table) NormalizeDates() *Table {
	out := t
	for _, c := range t.Columns {
		switch c.Kind {
		case KindText:
			if nc, ok := asDates(c); ok {
				out = out.WithColumn(nc)
			}
		case KindDate:
			nc := &Column{Name: c.Name, Kind: KindDate, Categorical: c.Categorical, Cells: make([]Cell, len(c.Cells))}
			for i, v := range c.Cells {
				if !v.Null {
					v.Time = naive(v.Time)
				}
				nc.Cells[i] = v
			}
			out = out.WithColumn(nc)
		}
	}
	return out
}

func asDates(c *Column) (*Column, bool) {
	nc := &Column{Name: c.Name, Kind: KindDate, Categorical: c.Categorical, Cells: make([]Cell, len(c.Cells))}
	seen := false
	for i, v := range c.Cells {
		if v.Null {
			nc.Cells[i] = v
			continue
		}
		tm, ok := parseTime(v.Text)
		if !ok {
			return nil, false
		}
		seen = true
		nc.Cells[i] = Cell{Text: v.Text, Time: naive(tm)}
	}
	return nc, seen
}
