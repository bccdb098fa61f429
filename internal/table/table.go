package table

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind is the storage type inferred for a column during loading.
type Kind int

const (
	KindText Kind = iota
	KindNumeric
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindDate:
		return "datetime"
	default:
		return "text"
	}
}

// Cell is a single typed value. Text always holds the raw spreadsheet value.
type Cell struct {
	Text string
	Num  float64
	Time time.Time
	Null bool
}

// Key returns the canonical string used for equality and distinct-value
// grouping within a column of the given kind.
func (c Cell) Key(k Kind) string {
	if c.Null {
		return ""
	}
	switch k {
	case KindNumeric:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	case KindDate:
		return c.Time.Format(time.RFC3339)
	default:
		return c.Text
	}
}

// Column is a named, typed sequence of cells.
type Column struct {
	Name string
	Kind Kind
	// Categorical marks the column as explicitly categorical regardless of
	// its cardinality.
	Categorical bool
	Cells       []Cell
}

// Table is an immutable, column-oriented dataset. Operations that change
// rows or columns return a new Table.
type Table struct {
	Name    string
	Columns []*Column
	// origin[i] is the row index in the originally loaded table.
	origin []int
	index  map[string]int
}

// New builds a table from columns of equal length.
func New(name string, cols ...*Column) *Table {
	t := &Table{Name: name, Columns: cols}
	n := 0
	if len(cols) > 0 {
		n = len(cols[0].Cells)
	}
	t.origin = make([]int, n)
	for i := range t.origin {
		t.origin[i] = i
	}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		t.index[strings.ToLower(strings.TrimSpace(c.Name))] = i
	}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.origin) }

// Origin returns the source row index of row i.
func (t *Table) Origin(i int) int { return t.origin[i] }

// Column looks a column up by name, case-insensitively.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return t.Columns[i], true
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Select returns a new table holding only the given rows, in the given order.
func (t *Table) Select(rows []int) *Table {
	out := &Table{Name: t.Name, Columns: make([]*Column, len(t.Columns)), origin: make([]int, len(rows))}
	for j, c := range t.Columns {
		nc := &Column{Name: c.Name, Kind: c.Kind, Categorical: c.Categorical, Cells: make([]Cell, len(rows))}
		for i, r := range rows {
			nc.Cells[i] = c.Cells[r]
		}
		out.Columns[j] = nc
	}
	for i, r := range rows {
		out.origin[i] = t.origin[r]
	}
	out.reindex()
	return out
}

// Mask keeps the rows whose mask entry is true.
func (t *Table) Mask(keep []bool) *Table {
	rows := make([]int, 0, len(keep))
	for i, k := range keep {
		if k {
			rows = append(rows, i)
		}
	}
	return t.Select(rows)
}

// WithColumn returns a copy of t with c appended, or replacing the column of
// the same name. Column slices of t are shared, never written.
func (t *Table) WithColumn(c *Column) *Table {
	out := &Table{Name: t.Name, origin: t.origin}
	out.Columns = make([]*Column, 0, len(t.Columns)+1)
	replaced := false
	for _, old := range t.Columns {
		if strings.EqualFold(old.Name, c.Name) {
			out.Columns = append(out.Columns, c)
			replaced = true
			continue
		}
		out.Columns = append(out.Columns, old)
	}
	if !replaced {
		out.Columns = append(out.Columns, c)
	}
	out.reindex()
	return out
}

// Distinct returns the sorted distinct non-null values of the column.
// Numeric and date columns sort by value, text columns lexically.
func (c *Column) Distinct() []Cell {
	seen := make(map[string]struct{})
	var out []Cell
	for _, v := range c.Cells {
		if v.Null {
			continue
		}
		k := v.Key(c.Kind)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		switch c.Kind {
		case KindNumeric:
			return out[i].Num < out[j].Num
		case KindDate:
			return out[i].Time.Before(out[j].Time)
		default:
			return out[i].Text < out[j].Text
		}
	})
	return out
}

// NumDistinct counts distinct non-null values.
func (c *Column) NumDistinct() int {
	seen := make(map[string]struct{})
	for _, v := range c.Cells {
		if !v.Null {
			seen[v.Key(c.Kind)] = struct{}{}
		}
	}
	return len(seen)
}

// NumRange returns the observed min and max of a numeric column. ok is false
// when the column has no non-null values.
func (c *Column) NumRange() (lo, hi float64, ok bool) {
	for _, v := range c.Cells {
		if v.Null {
			continue
		}
		if !ok || v.Num < lo {
			lo = v.Num
		}
		if !ok || v.Num > hi {
			hi = v.Num
		}
		ok = true
	}
	return lo, hi, ok
}

// TimeRange returns the observed min and max of a date column.
func (c *Column) TimeRange() (lo, hi time.Time, ok bool) {
	for _, v := range c.Cells {
		if v.Null {
			continue
		}
		if !ok || v.Time.Before(lo) {
			lo = v.Time
		}
		if !ok || v.Time.After(hi) {
			hi = v.Time
		}
		ok = true
	}
	return lo, hi, ok
}

// TextColumn builds a text column from raw strings; empty strings are null.
func TextColumn(name string, values []string) *Column {
	c := &Column{Name: name, Kind: KindText, Cells: make([]Cell, len(values))}
	for i, v := range values {
		v = strings.TrimSpace(v)
		c.Cells[i] = Cell{Text: v, Null: v == ""}
	}
	return c
}
