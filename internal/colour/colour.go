// Package colour assigns stable, visually distinct RGB colours to category
// labels such as disease names.
//
// A Table is a value: For and Assign never modify the table they are given
// and return an updated copy instead, so callers thread the table through
// their pipeline explicitly.
package colour

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Channel bounds for generated colours. The low bound keeps points away from
// near-black, which reads poorly against the map.
const (
	MinChannel = 10
	MaxChannel = 255
)

// RGB is a colour triple.
type RGB [3]int

// String renders the triple as a JSON array, e.g. "[12, 200, 31]".
func (c RGB) String() string {
	return fmt.Sprintf("[%d, %d, %d]", c[0], c[1], c[2])
}

// Hex renders the triple as a CSS colour.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

// Valid reports whether every channel is a byte value.
func (c RGB) Valid() bool {
	for _, v := range c {
		if v < 0 || v > 255 {
			return false
		}
	}
	return true
}

// ParseRGB decodes a JSON array of three integers. The value is decoded, never
// evaluated.
func ParseRGB(s string) (RGB, error) {
	var vals []int
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &vals); err != nil {
		return RGB{}, errors.Wrapf(err, "parse colour %q", s)
	}
	if len(vals) != 3 {
		return RGB{}, errors.Errorf("parse colour %q: want 3 channels, got %d", s, len(vals))
	}
	c := RGB{vals[0], vals[1], vals[2]}
	if !c.Valid() {
		return RGB{}, errors.Errorf("parse colour %q: channel out of range", s)
	}
	return c, nil
}

// Source draws random integers in [0, n). *rand.Rand from math/rand/v2
// satisfies it.
type Source interface {
	IntN(n int) int
}

// Random draws each channel independently and uniformly from
// [MinChannel, MaxChannel].
func Random(rnd Source) RGB {
	span := MaxChannel - MinChannel + 1
	return RGB{MinChannel + rnd.IntN(span), MinChannel + rnd.IntN(span), MinChannel + rnd.IntN(span)}
}

// Table maps labels to colours and remembers insertion order. The zero value
// is an empty table.
type Table struct {
	byLabel map[string]RGB
	used    map[RGB]int
	order   []string
}

// NewTable returns an empty table.
func NewTable() Table { return Table{} }

// Len returns the number of labels.
func (t Table) Len() int { return len(t.order) }

// Lookup returns the stored colour of label.
func (t Table) Lookup(label string) (RGB, bool) {
	c, ok := t.byLabel[label]
	return c, ok
}

// InUse reports whether any label already holds c.
func (t Table) InUse(c RGB) bool { return t.used[c] > 0 }

// Labels returns labels in insertion order.
func (t Table) Labels() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Entry is one label/colour pair.
type Entry struct {
	Label  string
	Colour RGB
}

// Entries returns every pair in insertion order.
func (t Table) Entries() []Entry {
	out := make([]Entry, len(t.order))
	for i, l := range t.order {
		out[i] = Entry{Label: l, Colour: t.byLabel[l]}
	}
	return out
}

// Duplicates returns labels whose colour is shared with an earlier label.
// Generated colours are always unique; duplicates can only come from a
// hand-edited store.
func (t Table) Duplicates() []string {
	seen := make(map[RGB]bool, len(t.order))
	var dups []string
	for _, l := range t.order {
		c := t.byLabel[l]
		if seen[c] {
			dups = append(dups, l)
		}
		seen[c] = true
	}
	return dups
}

// With returns a copy of t with label set to c.
func (t Table) With(label string, c RGB) Table {
	out := t.clone()
	out.set(label, c)
	return out
}

func (t Table) clone() Table {
	out := Table{
		byLabel: make(map[string]RGB, len(t.byLabel)+1),
		used:    make(map[RGB]int, len(t.used)+1),
		order:   make([]string, len(t.order), len(t.order)+1),
	}
	for k, v := range t.byLabel {
		out.byLabel[k] = v
	}
	for k, v := range t.used {
		out.used[k] = v
	}
	copy(out.order, t.order)
	return out
}

// set mutates t in place; callers own t.
func (t *Table) set(label string, c RGB) {
	if old, ok := t.byLabel[label]; ok {
		t.used[old]--
		if t.used[old] == 0 {
			delete(t.used, old)
		}
	} else {
		t.order = append(t.order, label)
	}
	t.byLabel[label] = c
	t.used[c]++
}

// For returns the colour of label. A label already in t keeps its colour and
// t is returned unchanged. An unseen label gets a random colour distinct from
// every colour in t, and the returned table holds the new assignment.
func For(label string, t Table, rnd Source) (RGB, Table) {
	if c, ok := t.Lookup(label); ok {
		return c, t
	}
	c := fresh(t, rnd)
	return c, t.With(label, c)
}

// Assign resolves a colour for every label, copying t at most once.
// added lists the labels that were not in t, in first-seen order.
func Assign(labels []string, t Table, rnd Source) (colours []RGB, out Table, added []string) {
	out = t
	copied := false
	colours = make([]RGB, len(labels))
	for i, l := range labels {
		if c, ok := out.Lookup(l); ok {
			colours[i] = c
			continue
		}
		if !copied {
			out = t.clone()
			copied = true
		}
		c := fresh(out, rnd)
		out.set(l, c)
		colours[i] = c
		added = append(added, l)
	}
	return colours, out, added
}

// fresh redraws until the triple is not held by any label in t.
func fresh(t Table, rnd Source) RGB {
	c := Random(rnd)
	for t.InUse(c) {
		c = Random(rnd)
	}
	return c
}
