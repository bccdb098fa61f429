package filter

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format of date bounds.
const DateLayout = "2006-01-02"

// Query parameter names. Per-column keys are prefixed, e.g. "v.Country".
const (
	paramEnabled = "filter"
	paramColumn  = "col"
	prefixValue  = "v."
	prefixMin    = "min."
	prefixMax    = "max."
	prefixFrom   = "from."
	prefixTo     = "to."
	prefixQuery  = "q."
)

// FromQuery decodes a Spec from form values. A selected column without any
// value keys has no selection and gets its kind's default in Build. Values
// that fail to parse are ignored.
func FromQuery(q url.Values) Spec {
	spec := Spec{Enabled: truthy(q.Get(paramEnabled))}
	for _, name := range q[paramColumn] {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		sel := selectionFromQuery(q, name)
		if sel == nil {
			spec.addColumn(name)
			continue
		}
		spec.Select(name, sel)
	}
	return spec
}

func (s *Spec) addColumn(name string) {
	for _, c := range s.Columns {
		if c == name {
			return
		}
	}
	s.Columns = append(s.Columns, name)
}

func selectionFromQuery(q url.Values, name string) Selection {
	if vals, ok := q[prefixValue+name]; ok {
		out := make([]string, 0, len(vals))
		for _, v := range vals {
			if v != "" {
				out = append(out, v)
			}
		}
		return CategorySelection{Values: out}
	}
	lo, hasLo := parseFloat(q.Get(prefixMin + name))
	hi, hasHi := parseFloat(q.Get(prefixMax + name))
	if hasLo || hasHi {
		r := RangeSelection{Min: math.Inf(-1), Max: math.Inf(1)}
		if hasLo {
			r.Min = lo
		}
		if hasHi {
			r.Max = hi
		}
		return r
	}
	from, hasFrom := parseDate(q.Get(prefixFrom + name))
	to, hasTo := parseDate(q.Get(prefixTo + name))
	if hasFrom || hasTo {
		return DateSelection{From: from, To: to}
	}
	if p, ok := q[prefixQuery+name]; ok && len(p) > 0 {
		return PatternSelection{Pattern: p[0]}
	}
	return nil
}

// Query encodes s in the format read by FromQuery.
func (s Spec) Query() url.Values {
	q := url.Values{}
	if s.Enabled {
		q.Set(paramEnabled, "1")
	}
	for _, name := range s.Columns {
		q.Add(paramColumn, name)
		sel, ok := lookup(s.Selections, name)
		if !ok {
			continue
		}
		switch v := sel.(type) {
		case CategorySelection:
			if len(v.Values) == 0 {
				q.Set(prefixValue+name, "")
			}
			for _, val := range v.Values {
				q.Add(prefixValue+name, val)
			}
		case RangeSelection:
			if !math.IsInf(v.Min, 0) {
				q.Set(prefixMin+name, strconv.FormatFloat(v.Min, 'f', -1, 64))
			}
			if !math.IsInf(v.Max, 0) {
				q.Set(prefixMax+name, strconv.FormatFloat(v.Max, 'f', -1, 64))
			}
		case DateSelection:
			if !v.From.IsZero() {
				q.Set(prefixFrom+name, v.From.Format(DateLayout))
			}
			if !v.To.IsZero() {
				q.Set(prefixTo+name, v.To.Format(DateLayout))
			}
		case PatternSelection:
			q.Set(prefixQuery+name, v.Pattern)
		}
	}
	return q
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
