package table

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Report is a markdown-friendly profile of a loaded table.
type Report struct {
	Name    string
	Rows    int
	Cols    []ColumnSummary
	Samples [][]string
}

// ColumnSummary captures the inferred kind and statistics of one column.
type ColumnSummary struct {
	Name        string
	Kind        Kind
	Categorical bool
	NonNull     int
	Missing     int
	Unique      int
	// Numeric stats
	Min  float64
	Max  float64
	Mean float64
	Std  float64
	// Date span
	From time.Time
	To   time.Time
	// Text columns
	TopValues    []CategoryCount
	ExampleTexts []string
}

type CategoryCount struct {
	Value string
	Count int
}

// Profile summarizes every column of t and keeps up to sampleRows rows.
func Profile(t *Table, sampleRows int) *Report {
	rep := &Report{Name: t.Name, Rows: t.Len()}
	for _, c := range t.Columns {
		s := ColumnSummary{Name: c.Name, Kind: c.Kind, Categorical: c.Categorical}
		counts := map[string]int{}
		var n int
		var mean, m2 float64
		for _, v := range c.Cells {
			if v.Null {
				s.Missing++
				continue
			}
			s.NonNull++
			counts[v.Key(c.Kind)]++
			if c.Kind == KindNumeric {
				// Welford update
				n++
				delta := v.Num - mean
				mean += delta / float64(n)
				m2 += delta * (v.Num - mean)
			}
			if c.Kind == KindText && len(s.ExampleTexts) < 3 {
				s.ExampleTexts = append(s.ExampleTexts, v.Text)
			}
		}
		s.Unique = len(counts)
		switch c.Kind {
		case KindNumeric:
			s.Min, s.Max, _ = c.NumRange()
			s.Mean = mean
			if n > 1 {
				s.Std = math.Sqrt(m2 / float64(n-1))
			}
		case KindDate:
			s.From, s.To, _ = c.TimeRange()
		default:
			s.TopValues = topValues(counts, 8)
		}
		rep.Cols = append(rep.Cols, s)
	}
	for i := 0; i < t.Len() && i < sampleRows; i++ {
		row := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			row[j] = c.Cells[i].Text
		}
		rep.Samples = append(rep.Samples, row)
	}
	return rep
}

func topValues(counts map[string]int, limit int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(counts))
	for k, v := range counts {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > limit {
		tops = tops[:limit]
	}
	return tops
}

// Markdown renders a compact report for terminals or docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		fmt.Fprintf(&b, "File: %s\n", r.Name)
	}
	fmt.Fprintf(&b, "Rows: %d\n", r.Rows)
	fmt.Fprintf(&b, "Columns: %d\n\n", len(r.Cols))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		kind := c.Kind.String()
		if c.Categorical {
			kind += ", categorical"
		}
		fmt.Fprintf(&b, "- %s: %s (non-null %d, missing %.1f%%, unique %d)", safeName(c.Name), kind, c.NonNull, missPct, c.Unique)
		switch c.Kind {
		case KindNumeric:
			fmt.Fprintf(&b, " — min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std)
		case KindDate:
			fmt.Fprintf(&b, " — from %s to %s", c.From.Format("2006-01-02"), c.To.Format("2006-01-02"))
		default:
			if len(c.TopValues) > 0 {
				b.WriteString(" — top: ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					fmt.Fprintf(&b, "%s(%d)", safeVal(kv.Value), kv.Count)
				}
			}
		}
		b.WriteString("\n")
	}
	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD]\n| ")
		for i, c := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c.Name))
		}
		b.WriteString(" |\n|")
		for range r.Cols {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for _, row := range r.Samples {
			b.WriteString("| ")
			for i, val := range row {
				if i > 0 {
					b.WriteString(" | ")
				}
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
