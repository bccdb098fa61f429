package table

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnsupportedFormat indicates no loader accepts the file extension.
var ErrUnsupportedFormat = errors.New("unsupported table format")

// Options controls how a spreadsheet is loaded.
type Options struct {
	// SheetName selects an XLSX worksheet by name; SheetIndex (1-based) is
	// used when the name is empty.
	SheetName  string
	SheetIndex int
	// MaxRows limits rows loaded; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, chosen from the file extension.
	Delimiter rune
	// DecimalSeparator for numbers. If 0, auto-detected per value.
	DecimalSeparator rune
	// Categorical names columns that are explicitly categorical.
	Categorical []string
}

// DefaultOptions returns the options used for tracker spreadsheets.
func DefaultOptions() Options {
	return Options{SheetIndex: 1}
}

// Loader reads one tabular file format.
type Loader interface {
	CanLoad(filename string) bool
	Load(path string, opt Options) (*Table, error)
}

var registry []Loader

// Register adds a loader to the registry.
func Register(l Loader) {
	registry = append(registry, l)
}

func init() {
	Register(csvLoader{})
	Register(xlsxLoader{})
}

// Load selects a loader by filename and reads the table.
func Load(path string, opt Options) (*Table, error) {
	for _, l := range registry {
		if l.CanLoad(path) {
			return l.Load(path, opt)
		}
	}
	return nil, errors.Wrap(ErrUnsupportedFormat, filepath.Ext(path))
}

// build turns a header and raw rows into a typed table.
func build(name string, header []string, rows [][]string, opt Options) *Table {
	if opt.MaxRows > 0 && len(rows) > opt.MaxRows {
		rows = rows[:opt.MaxRows]
	}
	categorical := make(map[string]bool, len(opt.Categorical))
	for _, c := range opt.Categorical {
		categorical[strings.ToLower(strings.TrimSpace(c))] = true
	}
	cols := make([]*Column, 0, len(header))
	for j, h := range header {
		colName := strings.TrimSpace(h)
		if colName == "" {
			colName = "Unnamed: " + strconv.Itoa(j)
		}
		raw := make([]string, len(rows))
		for i, r := range rows {
			if j < len(r) {
				raw[i] = r[j]
			}
		}
		c := inferColumn(colName, raw, opt.DecimalSeparator)
		c.Categorical = categorical[strings.ToLower(colName)]
		cols = append(cols, c)
	}
	return New(name, cols...)
}
