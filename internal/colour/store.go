package colour

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/promedmap/internal/table"
	"github.com/KaramelBytes/promedmap/internal/utils"
)

// ErrReadOnlyStore is returned by Save on stores that can only import.
var ErrReadOnlyStore = errors.New("colour store is read-only")

// Column names used by tabular colour files.
const (
	LabelColumn  = "Disease"
	ColourColumn = "Colour"
)

// Store persists a colour table.
type Store interface {
	Load() (Table, error)
	Save(Table) error
	Close() error
}

// MySQLScheme prefixes a MySQL DSN given as a store path.
const MySQLScheme = "mysql://"

// OpenStore picks a store implementation from the file extension:
// .csv, .yaml/.yml, .xlsx (import only) or .db/.sqlite. A path starting with
// "mysql://" is a MySQL DSN.
func OpenStore(path string) (Store, error) {
	if strings.HasPrefix(path, MySQLScheme) {
		return OpenMySQLStore(strings.TrimPrefix(path, MySQLScheme))
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return &csvStore{path: path}, nil
	case ".yaml", ".yml":
		return &yamlStore{path: path}, nil
	case ".xlsx":
		return &xlsxStore{path: path}, nil
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLStore(path)
	default:
		return nil, errors.Errorf("unsupported colour store %q", path)
	}
}

func missing(path string) bool {
	_, err := os.Stat(path)
	return errors.Is(err, os.ErrNotExist)
}

// fromTable reads label/colour pairs from the Disease and Colour columns.
func fromTable(t *table.Table) (Table, error) {
	labels, ok := t.Column(LabelColumn)
	if !ok {
		return Table{}, errors.Errorf("%s: missing %q column", t.Name, LabelColumn)
	}
	colours, ok := t.Column(ColourColumn)
	if !ok {
		return Table{}, errors.Errorf("%s: missing %q column", t.Name, ColourColumn)
	}
	out := Table{}.clone()
	for i := 0; i < t.Len(); i++ {
		if labels.Cells[i].Null {
			continue
		}
		c, err := ParseRGB(colours.Cells[i].Text)
		if err != nil {
			return Table{}, errors.Wrapf(err, "%s row %d", t.Name, i+2)
		}
		out.set(labels.Cells[i].Text, c)
	}
	return out, nil
}

type csvStore struct{ path string }

func (s *csvStore) Load() (Table, error) {
	if missing(s.path) {
		return NewTable(), nil
	}
	t, err := table.Load(s.path, table.DefaultOptions())
	if err != nil {
		return Table{}, errors.Wrap(err, "load colours")
	}
	return fromTable(t)
}

func (s *csvStore) Save(t Table) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{LabelColumn, ColourColumn}); err != nil {
		return errors.Wrap(err, "write colours")
	}
	for _, e := range t.Entries() {
		if err := w.Write([]string{e.Label, e.Colour.String()}); err != nil {
			return errors.Wrap(err, "write colours")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "write colours")
	}
	return utils.SafeWriteFile(s.path, buf.Bytes())
}

func (s *csvStore) Close() error { return nil }

type yamlEntry struct {
	Disease string `yaml:"disease"`
	Colour  []int  `yaml:"colour,flow"`
}

type yamlStore struct{ path string }

func (s *yamlStore) Load() (Table, error) {
	if missing(s.path) {
		return NewTable(), nil
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return Table{}, errors.Wrap(err, "read colours")
	}
	var entries []yamlEntry
	if err := yaml.Unmarshal(b, &entries); err != nil {
		return Table{}, errors.Wrap(err, "parse colours")
	}
	out := Table{}.clone()
	for i, e := range entries {
		if len(e.Colour) != 3 {
			return Table{}, errors.Errorf("%s entry %d (%s): want 3 channels, got %d", filepath.Base(s.path), i+1, e.Disease, len(e.Colour))
		}
		c := RGB{e.Colour[0], e.Colour[1], e.Colour[2]}
		if !c.Valid() {
			return Table{}, errors.Errorf("%s entry %d (%s): channel out of range", filepath.Base(s.path), i+1, e.Disease)
		}
		out.set(e.Disease, c)
	}
	return out, nil
}

func (s *yamlStore) Save(t Table) error {
	entries := make([]yamlEntry, 0, t.Len())
	for _, e := range t.Entries() {
		entries = append(entries, yamlEntry{Disease: e.Label, Colour: []int{e.Colour[0], e.Colour[1], e.Colour[2]}})
	}
	b, err := yaml.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, "marshal colours")
	}
	return utils.SafeWriteFile(s.path, b)
}

func (s *yamlStore) Close() error { return nil }

// xlsxStore imports a spreadsheet of colours. Saving back to XLSX is not
// supported; convert to CSV or YAML with `promedmap colours export`.
type xlsxStore struct{ path string }

func (s *xlsxStore) Load() (Table, error) {
	if missing(s.path) {
		return NewTable(), nil
	}
	t, err := table.Load(s.path, table.DefaultOptions())
	if err != nil {
		return Table{}, errors.Wrap(err, "load colours")
	}
	return fromTable(t)
}

func (s *xlsxStore) Save(Table) error { return errors.Wrap(ErrReadOnlyStore, s.path) }

func (s *xlsxStore) Close() error { return nil }
