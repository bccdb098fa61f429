// Package alerts turns a ProMED tracker table into map points.
package alerts

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/KaramelBytes/promedmap/internal/colour"
	"github.com/KaramelBytes/promedmap/internal/place"
	"github.com/KaramelBytes/promedmap/internal/table"
)

// Tracker columns.
const (
	ColRegion          = "Region"
	ColState           = "State"
	ColCountry         = "Country"
	ColDisease         = "Disease name"
	ColPathogenType    = "Pathogen type"
	ColCausalSpecies   = "Causal species"
	ColAffectedSpecies = "Affected species"
	ColLatitude        = "Latitude"
	ColLongitude       = "Longitude"

	// ColPlace is the derived display location.
	ColPlace = "Place"
)

// Required lists the columns a tracker must carry.
var Required = []string{
	ColRegion, ColState, ColCountry, ColDisease, ColPathogenType,
	ColCausalSpecies, ColAffectedSpecies, ColLatitude, ColLongitude,
}

// PlaceColumns are joined, in order, into the display location.
var PlaceColumns = []string{ColRegion, ColState, ColCountry}

// UnknownDisease labels rows with no disease name for colouring.
const UnknownDisease = "Unknown"

// ErrMissingColumn is returned when the tracker lacks a required column.
var ErrMissingColumn = errors.New("missing tracker column")

var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://promedmail.org/"))

// Record is one plottable alert. Field names in JSON match the tooltip
// placeholders.
type Record struct {
	ID              string     `json:"id"`
	Position        [2]float64 `json:"position"`
	Colour          colour.RGB `json:"color"`
	Place           string     `json:"Place"`
	Disease         string     `json:"Disease name"`
	PathogenType    string     `json:"Pathogen type"`
	CausalSpecies   string     `json:"Causal species"`
	AffectedSpecies string     `json:"Affected species"`
}

// Dataset is an annotated tracker.
type Dataset struct {
	// Table is the tracker with the Place column added.
	Table *table.Table
	// records is keyed by origin row; rows without coordinates are absent.
	records map[int]*Record
	// Added lists diseases that received a new colour.
	Added []string
	// Skipped counts rows without usable coordinates.
	Skipped int
}

// Annotate validates the tracker, derives the Place column, resolves a colour
// per disease and builds a record for every row with coordinates. The input
// table and colour table are not modified; the returned colour table holds
// any new assignments.
func Annotate(t *table.Table, colours colour.Table, rnd colour.Source) (*Dataset, colour.Table, error) {
	for _, name := range Required {
		if _, ok := t.Column(name); !ok {
			return nil, colours, errors.Wrapf(ErrMissingColumn, "%q in %s", name, t.Name)
		}
	}
	disease, _ := t.Column(ColDisease)
	labels := make([]string, t.Len())
	for i, c := range disease.Cells {
		labels[i] = diseaseLabel(c)
	}
	rgb, colours, added := colour.Assign(labels, colours, rnd)

	placed := t.WithColumn(place.Column(t, ColPlace, PlaceColumns...))
	ds := &Dataset{Table: placed, records: make(map[int]*Record, t.Len()), Added: added}

	lat, _ := t.Column(ColLatitude)
	lon, _ := t.Column(ColLongitude)
	pathogen, _ := t.Column(ColPathogenType)
	causal, _ := t.Column(ColCausalSpecies)
	affected, _ := t.Column(ColAffectedSpecies)
	placeCol, _ := placed.Column(ColPlace)
	for i := 0; i < t.Len(); i++ {
		y, okY := coordinate(lat, i, 90)
		x, okX := coordinate(lon, i, 180)
		if !okY || !okX {
			ds.Skipped++
			continue
		}
		r := &Record{
			Position:        [2]float64{x, y},
			Colour:          rgb[i],
			Place:           text(placeCol, i),
			Disease:         text(disease, i),
			PathogenType:    text(pathogen, i),
			CausalSpecies:   text(causal, i),
			AffectedSpecies: text(affected, i),
		}
		r.ID = recordID(t, i)
		ds.records[t.Origin(i)] = r
	}
	return ds, colours, nil
}

// Len returns the number of plottable records.
func (d *Dataset) Len() int { return len(d.records) }

// Record returns the record of origin row i.
func (d *Dataset) Record(i int) (*Record, bool) {
	r, ok := d.records[i]
	return r, ok
}

// Points returns the records of the rows in filtered, which must derive from
// d.Table. Rows without coordinates are left out.
func (d *Dataset) Points(filtered *table.Table) []Record {
	out := make([]Record, 0, filtered.Len())
	for i := 0; i < filtered.Len(); i++ {
		if r, ok := d.Record(filtered.Origin(i)); ok {
			out = append(out, *r)
		}
	}
	return out
}

func diseaseLabel(c table.Cell) string {
	if c.Null || strings.TrimSpace(c.Text) == "" {
		return UnknownDisease
	}
	return c.Text
}

func text(c *table.Column, i int) string {
	if c.Cells[i].Null {
		return ""
	}
	return c.Cells[i].Text
}

// coordinate reads a finite value within [-limit, limit].
func coordinate(c *table.Column, i int, limit float64) (float64, bool) {
	v := c.Cells[i]
	if v.Null {
		return 0, false
	}
	x := v.Num
	if c.Kind != table.KindNumeric {
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
		if err != nil {
			return 0, false
		}
		x = f
	}
	if math.IsNaN(x) || x < -limit || x > limit {
		return 0, false
	}
	return x, true
}

// recordID derives a stable identifier from the contents of a source row.
func recordID(t *table.Table, row int) string {
	var b strings.Builder
	for _, c := range t.Columns {
		b.WriteString(c.Name)
		b.WriteByte('=')
		b.WriteString(c.Cells[row].Text)
		b.WriteByte(0x1f)
	}
	return uuid.NewSHA1(recordNamespace, []byte(b.String())).String()
}
