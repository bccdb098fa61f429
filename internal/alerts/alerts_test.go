package alerts

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/promedmap/internal/colour"
	"github.com/KaramelBytes/promedmap/internal/filter"
	"github.com/KaramelBytes/promedmap/internal/table"
)

const trackerCSV = `Region,State,Country,Disease name,Pathogen type,Causal species,Affected species,Latitude,Longitude
Kerala,,India,Nipah,Virus,Nipah henipavirus,Humans,10.85,76.27
,Edo,Nigeria,Lassa fever,Virus,Mammarenavirus lassaense,Humans,6.34,5.62
Cusco,,Peru,Anthrax,Bacteria,Bacillus anthracis,Cattle,,
Bavaria,,Germany,Nipah,Virus,Nipah henipavirus,Pigs,48.79,11.49
`

func loadTracker(t *testing.T) *table.Table {
	t.Helper()
	tb, err := table.ReadCSV(strings.NewReader(trackerCSV), "tracker.csv", ',', table.DefaultOptions())
	require.NoError(t, err)
	return tb
}

func TestAnnotate(t *testing.T) {
	in := loadTracker(t)
	known := colour.NewTable().With("Nipah", colour.RGB{1, 2, 3})

	ds, colours, err := Annotate(in, known, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)

	assert.Equal(t, 1, known.Len(), "colour table passed in is unchanged")
	assert.Equal(t, []string{"Lassa fever", "Anthrax"}, ds.Added)
	assert.Equal(t, 3, colours.Len())
	assert.Equal(t, 1, ds.Skipped)
	assert.Equal(t, 3, ds.Len())

	placeCol, ok := ds.Table.Column(ColPlace)
	require.True(t, ok)
	assert.Equal(t, "Kerala, India", placeCol.Cells[0].Text)
	assert.Equal(t, "Edo, Nigeria", placeCol.Cells[1].Text)
	_, ok = in.Column(ColPlace)
	assert.False(t, ok, "input table gains no column")

	r, ok := ds.Record(0)
	require.True(t, ok)
	assert.Equal(t, [2]float64{76.27, 10.85}, r.Position)
	assert.Equal(t, colour.RGB{1, 2, 3}, r.Colour)
	assert.Equal(t, "Nipah henipavirus", r.CausalSpecies)

	_, ok = ds.Record(2)
	assert.False(t, ok, "row without coordinates has no record")

	r3, _ := ds.Record(3)
	assert.Equal(t, r.Colour, r3.Colour, "same disease, same colour")
	assert.NotEqual(t, r.ID, r3.ID)
}

func TestAnnotateIDsAreStable(t *testing.T) {
	a, _, err := Annotate(loadTracker(t), colour.NewTable(), rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	b, _, err := Annotate(loadTracker(t), colour.NewTable(), rand.New(rand.NewPCG(9, 9)))
	require.NoError(t, err)
	ra, _ := a.Record(1)
	rb, _ := b.Record(1)
	assert.Equal(t, ra.ID, rb.ID)
}

func TestAnnotateMissingColumn(t *testing.T) {
	in := table.New("tracker.xlsx", table.TextColumn("Disease name", []string{"Nipah"}))
	_, _, err := Annotate(in, colour.NewTable(), rand.New(rand.NewPCG(1, 2)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))
	assert.Contains(t, err.Error(), `"Region"`)
}

func TestPointsFollowFilteredRows(t *testing.T) {
	ds, _, err := Annotate(loadTracker(t), colour.NewTable(), rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)

	assert.Len(t, ds.Points(ds.Table), 3)

	var spec filter.Spec
	spec.Enabled = true
	spec.Select(ColCountry, filter.CategorySelection{Values: []string{"Germany", "Peru"}})
	filtered, _ := filter.Build(ds.Table, []string{ColCountry}, spec)
	require.Equal(t, 2, filtered.Len())

	pts := ds.Points(filtered)
	require.Len(t, pts, 1)
	assert.Equal(t, "Bavaria, Germany", pts[0].Place)
	assert.Equal(t, "Pigs", pts[0].AffectedSpecies)
}
