package filter

import (
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/promedmap/internal/table"
)

func numColumn(name string, vals ...float64) *table.Column {
	c := &table.Column{Name: name, Kind: table.KindNumeric}
	for _, v := range vals {
		c.Cells = append(c.Cells, table.Cell{Text: strconv.FormatFloat(v, 'f', -1, 64), Num: v})
	}
	return c
}

// sampleTable has 11 rows: score 0,10..100, a three-valued pathogen column,
// a text date column and a free-text disease column.
func sampleTable() *table.Table {
	var scores []float64
	var pathogens, dates, diseases []string
	kinds := []string{"Virus", "Bacteria", "Fungus"}
	names := []string{"Avian influenza", "Anthrax", "Cholera", "Dengue", "Ebola", "Avian pox",
		"Lassa fever", "Measles", "Nipah", "Plague", "Rabies"}
	for i := 0; i <= 10; i++ {
		scores = append(scores, float64(i*10))
		pathogens = append(pathogens, kinds[i%3])
		dates = append(dates, time.Date(2023, 1, i+1, 0, 0, 0, 0, time.UTC).Format("2006-01-02"))
		diseases = append(diseases, names[i])
	}
	return table.New("tracker",
		numColumn("Score", scores...),
		table.TextColumn("Pathogen type", pathogens),
		table.TextColumn("Reported", dates),
		table.TextColumn("Disease name", diseases),
	)
}

var allColumns = []string{"Score", "Pathogen type", "Reported", "Disease name"}

func TestBuildDisabledIsIdentity(t *testing.T) {
	in := sampleTable()
	spec := Spec{Columns: []string{"Score"}, Selections: map[string]Selection{"Score": RangeSelection{Min: 20, Max: 30}}}
	out, controls := Build(in, allColumns, spec)
	assert.Same(t, in, out)
	assert.Nil(t, controls)
}

func TestBuildEnabledWithoutColumnsKeepsRows(t *testing.T) {
	in := sampleTable()
	out, controls := Build(in, allColumns, Spec{Enabled: true})
	assert.Equal(t, in.Len(), out.Len())
	assert.Empty(t, controls)
}

func TestNumericRangeIsInclusive(t *testing.T) {
	in := sampleTable()
	var spec Spec
	spec.Enabled = true
	spec.Select("Score", RangeSelection{Min: 20, Max: 80})

	out, controls := Build(in, allColumns, spec)
	require.Len(t, controls, 1)
	assert.Equal(t, Numeric, controls[0].Kind)
	assert.Equal(t, 0.0, controls[0].Min)
	assert.Equal(t, 100.0, controls[0].Max)
	assert.InDelta(t, 1.0, controls[0].Step, 1e-9)

	score, _ := out.Column("Score")
	var got []float64
	for _, c := range score.Cells {
		got = append(got, c.Num)
	}
	assert.Equal(t, []float64{20, 30, 40, 50, 60, 70, 80}, got)
	assert.Equal(t, 2, out.Origin(0))
	assert.Equal(t, 11, in.Len(), "input untouched")
}

func TestNumericDefaultIsFullSpanWithoutNulls(t *testing.T) {
	c := numColumn("Score", 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	c.Cells = append(c.Cells, table.Cell{Null: true})
	in := table.New("t", c)

	out, controls := Build(in, []string{"Score"}, Spec{Enabled: true, Columns: []string{"Score"}})
	require.Len(t, controls, 1)
	assert.Equal(t, RangeSelection{Min: 0, Max: 10}, controls[0].Selection)
	assert.Equal(t, 11, out.Len())
}

func TestCategoricalEmptySelectionKeepsNothing(t *testing.T) {
	in := sampleTable()
	out, controls := Build(in, allColumns, Spec{Enabled: true, Columns: []string{"Pathogen type"}})
	require.Len(t, controls, 1)
	assert.Equal(t, Categorical, controls[0].Kind)
	assert.Equal(t, []string{"Bacteria", "Fungus", "Virus"}, controls[0].Options)
	assert.Equal(t, "Values for Pathogen type", controls[0].Label)
	assert.Equal(t, 0, out.Len())
}

func TestCategoricalSelection(t *testing.T) {
	var spec Spec
	spec.Enabled = true
	spec.Select("Pathogen type", CategorySelection{Values: []string{"Virus", "Fungus"}})
	out, _ := Build(sampleTable(), allColumns, spec)
	assert.Equal(t, 7, out.Len())
	col, _ := out.Column("Pathogen type")
	for _, c := range col.Cells {
		assert.NotEqual(t, "Bacteria", c.Text)
	}
}

func TestDateRangeNeedsBothEnds(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2023, 1, d, 0, 0, 0, 0, time.UTC) }

	var spec Spec
	spec.Enabled = true
	spec.Select("Reported", DateSelection{From: day(3), To: day(5)})
	out, controls := Build(sampleTable(), allColumns, spec)
	require.Len(t, controls, 1)
	assert.Equal(t, Date, controls[0].Kind)
	assert.Equal(t, day(1), controls[0].MinDate)
	assert.Equal(t, day(11), controls[0].MaxDate)
	assert.Equal(t, 3, out.Len())

	spec.Select("Reported", DateSelection{From: day(3)})
	out, _ = Build(sampleTable(), allColumns, spec)
	assert.Equal(t, 11, out.Len())
}

func TestTextPatternRegexAndSubstringFallback(t *testing.T) {
	var spec Spec
	spec.Enabled = true

	spec.Select("Disease name", PatternSelection{Pattern: ""})
	out, controls := Build(sampleTable(), allColumns, spec)
	require.Len(t, controls, 1)
	assert.Equal(t, Text, controls[0].Kind)
	assert.Equal(t, "Substring or regex in Disease name", controls[0].Label)
	assert.Equal(t, 11, out.Len())

	spec.Select("Disease name", PatternSelection{Pattern: "^Av"})
	out, _ = Build(sampleTable(), allColumns, spec)
	assert.Equal(t, 2, out.Len())

	in := table.New("t", table.TextColumn("Disease name",
		[]string{"a", "b", "c", "d", "e", "f", "g", "h", "x[1", "y[2"}))
	spec.Select("Disease name", PatternSelection{Pattern: "x["})
	out, _ = Build(in, []string{"Disease name"}, spec)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, 8, out.Origin(0))
}

func TestFiltersCompose(t *testing.T) {
	var spec Spec
	spec.Enabled = true
	spec.Select("Score", RangeSelection{Min: 0, Max: 50})
	spec.Select("Pathogen type", CategorySelection{Values: []string{"Virus"}})
	out, controls := Build(sampleTable(), allColumns, spec)
	assert.Len(t, controls, 2)
	// Virus rows are 0, 3, 6, 9; scores 0, 30, 60, 90.
	assert.Equal(t, 2, out.Len())
	assert.Equal(t, 0, out.Origin(0))
	assert.Equal(t, 3, out.Origin(1))
}

func TestBuildIgnoresColumnsOutsideFilterable(t *testing.T) {
	var spec Spec
	spec.Enabled = true
	spec.Select("Score", RangeSelection{Min: 20, Max: 30})
	out, controls := Build(sampleTable(), []string{"Disease name"}, spec)
	assert.Empty(t, controls)
	assert.Equal(t, 11, out.Len())
}

func TestInspectClassification(t *testing.T) {
	in := sampleTable()
	flagged := table.TextColumn("Country", []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K"})
	flagged.Categorical = true
	in = in.WithColumn(flagged)

	controls := Inspect(in, []string{"Score", "Pathogen type", "Disease name", "Country", "Missing"})
	require.Len(t, controls, 4)
	assert.Equal(t, Numeric, controls[0].Kind)
	assert.Equal(t, Categorical, controls[1].Kind)
	assert.Equal(t, Text, controls[2].Kind)
	assert.Equal(t, Categorical, controls[3].Kind)
	assert.Len(t, controls[3].Options, 11)
}

func TestQueryRoundTrip(t *testing.T) {
	var spec Spec
	spec.Enabled = true
	spec.Select("Country", CategorySelection{Values: []string{"Kenya", "Peru"}})
	spec.Select("Score", RangeSelection{Min: 2.5, Max: 7})
	spec.Select("Reported", DateSelection{
		From: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2023, 3, 4, 0, 0, 0, 0, time.UTC),
	})
	spec.Select("Disease name", PatternSelection{Pattern: "flu|pox"})

	got := FromQuery(spec.Query())
	assert.Equal(t, spec, got)
}

func TestFromQuery(t *testing.T) {
	q, err := url.ParseQuery("filter=on&col=Country&col=Score&v.Country=&max.Score=40&col=Reported&from.Reported=bad")
	require.NoError(t, err)
	spec := FromQuery(q)
	assert.True(t, spec.Enabled)
	assert.Equal(t, []string{"Country", "Score", "Reported"}, spec.Columns)
	assert.Equal(t, CategorySelection{Values: []string{}}, spec.Selections["Country"])

	r, ok := spec.Selections["Score"].(RangeSelection)
	require.True(t, ok)
	assert.Equal(t, 40.0, r.Max)
	_, ok = spec.Selections["Reported"]
	assert.False(t, ok)

	assert.False(t, FromQuery(url.Values{}).Enabled)
}
