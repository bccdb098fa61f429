package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/KaramelBytes/promedmap/internal/alerts"
	"github.com/KaramelBytes/promedmap/internal/colour"
	"github.com/KaramelBytes/promedmap/internal/config"
	"github.com/KaramelBytes/promedmap/internal/filter"
	"github.com/KaramelBytes/promedmap/internal/logging"
	"github.com/KaramelBytes/promedmap/internal/table"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const trackerCSV = `Region,State,Country,Disease name,Pathogen type,Causal species,Affected species,Latitude,Longitude
Kerala,,India,Nipah,Virus,Nipah henipavirus,Humans,10.85,76.27
,Edo,Nigeria,Lassa fever,Virus,Mammarenavirus lassaense,Humans,6.34,5.62
Cusco,,Peru,Anthrax,Bacteria,<b>Bacillus</b> anthracis,Cattle,,
Bavaria,,Germany,Nipah,Virus,Nipah henipavirus,Pigs,48.79,11.49
`

func writeTracker(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tracker.csv")
	require.NoError(t, os.WriteFile(p, []byte(trackerCSV), 0o644))
	return p
}

func newTestServer(t *testing.T, update bool) (*Server, string) {
	t.Helper()
	coloursPath := filepath.Join(t.TempDir(), "colours.csv")
	store, err := colour.OpenStore(coloursPath)
	require.NoError(t, err)
	opt := table.DefaultOptions()
	opt.Categorical = config.DefaultCategoricalColumns
	s, err := NewServer(Options{
		TrackerPath:   writeTracker(t),
		Load:          opt,
		Filterable:    config.DefaultFilterableColumns,
		Page:          DefaultPageOptions(),
		UpdateColours: update,
	}, store, logging.Discard())
	require.NoError(t, err)
	return s, coloursPath
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func TestRender(t *testing.T) {
	tb, err := table.Load(writeTracker(t), table.DefaultOptions())
	require.NoError(t, err)
	ds, _, err := alerts.Annotate(tb, colour.NewTable(), rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)

	p, err := Render(ds, config.DefaultFilterableColumns, filter.Spec{}, DefaultPageOptions())
	require.NoError(t, err)
	assert.Len(t, p.Points, 3)
	assert.Equal(t, 4, p.Rows)
	assert.False(t, p.Filter.Enabled)
	assert.Empty(t, p.Filter.Controls)
	assert.Equal(t, "steelblue", p.Tooltip.Background)

	var spec filter.Spec
	spec.Enabled = true
	spec.Select("Country", filter.CategorySelection{Values: []string{"India"}})
	p, err = Render(ds, config.DefaultFilterableColumns, spec, DefaultPageOptions())
	require.NoError(t, err)
	require.Len(t, p.Points, 1)
	assert.Equal(t, "Kerala, India", p.Points[0].Place)
	require.Len(t, p.Filter.Controls, 1)
	ctl := p.Filter.Controls[0]
	assert.Equal(t, "categorical", ctl.Kind)
	assert.Equal(t, []Option{{"Germany", false}, {"India", true}, {"Nigeria", false}, {"Peru", false}}, ctl.Options)
	assert.True(t, p.Filter.Columns[0].Selected)

	var buf bytes.Buffer
	require.NoError(t, WritePage(&buf, p))
	html := buf.String()
	assert.Contains(t, html, DefaultHeader)
	assert.Contains(t, html, "_GlobeView")
	assert.Contains(t, html, "Kerala, India")
	assert.Contains(t, html, `name="v.Country"`)
}

func TestRenderMarksColumnsCaseInsensitively(t *testing.T) {
	s, _ := newTestServer(t, false)
	ds, err := s.Dataset()
	require.NoError(t, err)

	spec := filter.FromQuery(url.Values{"filter": {"1"}, "col": {"country"}, "v.country": {"Nigeria"}})
	p, err := Render(ds, config.DefaultFilterableColumns, spec, DefaultPageOptions())
	require.NoError(t, err)
	require.Len(t, p.Points, 1)
	assert.Equal(t, "Lassa fever", p.Points[0].Disease)

	selected := map[string]bool{}
	for _, c := range p.Filter.Columns {
		selected[c.Name] = c.Selected
	}
	assert.True(t, selected["Country"])
	assert.False(t, selected["Disease name"])
}

func TestRenderNilDataset(t *testing.T) {
	_, err := Render(nil, nil, filter.Spec{}, DefaultPageOptions())
	assert.Error(t, err)
}

func TestPageRoute(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := get(t, s, "/?filter=1&col=Pathogen+type&v.Pathogen+type=Bacteria")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Mapping disease instances from ProMED alerts")
	assert.Contains(t, body, "Values for Pathogen type")
	assert.Contains(t, body, "0 points from 1 rows")
	assert.NotContains(t, body, "<b>Bacillus</b>")
}

func TestAlertsRoute(t *testing.T) {
	s, _ := newTestServer(t, false)

	rec := get(t, s, "/api/v1/alerts")
	require.Equal(t, http.StatusOK, rec.Code)
	var all alertsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Equal(t, 4, all.Rows)
	assert.Equal(t, 3, all.Count)

	rec = get(t, s, "/api/v1/alerts?filter=1&col=Country&v.Country=Germany&v.Country=India")
	var some alertsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &some))
	assert.Equal(t, 2, some.Count)
	assert.Equal(t, some.Points[0].Colour, some.Points[1].Colour, "both rows are Nipah")

	// Colours stay stable between renders.
	assert.Equal(t, all.Points[0].Colour, some.Points[0].Colour)

	rec = get(t, s, "/api/v1/alerts?filter=1&col=Country")
	var none alertsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &none))
	assert.Equal(t, 0, none.Count)
}

func TestReloadReadsTrackerAgain(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := get(t, s, "/api/v1/alerts")
	var before alertsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &before))
	require.Equal(t, 3, before.Count)

	extra := "Leon,,Nicaragua,Dengue,Virus,Dengue virus,Humans,12.43,-86.88\n"
	f, err := os.OpenFile(s.opts.TrackerPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(extra)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	rec = get(t, s, "/api/v1/alerts")
	var cached alertsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cached))
	assert.Equal(t, 3, cached.Count)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reload", http.NoBody)
	rr := httptest.NewRecorder()
	s.Echo.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rec = get(t, s, "/api/v1/alerts")
	var after alertsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	assert.Equal(t, 4, after.Count)
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	get(t, s, "/api/v1/alerts")
	get(t, s, "/api/v1/alerts")
	rec = get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `promedmap_renders_total{route="api"} 2`)
	assert.Contains(t, body, `promedmap_table_loads_total{result="hit"} 1`)
	assert.Contains(t, body, `promedmap_table_loads_total{result="miss"} 1`)
	assert.Contains(t, body, "promedmap_colours_assigned_total 3")
}

func TestUpdateColoursPersistsNewDiseases(t *testing.T) {
	s, coloursPath := newTestServer(t, true)
	require.Equal(t, http.StatusOK, get(t, s, "/").Code)

	store, err := colour.OpenStore(coloursPath)
	require.NoError(t, err)
	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Nipah", "Lassa fever", "Anthrax"}, saved.Labels())
	assert.Empty(t, saved.Duplicates())
}

func TestColoursNotPersistedByDefault(t *testing.T) {
	s, coloursPath := newTestServer(t, false)
	require.Equal(t, http.StatusOK, get(t, s, "/").Code)
	_, err := os.Stat(coloursPath)
	assert.True(t, os.IsNotExist(err))

	ds, err := s.Dataset()
	require.NoError(t, err)
	assert.Len(t, ds.Added, 3, "each render assigns its own colours")
	assert.Equal(t, 0, s.colours.Len())
}

func TestUpdateColoursKeepsColoursAcrossRenders(t *testing.T) {
	s, _ := newTestServer(t, true)
	first, err := s.Dataset()
	require.NoError(t, err)
	require.Len(t, first.Added, 3)

	second, err := s.Dataset()
	require.NoError(t, err)
	assert.Empty(t, second.Added)
	assert.Equal(t, 3, s.colours.Len())
}

func TestMissingTrackerIsServerError(t *testing.T) {
	s, _ := newTestServer(t, false)
	s.opts.TrackerPath = filepath.Join(t.TempDir(), "absent.csv")
	rec := get(t, s, "/api/v1/alerts")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "could not build the map")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t, false)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second}
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = client.Get("http://" + ln.Addr().String() + "/healthz")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, strings.Contains(string(b), "ok"))
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
