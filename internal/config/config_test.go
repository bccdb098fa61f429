package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "tracker.xlsx", c.TrackerPath)
	assert.Equal(t, "colours.csv", c.ColoursPath)
	assert.False(t, c.UpdateColours)
	assert.Equal(t, ":8501", c.ListenAddr)
	assert.Equal(t, 1, c.SheetIndex)
	assert.Equal(t, DefaultFilterableColumns, c.FilterableColumns)
	assert.Equal(t, DefaultCategoricalColumns, c.CategoricalColumns)
	assert.Equal(t, "light", c.MapStyle)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("listen_addr: \":9000\"\nupdate_colours: true\nfilterable_columns: [Country]\n"), 0o644))
	t.Setenv("PROMEDMAP_TRACKER_PATH", "/data/tracker.csv")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.ListenAddr)
	assert.True(t, c.UpdateColours)
	assert.Equal(t, []string{"Country"}, c.FilterableColumns)
	assert.Equal(t, "/data/tracker.csv", c.TrackerPath)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSetAndSaveRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	require.NoError(t, err)

	require.NoError(t, c.Set("update_colours", "true"))
	require.NoError(t, c.Set("filterable_columns", "Country, Pathogen type,"))
	require.NoError(t, c.Set("max_rows", "500"))
	require.NoError(t, c.Set("log_format", "JSON"))
	assert.Error(t, c.Set("max_rows", "-1"))
	assert.Error(t, c.Set("map_style", "neon"))
	assert.Error(t, c.Set("api_key", "x"))

	p := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, Save(c, p))
	back, err := Load(p)
	require.NoError(t, err)
	assert.True(t, back.UpdateColours)
	assert.Equal(t, []string{"Country", "Pathogen type"}, back.FilterableColumns)
	assert.Equal(t, 500, back.MaxRows)
	assert.Equal(t, "json", back.LogFormat)
}
