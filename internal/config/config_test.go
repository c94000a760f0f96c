package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest-guardian/burnsev/internal/catalog"
	"github.com/forest-guardian/burnsev/internal/index"
	"github.com/forest-guardian/burnsev/internal/sensor"
)

const definition = `
sensor: s2
formula: NBR
aoi:
  path: aoi.geojson
fetch_timeout: 30s
workers: 3
source:
  type: directory
  path: ${BURNSEV_TEST_SCENES}
periods:
  - name: p1
    pre: [2017-06-01, 2017-07-01]
    post: [2017-09-01, 2017-10-01]
  - name: p2
    pre: [2018-06-01, 2018-07-01]
    post: [2018-09-01, 2018-10-01]
display:
  periods: [p1]
  roles: [deltaIndex, preFire_cm_mosaic]
export:
  roles: [deltaIndex]
  destination: file
  path: out
aggregate:
  roles: [deltaIndex]
  start: 2017-01-01
  end: 2019-01-01
  op: max
`

const aoi = `{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,2],[0,0]]]}`

func write(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAndBuild(t *testing.T) {
	t.Setenv("BURNSEV_TEST_SCENES", "/data/scenes")
	dir := t.TempDir()
	write(t, dir, "aoi.geojson", aoi)
	path := write(t, dir, "burnsev.yaml", definition)

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/scenes", f.Source.Path)
	assert.Equal(t, filepath.Join(dir, "out"), f.Resolve(f.Export.Path))

	cfg, err := f.Build("run-1")
	require.NoError(t, err)
	assert.Equal(t, sensor.S2, cfg.Profile.ID)
	assert.Equal(t, index.NBR, cfg.Formula)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "30s", cfg.FetchTimeout.String())
	require.Len(t, cfg.Periods, 2)
	assert.Equal(t, "p2", cfg.Periods[1].Name())
	assert.Equal(t, "run-1", cfg.RunID)

	display := f.DisplaySelection()
	assert.Equal(t, []string{"p1"}, display.Periods)
	assert.Equal(t, []catalog.Role{catalog.DeltaIndex, catalog.PreFireCMMosaic}, display.Roles)

	q, err := f.Aggregate.Query()
	require.NoError(t, err)
	assert.Equal(t, catalog.Max, q.Op)
	assert.Equal(t, 2017, q.Start.Year())
}

func TestParseRejectsBrokenDefinitions(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr error
	}{
		{"unknown sensor", "sensor: s2", "sensor: modis", sensor.ErrUnknownSensor},
		{"unknown formula", "formula: NBR", "formula: XYZ", index.ErrUnknownFormula},
		{"unknown role", "roles: [deltaIndex]\n  destination", "roles: [delta]\n  destination", catalog.ErrUnknownRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broken := replaceOnce(t, definition, tt.from, tt.to)
			_, err := Parse([]byte(broken))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseRejectsBadShapes(t *testing.T) {
	for name, broken := range map[string]string{
		"source type":   replaceOnce(t, definition, "type: directory", "type: ftp"),
		"timeout":       replaceOnce(t, definition, "fetch_timeout: 30s", "fetch_timeout: soon"),
		"destination":   replaceOnce(t, definition, "destination: file", "destination: tape"),
		"s3 bucket":     replaceOnce(t, definition, "destination: file", "destination: s3"),
		"aggregate op":  replaceOnce(t, definition, "op: max", "op: median"),
		"aggregate end": replaceOnce(t, definition, "end: 2019-01-01", "end: soon"),
		"display format": replaceOnce(t, definition, "display:\n", "display:\n  format: gif\n"),
		"terrain dem":    definition + "terrain:\n  name: culebra\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(broken))
			assert.Error(t, err)
		})
	}
}

func TestDisplayFormatAndTerrain(t *testing.T) {
	t.Setenv("BURNSEV_TEST_SCENES", "/data/scenes")
	f, err := Parse([]byte(definition))
	require.NoError(t, err)
	assert.Equal(t, ".png", f.PreviewExt())
	assert.Nil(t, f.Terrain)

	f, err = Parse([]byte(replaceOnce(t, definition, "display:\n", "display:\n  format: JPG\n") + "terrain:\n  dem: dem.tif\n"))
	require.NoError(t, err)
	assert.Equal(t, ".jpg", f.PreviewExt())
	require.NotNil(t, f.Terrain)
	assert.Equal(t, "dem.tif", f.Terrain.DEM)
	assert.Equal(t, "aoi", f.Terrain.AreaName())

	f.Terrain.Name = "culebra"
	assert.Equal(t, "culebra", f.Terrain.AreaName())
}

func TestBuildRejectsNonChronologicalPeriod(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "aoi.geojson", aoi)
	path := write(t, dir, "burnsev.yaml", replaceOnce(t, definition, "post: [2017-09-01, 2017-10-01]", "post: [2017-05-01, 2017-10-01]"))

	f, err := Load(path)
	require.NoError(t, err)
	_, err = f.Build("run")
	assert.Error(t, err)
}

func replaceOnce(t *testing.T, s, from, to string) string {
	i := strings.Index(s, from)
	require.GreaterOrEqual(t, i, 0, "%q not found", from)
	return s[:i] + to + s[i+len(from):]
}
