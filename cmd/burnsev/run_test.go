package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/forest-guardian/burnsev/internal/geotiff"
	"github.com/forest-guardian/burnsev/internal/imagery/local"
	"github.com/forest-guardian/burnsev/internal/index"
	"github.com/forest-guardian/burnsev/internal/log"
	"github.com/forest-guardian/burnsev/internal/pipeline"
	"github.com/forest-guardian/burnsev/internal/raster"
	"github.com/forest-guardian/burnsev/internal/sensor"
)

const definition = `
sensor: S2
formula: NBR
aoi:
  path: aoi.geojson
source:
  type: directory
  path: scenes
periods:
  - name: fire2019
    pre: [2019-06-01, 2019-07-01]
    post: [2019-08-01, 2019-09-01]
  - name: nodata2018
    pre: [2018-06-01, 2018-07-01]
    post: [2018-08-01, 2018-09-01]
display:
  roles: [preIndex, deltaIndex]
  output: previews
export:
  roles: [deltaIndex]
  destination: file
  path: exports
timelapse:
  enabled: true
  fps: 1
aggregate:
  roles: [deltaIndex]
  start: 2019-01-01
  end: 2020-01-01
  op: max
reports: reports
`

const aoi = `{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,2],[0,0]]]}`

func writeScene(t *testing.T, dir, name string, nir, swir2 float64) {
	r := raster.New(2, 2, [6]float64{0, 1, 0, 2, 0, -1}, "B8", "B12")
	for i := range r.Bands[0].Data {
		r.Bands[0].Data[i] = nir
		r.Bands[1].Data[i] = swir2
	}
	r.QA = make([]uint16, r.Len())
	require.NoError(t, geotiff.Write(filepath.Join(dir, name), r, "QA60", nil))
}

func TestRunAnalysisWritesProducts(t *testing.T) {
	for _, key := range []string{"DISCORD_ERROR_NOTIFICATION_URL", "DISCORD_SUCCESS_NOTIFICATION_URL", "DISCORD_WARN_NOTIFICATION_URL"} {
		t.Setenv(key, "")
	}
	profile, err := sensor.Lookup(sensor.S2)
	require.NoError(t, err)

	dir := t.TempDir()
	scenes := local.CollectionDir(filepath.Join(dir, "scenes"), profile.Collection)
	require.NoError(t, os.MkdirAll(scenes, 0o755))
	writeScene(t, scenes, "2019-06-02_T10SEG.tif", 0.5, 0.1)
	writeScene(t, scenes, "2019-08-15_T10SEG.tif", 0.25, 0.25)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aoi.geojson"), []byte(aoi), 0o644))
	configPath := filepath.Join(dir, "burnsev.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(definition), 0o644))

	core, logs := observer.New(zapcore.InfoLevel)
	log.UseLogger(zap.New(core))
	t.Cleanup(func() { log.UseLogger(zap.NewNop()) })

	require.NoError(t, runAnalysis(context.Background(), configPath, false))
	assert.Equal(t, 1, logs.FilterMessage("starting run").Len())

	for _, rel := range []string{
		"previews/fire2019_preIndex.png",
		"previews/fire2019_deltaIndex.png",
		"previews/fire2019_deltaIndex.geojson",
		"previews/timelapse.avi",
		"previews/aggregate_max.tif",
		"exports/fire2019_deltaIndex_S2_pre_2019-06-01_2019-07-01_post_2019-08-01_2019-09-01.tif",
	} {
		assert.FileExists(t, filepath.Join(dir, rel))
	}
	reports, err := filepath.Glob(filepath.Join(dir, "reports", "*.csv"))
	require.NoError(t, err)
	assert.Len(t, reports, 3)

	exported, err := geotiff.ReadMetadata(filepath.Join(dir, "exports", "fire2019_deltaIndex_S2_pre_2019-06-01_2019-07-01_post_2019-08-01_2019-09-01.tif"), "role")
	require.NoError(t, err)
	assert.Equal(t, "deltaIndex", exported)
}

func TestRunAnalysisDerivesTerrain(t *testing.T) {
	for _, key := range []string{"DISCORD_ERROR_NOTIFICATION_URL", "DISCORD_SUCCESS_NOTIFICATION_URL", "DISCORD_WARN_NOTIFICATION_URL"} {
		t.Setenv(key, "")
	}
	profile, err := sensor.Lookup(sensor.S2)
	require.NoError(t, err)

	dir := t.TempDir()
	scenes := local.CollectionDir(filepath.Join(dir, "scenes"), profile.Collection)
	require.NoError(t, os.MkdirAll(scenes, 0o755))
	writeScene(t, scenes, "2019-06-02_T10SEG.tif", 0.5, 0.1)
	writeScene(t, scenes, "2019-08-15_T10SEG.tif", 0.25, 0.25)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aoi.geojson"), []byte(aoi), 0o644))

	dem := raster.New(8, 8, [6]float64{0, 0.25, 0, 2, 0, -0.25}, "elevation")
	for i := range dem.Bands[0].Data {
		dem.Bands[0].Data[i] = float64(100 * (i % 8))
	}
	require.NoError(t, geotiff.Write(filepath.Join(dir, "dem.tif"), dem, "", nil))

	withTerrain := strings.Replace(definition, "  output: previews\n", "  output: previews\n  format: jpg\n", 1) +
		"terrain:\n  dem: dem.tif\n  name: culebra\n"
	configPath := filepath.Join(dir, "burnsev.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(withTerrain), 0o644))

	require.NoError(t, runAnalysis(context.Background(), configPath, false))

	for _, rel := range []string{
		"previews/fire2019_deltaIndex.jpg",
		"previews/DEM_culebra.jpg",
		"previews/hillshade_culebra.jpg",
		"exports/DEM_culebra.tif",
		"exports/slope_culebra.tif",
		"exports/aspect_culebra.tif",
		"exports/hillshade_culebra.tif",
	} {
		assert.FileExists(t, filepath.Join(dir, rel))
	}
	role, err := geotiff.ReadMetadata(filepath.Join(dir, "exports", "slope_culebra.tif"), "role")
	require.NoError(t, err)
	assert.Equal(t, "slope", role)
}

func TestRequestChannels(t *testing.T) {
	profile, err := sensor.Lookup(sensor.S2)
	require.NoError(t, err)
	channels, err := requestChannels(pipeline.Config{Profile: profile, Formula: index.NDVI})
	require.NoError(t, err)
	assert.Equal(t, []string{"B8", "B4", "B3", "B2"}, channels)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}

func TestListCommands(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"sensors"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Sentinel-2")

	root = newRootCmd()
	out.Reset()
	root.SetOut(&out)
	root.SetArgs([]string{"indices"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "NBR")
}
