package output

import (
	"context"
	"encoding/csv"
	"errors"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest-guardian/burnsev/internal/catalog"
	"github.com/forest-guardian/burnsev/internal/geo"
	"github.com/forest-guardian/burnsev/internal/imagery"
	"github.com/forest-guardian/burnsev/internal/index"
	"github.com/forest-guardian/burnsev/internal/period"
	"github.com/forest-guardian/burnsev/internal/pipeline"
	"github.com/forest-guardian/burnsev/internal/raster"
	"github.com/forest-guardian/burnsev/internal/sensor"
	"github.com/forest-guardian/burnsev/internal/severity"
	"github.com/forest-guardian/burnsev/internal/terrain"
)

var unitGrid = [6]float64{0, 1, 0, 2, 0, -1}

func scene(id, acquired string, nir, swir2 float64) *raster.Raster {
	r := raster.New(2, 2, unitGrid, "B8", "B12")
	r.ID = id
	r.Acquired, _ = time.Parse(period.DateLayout, acquired)
	r.QA = make([]uint16, r.Len())
	for i := 0; i < r.Len(); i++ {
		r.Bands[0].Data[i] = nir
		r.Bands[1].Data[i] = swir2
	}
	return r
}

func runFixture(t *testing.T) (*catalog.Catalog, pipeline.Summary, pipeline.Config) {
	t.Helper()
	profile, err := sensor.Lookup(sensor.S2)
	require.NoError(t, err)
	p1, err := period.Parse("p1", "2018-02-01", "2018-03-01", "2018-04-01", "2018-05-01")
	require.NoError(t, err)
	p2, err := period.Parse("p2", "2019-06-01", "2019-07-01", "2019-08-01", "2019-09-01")
	require.NoError(t, err)

	src := imagery.NewMemorySource()
	src.Add(profile.Collection,
		scene("p1-post", "2018-04-10", 0.3, 0.3),
		scene("p2-pre", "2019-06-02", 0.5, 0.1),
		scene("p2-post", "2019-08-15", 0.25, 0.25),
	)
	cfg := pipeline.Config{
		Profile:      profile,
		AOI:          geo.Rect(0, 0, 2, 2),
		Periods:      []period.Period{p1, p2},
		Formula:      index.NBR,
		FetchTimeout: time.Second,
		Workers:      2,
		RunID:        "run-1",
	}
	cat, summary, err := pipeline.Run(context.Background(), cfg, src)
	require.NoError(t, err)
	return cat, summary, cfg
}

func fakeEncoder(r *raster.Raster, md map[string]string) ([]byte, error) {
	return []byte(md["name"] + "|" + md["role"]), nil
}

func TestExportName(t *testing.T) {
	p, err := period.Parse("p2", "2019-06-01", "2019-07-01", "2019-08-01", "2019-09-01")
	require.NoError(t, err)
	prov := catalog.Provenance{Period: "p2", Role: catalog.DeltaIndex, Sensor: "S2"}
	assert.Equal(t, "p2_deltaIndex_S2_pre_2019-06-01_2019-07-01_post_2019-08-01_2019-09-01", ExportName(prov, p))
}

func TestPlanNamesEachEntryAfterItsOwnPeriod(t *testing.T) {
	cat, _, cfg := runFixture(t)
	p2, _ := cfg.Lookup("p2")

	// p1 is configured first but failed, the label still comes from p2.
	jobs, err := Plan(cat, catalog.Selection{Roles: []catalog.Role{catalog.DeltaIndex}}, cfg, "exports")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, ExportName(jobs[0].Entry.Provenance, p2), jobs[0].Options.Name)
	assert.True(t, strings.HasPrefix(jobs[0].Options.Name, "p2_deltaIndex_S2_pre_2019-06-01"))
	assert.Equal(t, 20.0, jobs[0].Options.Scale)
	assert.Equal(t, "exports", jobs[0].Options.Destination)
}

func TestPlanRejectsUnknownPeriod(t *testing.T) {
	_, _, cfg := runFixture(t)
	cat := catalog.New()
	require.NoError(t, cat.Append(raster.New(1, 1, unitGrid, "x"), catalog.Provenance{
		Period: "ghost", Role: catalog.PreIndex, TimeStart: time.Now(), TimeEnd: time.Now(),
	}))
	_, err := Plan(cat, catalog.Selection{}, cfg, "exports")
	assert.Error(t, err)
}

func TestFileSinkExportAll(t *testing.T) {
	cat, _, cfg := runFixture(t)
	dir := t.TempDir()
	jobs, err := Plan(cat, catalog.Selection{Periods: []string{"p2"}}, cfg, dir)
	require.NoError(t, err)
	require.Len(t, jobs, 7)

	var (
		mu    sync.Mutex
		roles []string
	)
	sink := FileSink{Encode: func(r *raster.Raster, md map[string]string) ([]byte, error) {
		mu.Lock()
		roles = append(roles, md["role"])
		mu.Unlock()
		assert.Equal(t, "20", md["scale"])
		assert.Equal(t, "p2", md["period"])
		return fakeEncoder(r, md)
	}}

	n, err := ExportAll(context.Background(), sink, jobs)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Len(t, roles, 7)

	name := jobs[0].Options.Name
	data, err := os.ReadFile(filepath.Join(dir, name+".tif"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), name+"|"))
}

func TestPlanTerrainExportsEveryLayer(t *testing.T) {
	dem := raster.New(3, 3, [6]float64{0, 30, 0, 90, 0, -30}, "elevation")
	for i := range dem.Bands[0].Data {
		dem.Bands[0].Data[i] = float64(i)
	}
	cat, err := terrain.Catalog("culebra", terrain.Products(dem), "run-1")
	require.NoError(t, err)

	dir := t.TempDir()
	jobs := PlanTerrain(cat, nil, dir)
	require.Len(t, jobs, 4)

	var names []string
	for _, j := range jobs {
		names = append(names, j.Options.Name)
		assert.Equal(t, 30.0, j.Options.Scale)
	}
	assert.Equal(t, []string{"DEM_culebra", "slope_culebra", "aspect_culebra", "hillshade_culebra"}, names)

	n, err := ExportAll(context.Background(), FileSink{Encode: fakeEncoder}, jobs)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	data, err := os.ReadFile(filepath.Join(dir, "slope_culebra.tif"))
	require.NoError(t, err)
	assert.Equal(t, "slope_culebra|slope", string(data))
}

func TestExportAllContinuesPastFailures(t *testing.T) {
	cat, _, cfg := runFixture(t)
	jobs, err := Plan(cat, catalog.Selection{Periods: []string{"p2"}, Roles: []catalog.Role{catalog.PreIndex, catalog.PostIndex}}, cfg, t.TempDir())
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	boom := errors.New("boom")
	sink := FileSink{Encode: func(r *raster.Raster, md map[string]string) ([]byte, error) {
		if md["role"] == string(catalog.PreIndex) {
			return nil, boom
		}
		return fakeEncoder(r, md)
	}}
	n, err := ExportAll(context.Background(), sink, jobs)
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, boom)
}

func TestS3SinkPutsObjectWithMetadata(t *testing.T) {
	var (
		mu      sync.Mutex
		gotPath string
		gotBody string
		gotMeta string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath = r.URL.Path
		gotBody = string(body)
		gotMeta = r.Header.Get("X-Amz-Meta-Role")
		mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewMinIOClient(S3Config{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "key",
		SecretKey: "secret",
		Region:    "us-east-1",
	})
	require.NoError(t, err)

	sink := S3Sink{Client: client, Bucket: "exports", Encode: fakeEncoder}
	prov := catalog.Provenance{Period: "p1", Role: catalog.DeltaIndex, TimeStart: time.Now(), TimeEnd: time.Now()}
	err = sink.Export(context.Background(), raster.New(1, 1, unitGrid, "dNBR"), prov, ExportOptions{Destination: "burn", Name: "p1_delta"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/exports/burn/p1_delta.tif", gotPath)
	assert.Contains(t, gotBody, "p1_delta|deltaIndex")
	assert.Equal(t, "deltaIndex", gotMeta)
}

func TestNewMinIOClientRequiresEndpoint(t *testing.T) {
	_, err := NewMinIOClient(S3Config{})
	assert.Error(t, err)
}

func TestPaletteAt(t *testing.T) {
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, Grey.At(0))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, Grey.At(1))
	assert.Equal(t, color.RGBA{128, 128, 128, 255}, Grey.At(0.5))
	assert.Equal(t, color.RGBA{0x19, 0x2F, 0x9C, 255}, Terrain.At(0))
	assert.Equal(t, color.RGBA{0xD4, 0x10, 0x00, 255}, Terrain.At(1))
}

func TestRenderLinear(t *testing.T) {
	r := raster.New(2, 1, unitGrid, "NBR")
	r.Bands[0].Data[0] = -1
	img, err := RenderLinear(r, "NBR", -1, 1, Grey)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(1, 0))

	_, err = RenderLinear(r, "NDVI", -1, 1, Grey)
	assert.Error(t, err)
}

func TestRenderTrueColorScalesReflectance(t *testing.T) {
	profile, err := sensor.Lookup(sensor.S2)
	require.NoError(t, err)
	r := raster.New(1, 1, unitGrid, profile.Channels()...)
	for i := range r.Bands {
		r.Bands[i].Data[0] = 0.1
	}
	img, err := RenderTrueColor(r, profile)
	require.NoError(t, err)
	c := img.RGBAAt(0, 0)
	assert.Equal(t, uint8(127), c.R)
	assert.Equal(t, c.R, c.G)
	assert.Equal(t, uint8(255), c.A)
}

func TestRenderClassified(t *testing.T) {
	delta := raster.New(2, 1, unitGrid, "dNBR")
	delta.Bands[0].Data[0] = 700
	img := RenderClassified(severity.ClassifyRaster(delta))
	assert.Equal(t, severity.High.Color(), img.RGBAAt(0, 0))
	assert.Equal(t, severity.NoDataColor, img.RGBAAt(1, 0))
}

func TestPreviewAddsTitleAndLegend(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 2))
	plain := Preview(src, "p1", false)
	withLegend := Preview(src, "p1", true)

	assert.Equal(t, 256, plain.Bounds().Dx())
	assert.Equal(t, titleHeight+128, plain.Bounds().Dy())
	assert.Equal(t, plain.Bounds().Dy()+legendRow*severity.NumClasses, withLegend.Bounds().Dy())

	path := filepath.Join(t.TempDir(), "previews", "p1.png")
	require.NoError(t, SavePreview(src, "p1", true, path))
	assert.FileExists(t, path)
}

func TestSavePreviewFormatFollowsExtension(t *testing.T) {
	dir := t.TempDir()
	src := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for ext, want := range map[string]string{".png": "png", ".jpg": "jpeg"} {
		path := filepath.Join(dir, "p1"+ext)
		require.NoError(t, SavePreview(src, "p1", false, path))

		f, err := os.Open(path)
		require.NoError(t, err)
		_, format, err := image.Decode(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, want, format, ext)
	}
}

func TestSaveImageByExtension(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	require.NoError(t, SaveImage(img, filepath.Join(dir, "a.png")))
	require.NoError(t, SaveImage(img, filepath.Join(dir, "b.jpg")))

	f, err := os.Open(filepath.Join(dir, "b.jpg"))
	require.NoError(t, err)
	defer f.Close()
	_, format, err := image.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestCreateTimelapse(t *testing.T) {
	dir := t.TempDir()
	frames := []image.Image{
		image.NewRGBA(image.Rect(0, 0, 8, 8)),
		image.NewRGBA(image.Rect(0, 0, 8, 8)),
	}
	out := filepath.Join(dir, "timelapse")
	require.NoError(t, CreateTimelapse(frames, out, 2))
	info, err := os.Stat(out + ".avi")
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, CreateTimelapse(nil, out, 2))
	assert.Error(t, CreateTimelapse([]image.Image{
		image.NewRGBA(image.Rect(0, 0, 8, 8)),
		image.NewRGBA(image.Rect(0, 0, 4, 4)),
	}, filepath.Join(dir, "bad.avi"), 2))
}

func TestSeverityFeatures(t *testing.T) {
	delta := raster.New(2, 1, unitGrid, "dNBR")
	delta.Bands[0].Data[0] = 150
	fc := SeverityFeatures(delta)
	require.Len(t, fc.Features, 1)
	f := fc.Features[0]
	assert.Equal(t, int(severity.Low), f.Properties["class"])
	assert.Equal(t, 150.0, f.Properties["dNBR"])

	path := filepath.Join(t.TempDir(), "severity.geojson")
	require.NoError(t, WriteSeverityGeoJSON(delta, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	parsed, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	assert.Len(t, parsed.Features, 1)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestReports(t *testing.T) {
	cat, summary, _ := runFixture(t)
	dir := t.TempDir()

	summaryPath := filepath.Join(dir, "summary.csv")
	require.NoError(t, WriteSummaryCSV(summaryPath, summary))
	records := readCSV(t, summaryPath)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"run_id", "period", "state", "reason", "rasters", "pre_scenes", "post_scenes", "valid_pixels", "valid_fraction", "seconds"}, records[0])
	assert.Equal(t, "p1", records[1][1])
	assert.Equal(t, string(pipeline.Failed), records[1][2])
	assert.Contains(t, records[1][3], string(pipeline.Fetching))
	assert.Equal(t, "p2", records[2][1])
	assert.Equal(t, string(pipeline.Tagged), records[2][2])
	assert.Equal(t, "0", records[1][7])
	assert.Equal(t, "4", records[2][7])
	share, err := strconv.ParseFloat(records[2][8], 64)
	require.NoError(t, err)
	assert.Equal(t, 1.0, share)

	histPath := filepath.Join(dir, "histogram.csv")
	require.NoError(t, WriteHistogramCSV(histPath, cat))
	records = readCSV(t, histPath)
	require.Len(t, records, 1+severity.NumClasses)
	high := records[1+int(severity.High)]
	assert.Equal(t, "p2", high[0])
	assert.Equal(t, "4", high[3])
	fraction, err := strconv.ParseFloat(high[4], 64)
	require.NoError(t, err)
	assert.Equal(t, 1.0, fraction)

	statsRows := StatsRows(cat)
	require.Len(t, statsRows, 1)
	assert.Equal(t, 4, statsRows[0].Valid)
	assert.InDelta(t, 667, statsRows[0].Mean, 1)
	require.NoError(t, WriteStatsCSV(filepath.Join(dir, "stats.csv"), cat))
}
