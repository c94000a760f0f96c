package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forest-guardian/burnsev/internal/cache"
	"github.com/forest-guardian/burnsev/internal/catalog"
	"github.com/forest-guardian/burnsev/internal/config"
	"github.com/forest-guardian/burnsev/internal/geotiff"
	"github.com/forest-guardian/burnsev/internal/imagery"
	"github.com/forest-guardian/burnsev/internal/imagery/copernicus"
	"github.com/forest-guardian/burnsev/internal/imagery/local"
	"github.com/forest-guardian/burnsev/internal/index"
	"github.com/forest-guardian/burnsev/internal/log"
	"github.com/forest-guardian/burnsev/internal/notification"
	"github.com/forest-guardian/burnsev/internal/pipeline"
	"github.com/forest-guardian/burnsev/internal/properties"
	"github.com/forest-guardian/burnsev/internal/raster"
	"github.com/forest-guardian/burnsev/internal/sensor"
	"github.com/forest-guardian/burnsev/internal/severity"
	"github.com/forest-guardian/burnsev/internal/terrain"
	"github.com/forest-guardian/burnsev/internal/ui"
	"github.com/forest-guardian/burnsev/output"
)

const catalogCacheTTL = 24 * time.Hour

func encode(r *raster.Raster, metadata map[string]string) ([]byte, error) {
	return geotiff.Encode(r, "", metadata)
}

func runAnalysis(ctx context.Context, configPath string, showProgress bool) error {
	f, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg, err := f.Build(uuid.NewString())
	if err != nil {
		return err
	}
	cfg.ShowProgress = showProgress

	src, err := newSource(f, cfg)
	if err != nil {
		return err
	}

	cat, summary, err := pipeline.Run(ctx, cfg, src)
	if err != nil {
		return err
	}
	printSummary(summary)

	var errs []error
	if err := display(f, cfg, cat); err != nil {
		errs = append(errs, err)
	}
	exported, err := export(ctx, f, cfg, cat)
	if err != nil {
		errs = append(errs, err)
	}
	if err := aggregate(f, cat); err != nil {
		errs = append(errs, err)
	}
	if err := reports(f, summary, cat); err != nil {
		errs = append(errs, err)
	}
	n, err := topography(ctx, f, cfg)
	if err != nil {
		errs = append(errs, err)
	}
	exported += n

	if discord := notification.NewDiscord(); discord.Enabled() {
		if err := discord.NotifyRun(ctx, summary, exported); err != nil {
			log.Warnw("failed to send notification", "error", err)
		}
	}
	return errors.Join(errs...)
}

func newSource(f *config.File, cfg pipeline.Config) (imagery.Source, error) {
	switch f.Source.Type {
	case config.SourceDirectory:
		return local.New(f.Resolve(f.Source.Path), cfg.Profile), nil
	case config.SourceCopernicus:
		channels, err := requestChannels(cfg)
		if err != nil {
			return nil, err
		}
		searches := cache.NewFileCache[[]time.Time]("catalog", catalogCacheTTL)
		if f.Source.Cache != "" {
			searches = cache.NewFileCacheAt[[]time.Time](f.Resolve(f.Source.Cache), catalogCacheTTL)
		}
		src, err := copernicus.New(cfg.Profile, copernicus.Options{
			ClientIDs:     splitList(properties.CopernicusClientIDs()),
			ClientSecrets: splitList(properties.CopernicusClientSecrets()),
			TokenURL:      properties.CopernicusTokenUrl(),
			Channels:      channels,
			Cache:         searches,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return nil, fmt.Errorf("source.type unsupported: %q", f.Source.Type)
}

// requestChannels is what the formula reads plus the true colour bands for previews.
func requestChannels(cfg pipeline.Config) ([]string, error) {
	channels, err := index.Bind(cfg.Formula, cfg.Profile)
	if err != nil {
		return nil, err
	}
	for _, b := range []sensor.Band{sensor.Red, sensor.Green, sensor.Blue} {
		channel, err := cfg.Profile.Resolve(b)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	seen := map[string]bool{}
	unique := channels[:0]
	for _, c := range channels {
		if !seen[c] {
			seen[c] = true
			unique = append(unique, c)
		}
	}
	return unique, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printSummary(summary pipeline.Summary) {
	for _, p := range summary.Periods {
		if p.State == pipeline.Failed {
			ui.PrintError(fmt.Sprintf("%s failed in %s: %v", p.Period, p.FailedIn, p.Err))
			continue
		}
		ui.PrintSuccess(fmt.Sprintf("%s: %d rasters from %d pre-fire and %d post-fire scenes, %.0f%% of the AOI valid", p.Period, p.Rasters, p.PreScenes, p.PostScenes, 100*p.ValidFraction()))
	}
	ui.PrintInfo(fmt.Sprintf("\n%d/%d periods tagged (run %s)\n", summary.Tagged(), len(summary.Periods), summary.RunID))
}

func displayDir(f *config.File) string {
	if f.Display.Output == "" {
		return f.Resolve("previews")
	}
	return f.Resolve(f.Display.Output)
}

// render draws an entry the way it is displayed: true colour mosaics, a grey
// stretch for indices and the severity palette for the delta.
func render(e catalog.Entry, profile *sensor.Profile) (image.Image, bool, error) {
	switch {
	case e.Provenance.Role.Mosaic():
		img, err := output.RenderTrueColor(e.Raster, profile)
		return img, false, err
	case e.Provenance.Role == catalog.DeltaIndex:
		return output.RenderClassified(severity.ClassifyRaster(e.Raster)), true, nil
	default:
		img, err := output.RenderLinear(e.Raster, e.Raster.Bands[0].Name, -1, 1, output.Grey)
		return img, false, err
	}
}

func display(f *config.File, cfg pipeline.Config, cat *catalog.Catalog) error {
	dir := displayDir(f)
	var (
		errs   []error
		frames []image.Image
	)
	for _, e := range f.DisplaySelection().Apply(cat).Entries() {
		img, legend, err := render(e, cfg.Profile)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Provenance.ID(), err))
			continue
		}
		if err := output.SavePreview(img, e.Provenance.ID(), legend, filepath.Join(dir, e.Provenance.ID()+f.PreviewExt())); err != nil {
			errs = append(errs, err)
		}
		if e.Provenance.Role == catalog.DeltaIndex {
			if err := output.WriteSeverityGeoJSON(e.Raster, filepath.Join(dir, e.Provenance.ID()+".geojson")); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if f.Timelapse.Enabled {
		for _, e := range cat.FilterByRole(catalog.DeltaIndex).Entries() {
			frames = append(frames, output.Preview(output.RenderClassified(severity.ClassifyRaster(e.Raster)), e.Provenance.Period, true))
		}
		path := f.Resolve(f.Timelapse.Path)
		if path == "" {
			path = filepath.Join(dir, "timelapse.avi")
		}
		if len(frames) > 0 {
			if err := output.CreateTimelapse(frames, path, f.Timelapse.FPS); err != nil {
				errs = append(errs, fmt.Errorf("timelapse: %w", err))
			} else {
				log.Infow("timelapse written", "path", path, "frames", len(frames))
			}
		}
	}
	return errors.Join(errs...)
}

// newSink builds the configured export sink, nil when exports are off.
func newSink(f *config.File) (output.Sink, string, error) {
	switch f.Export.Destination {
	case config.DestinationFile:
		return output.FileSink{Encode: encode}, f.Resolve(f.Export.Path), nil
	case config.DestinationS3:
		client, err := output.NewMinIOClient(output.S3Config{
			Endpoint:  properties.MinioEndpoint(),
			AccessKey: properties.MinioAccessKey(),
			SecretKey: properties.MinioSecretKey(),
			UseSSL:    properties.MinioUseSSL(),
		})
		if err != nil {
			return nil, "", err
		}
		return output.S3Sink{Client: client, Bucket: f.Export.Bucket, Encode: encode}, f.Export.Path, nil
	}
	return nil, "", nil
}

func export(ctx context.Context, f *config.File, cfg pipeline.Config, cat *catalog.Catalog) (int, error) {
	sink, destination, err := newSink(f)
	if err != nil || sink == nil {
		return 0, err
	}
	jobs, err := output.Plan(cat, f.ExportSelection(), cfg, destination)
	if err != nil {
		return 0, err
	}
	return output.ExportAll(ctx, sink, jobs)
}

// topography derives the terrain layers of the AOI, previews them and exports them
// next to the period products.
func topography(ctx context.Context, f *config.File, cfg pipeline.Config) (int, error) {
	if f.Terrain == nil {
		return 0, nil
	}
	products, err := terrain.Build(ctx, local.DEM{Path: f.Resolve(f.Terrain.DEM)}, cfg.AOI)
	if err != nil {
		return 0, fmt.Errorf("terrain: %w", err)
	}
	area := f.Terrain.AreaName()
	cat, err := terrain.Catalog(area, products, cfg.RunID)
	if err != nil {
		return 0, fmt.Errorf("terrain: %w", err)
	}

	var errs []error
	dir := displayDir(f)
	for _, e := range cat.Entries() {
		stretch := terrain.StretchOf(e.Provenance.Role)
		img, err := output.RenderLinear(e.Raster, string(e.Provenance.Role), stretch.Min, stretch.Max, output.Terrain)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		name := terrain.ExportName(e.Provenance.Role, area)
		if err := output.SavePreview(img, name, false, filepath.Join(dir, name+f.PreviewExt())); err != nil {
			errs = append(errs, err)
		}
	}
	log.Infow("terrain derived", "area", area, "layers", cat.Len())

	sink, destination, err := newSink(f)
	if err != nil || sink == nil {
		return 0, errors.Join(append(errs, err)...)
	}
	n, err := output.ExportAll(ctx, sink, output.PlanTerrain(cat, cfg.AOI, destination))
	return n, errors.Join(append(errs, err)...)
}

func aggregate(f *config.File, cat *catalog.Catalog) error {
	if f.Aggregate == nil {
		return nil
	}
	q, err := f.Aggregate.Query()
	if err != nil {
		return err
	}
	r, err := pipeline.Aggregate(cat, q)
	if err != nil {
		return err
	}
	name := f.Aggregate.Name
	if name == "" {
		name = "aggregate_" + string(q.Op)
	}
	path := filepath.Join(displayDir(f), name+".tif")
	metadata := map[string]string{
		"op":    string(q.Op),
		"start": q.Start.Format(time.RFC3339),
		"end":   q.End.Format(time.RFC3339),
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	if err := geotiff.Write(path, r, "", metadata); err != nil {
		return err
	}
	log.Infow("aggregate written", "path", path)
	return nil
}

func reports(f *config.File, summary pipeline.Summary, cat *catalog.Catalog) error {
	if f.Reports == "" {
		return nil
	}
	dir := f.Resolve(f.Reports)
	return errors.Join(
		output.WriteSummaryCSV(filepath.Join(dir, "summary_"+summary.RunID+".csv"), summary),
		output.WriteHistogramCSV(filepath.Join(dir, "severity_"+summary.RunID+".csv"), cat),
		output.WriteStatsCSV(filepath.Join(dir, "dnbr_stats_"+summary.RunID+".csv"), cat),
	)
}
