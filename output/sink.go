// Package output turns catalog entries into files: GeoTIFF exports to disk or object
// storage, image previews, a severity timelapse and CSV run reports.
package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/forest-guardian/burnsev/internal/catalog"
	"github.com/forest-guardian/burnsev/internal/geo"
	"github.com/forest-guardian/burnsev/internal/log"
	"github.com/forest-guardian/burnsev/internal/period"
	"github.com/forest-guardian/burnsev/internal/pipeline"
	"github.com/forest-guardian/burnsev/internal/raster"
	"github.com/forest-guardian/burnsev/internal/terrain"
)

type ExportOptions struct {
	// Scale is the export resolution in metres per pixel, fixed by the sensor.
	Scale       float64
	Region      *geo.AreaOfInterest
	Destination string
	Name        string
}

type Sink interface {
	Export(ctx context.Context, r *raster.Raster, prov catalog.Provenance, opts ExportOptions) error
}

// Encoder serializes a raster with its metadata, geotiff.Encode in production.
type Encoder func(r *raster.Raster, metadata map[string]string) ([]byte, error)

// ExportName labels a product from its own period:
// <period>_<role>_<sensor>_pre_<start>_<end>_post_<start>_<end>.
func ExportName(prov catalog.Provenance, p period.Period) string {
	return fmt.Sprintf("%s_%s_%s_pre_%s_%s_post_%s_%s",
		prov.Period, prov.Role, prov.Sensor,
		p.Pre().Start.Format(period.DateLayout), p.Pre().End.Format(period.DateLayout),
		p.Post().Start.Format(period.DateLayout), p.Post().End.Format(period.DateLayout))
}

type Job struct {
	Entry   catalog.Entry
	Options ExportOptions
}

// Plan lists the exports selected from cat. Every job is named after the period its
// entry belongs to and uses the sensor export scale.
func Plan(cat *catalog.Catalog, sel catalog.Selection, cfg pipeline.Config, destination string) ([]Job, error) {
	var jobs []Job
	for _, e := range sel.Apply(cat).Entries() {
		p, ok := cfg.Lookup(e.Provenance.Period)
		if !ok {
			return nil, fmt.Errorf("entry %s belongs to unknown period", e.Provenance.ID())
		}
		jobs = append(jobs, Job{
			Entry: e,
			Options: ExportOptions{
				Scale:       cfg.Profile.ExportScale,
				Region:      cfg.AOI,
				Destination: destination,
				Name:        ExportName(e.Provenance, p),
			},
		})
	}
	return jobs, nil
}

// ExportAll runs every job, carrying on past failures. It returns the number of
// successful exports and the joined errors.
func ExportAll(ctx context.Context, sink Sink, jobs []Job) (int, error) {
	var (
		done int
		errs []error
	)
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return done, errors.Join(append(errs, err)...)
		}
		if err := sink.Export(ctx, job.Entry.Raster, job.Entry.Provenance, job.Options); err != nil {
			log.Errorw("export failed", "name", job.Options.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", job.Options.Name, err))
			continue
		}
		log.Infow("exported", "name", job.Options.Name, "destination", job.Options.Destination)
		done++
	}
	return done, errors.Join(errs...)
}

func exportMetadata(prov catalog.Provenance, opts ExportOptions) map[string]string {
	md := prov.Metadata()
	md["scale"] = strconv.FormatFloat(opts.Scale, 'f', -1, 64)
	md["name"] = opts.Name
	return md
}

func prepare(r *raster.Raster, opts ExportOptions) *raster.Raster {
	if opts.Region == nil {
		return r
	}
	return raster.Clip(r, opts.Region)
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}
	return nil
}

// FileSink writes <Destination>/<Name>.tif.
type FileSink struct {
	Encode Encoder
}

func (s FileSink) Export(ctx context.Context, r *raster.Raster, prov catalog.Provenance, opts ExportOptions) error {
	data, err := s.Encode(prepare(r, opts), exportMetadata(prov, opts))
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", opts.Name, err)
	}
	path := filepath.Join(opts.Destination, opts.Name+".tif")
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// PlanTerrain lists one export per terrain layer in cat, named DEM_<area>,
// slope_<area>, aspect_<area> and hillshade_<area> at the elevation model scale.
func PlanTerrain(cat *catalog.Catalog, region *geo.AreaOfInterest, destination string) []Job {
	var jobs []Job
	for _, e := range cat.Entries() {
		jobs = append(jobs, Job{
			Entry: e,
			Options: ExportOptions{
				Scale:       terrain.ExportScale,
				Region:      region,
				Destination: destination,
				Name:        terrain.ExportName(e.Provenance.Role, e.Provenance.Period),
			},
		})
	}
	return jobs
}
