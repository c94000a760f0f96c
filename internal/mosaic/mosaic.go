// Package mosaic selects the scenes of one acquisition window and composites them
// into a single raster clipped to the area of interest.
package mosaic

import (
	"context"
	"fmt"
	"sort"

	"github.com/forest-guardian/burnsev/internal/geo"
	"github.com/forest-guardian/burnsev/internal/imagery"
	"github.com/forest-guardian/burnsev/internal/period"
	"github.com/forest-guardian/burnsev/internal/raster"
	"github.com/forest-guardian/burnsev/internal/sensor"
)

type Result struct {
	Raw    *raster.Raster
	Masked *raster.Raster
	Scenes int
}

// Build runs Fetch, MaskScenes and Assemble for one window.
func Build(ctx context.Context, src imagery.Source, profile *sensor.Profile, window period.DateRange, aoi *geo.AreaOfInterest) (Result, error) {
	scenes, err := Fetch(ctx, src, profile, window, aoi)
	if err != nil {
		return Result{}, err
	}
	masked, err := MaskScenes(scenes, profile)
	if err != nil {
		return Result{}, err
	}
	return Assemble(scenes, masked, aoi)
}

// Assemble composites the raw and cloud-masked scenes of one window and clips
// both to aoi.
func Assemble(scenes, masked []*raster.Raster, aoi *geo.AreaOfInterest) (Result, error) {
	raw, err := Composite(scenes)
	if err != nil {
		return Result{}, err
	}
	cm, err := Composite(masked)
	if err != nil {
		return Result{}, err
	}
	return Result{Raw: Clip(raw, aoi), Masked: Clip(cm, aoi), Scenes: len(scenes)}, nil
}

func Fetch(ctx context.Context, src imagery.Source, profile *sensor.Profile, window period.DateRange, aoi *geo.AreaOfInterest) ([]*raster.Raster, error) {
	scenes, err := src.Query(ctx, profile.Collection, window, aoi)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("error querying %s for %s: %w", profile.Collection, window, imagery.TimeoutError(err))
	}
	if len(scenes) == 0 {
		return nil, fmt.Errorf("%w: %s %s", imagery.ErrNoImageryAvailable, profile.Collection, window)
	}
	if err := raster.CheckGrid(scenes...); err != nil {
		return nil, err
	}
	return scenes, nil
}

func MaskScenes(scenes []*raster.Raster, profile *sensor.Profile) ([]*raster.Raster, error) {
	masked := make([]*raster.Raster, len(scenes))
	for i, scene := range scenes {
		m, err := sensor.MaskClouds(scene, profile)
		if err != nil {
			return nil, fmt.Errorf("error masking scene %s: %w", scene.ID, err)
		}
		masked[i] = m
	}
	return masked, nil
}

// Composite merges scenes in acquisition order, ties broken by scene id. At every
// pixel the last scene holding data on all bands wins, QA included.
func Composite(scenes []*raster.Raster) (*raster.Raster, error) {
	if len(scenes) == 0 {
		return nil, imagery.ErrNoImageryAvailable
	}
	if err := raster.CheckGrid(scenes...); err != nil {
		return nil, err
	}

	ordered := append([]*raster.Raster(nil), scenes...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Acquired.Equal(ordered[j].Acquired) {
			return ordered[i].Acquired.Before(ordered[j].Acquired)
		}
		return ordered[i].ID < ordered[j].ID
	})

	first := ordered[0]
	out := raster.New(first.Width, first.Height, first.GeoTransform, first.BandNames()...)
	out.Projection = first.Projection
	out.Acquired = ordered[len(ordered)-1].Acquired
	withQA := true
	for _, scene := range ordered {
		if scene.QA == nil {
			withQA = false
		}
	}
	if withQA {
		out.QA = make([]uint16, out.Len())
	}

	for _, scene := range ordered {
		sources := make([][]float64, len(out.Bands))
		for b, band := range out.Bands {
			data, ok := scene.Band(band.Name)
			if !ok {
				return nil, fmt.Errorf("%w: scene %s has no band %s", raster.ErrGridMismatch, scene.ID, band.Name)
			}
			sources[b] = data
		}
		for i := 0; i < out.Len(); i++ {
			if !scene.ValidAt(i) {
				continue
			}
			for b := range out.Bands {
				out.Bands[b].Data[i] = sources[b][i]
			}
			if withQA {
				out.QA[i] = scene.QA[i]
			}
		}
	}
	return out, nil
}

// Clip blanks pixels outside aoi. A nil aoi leaves the raster as is.
func Clip(r *raster.Raster, aoi *geo.AreaOfInterest) *raster.Raster {
	if aoi == nil {
		return r
	}
	return raster.Clip(r, aoi)
}
