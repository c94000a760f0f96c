package local

import (
	"context"
	"fmt"

	"github.com/forest-guardian/burnsev/internal/catalog"
	"github.com/forest-guardian/burnsev/internal/geo"
	"github.com/forest-guardian/burnsev/internal/geotiff"
	"github.com/forest-guardian/burnsev/internal/imagery"
	"github.com/forest-guardian/burnsev/internal/raster"
	"github.com/forest-guardian/burnsev/internal/terrain"
)

// DEM serves an elevation model from a single GeoTIFF. The band described as
// "elevation" is used when present, otherwise the first band.
type DEM struct {
	Path string
}

var _ terrain.Source = DEM{}

func (d DEM) Elevation(ctx context.Context, aoi *geo.AreaOfInterest) (*raster.Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	elevation := string(catalog.ElevationLayer)
	r, err := geotiff.Read(d.Path, geotiff.ReadOptions{BandNames: []string{elevation}})
	if err != nil {
		return nil, err
	}
	if aoi != nil && !aoi.Intersects(r.Bound()) {
		return nil, fmt.Errorf("%w: %s does not cover the area", imagery.ErrNoImageryAvailable, d.Path)
	}
	data, ok := r.Band(elevation)
	if !ok {
		data = r.Bands[0].Data
	}
	return r.Derive(raster.Band{Name: elevation, Data: data}), nil
}
