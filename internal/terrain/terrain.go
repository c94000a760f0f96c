// Package terrain derives slope, aspect and hillshade from a digital elevation model
// clipped to the area of interest, and tags the four layers for display and export.
package terrain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/forest-guardian/burnsev/internal/catalog"
	"github.com/forest-guardian/burnsev/internal/geo"
	"github.com/forest-guardian/burnsev/internal/raster"
)

const (
	// Collection is the NASADEM elevation product the layers are derived from.
	Collection = "NASA/NASADEM_HGT/001"
	Sensor     = "NASADEM"
	// ExportScale is the NASADEM resolution in metres.
	ExportScale = 30.0

	SunAzimuth   = 270.0
	SunElevation = 45.0
)

// NASADEM is reprocessed SRTM data, so every layer is dated by the shuttle mission.
var (
	MissionStart = time.Date(2000, 2, 11, 0, 0, 0, 0, time.UTC)
	MissionEnd   = time.Date(2000, 2, 22, 0, 0, 0, 0, time.UTC)
)

var ErrNoElevation = errors.New("no elevation data")

// Source provides the elevation model covering an area, in metres, as a raster with
// a single "elevation" band.
type Source interface {
	Elevation(ctx context.Context, aoi *geo.AreaOfInterest) (*raster.Raster, error)
}

type SourceFunc func(ctx context.Context, aoi *geo.AreaOfInterest) (*raster.Raster, error)

func (f SourceFunc) Elevation(ctx context.Context, aoi *geo.AreaOfInterest) (*raster.Raster, error) {
	return f(ctx, aoi)
}

// Stretch is the display range of a layer.
type Stretch struct {
	Min, Max float64
}

var stretches = map[catalog.Role]Stretch{
	catalog.ElevationLayer: {-100, 3000},
	catalog.SlopeLayer:     {0, 90},
	catalog.AspectLayer:    {0, 359},
	catalog.HillshadeLayer: {50, 255},
}

func StretchOf(role catalog.Role) Stretch {
	return stretches[role]
}

var exportPrefix = map[catalog.Role]string{
	catalog.ElevationLayer: "DEM",
	catalog.SlopeLayer:     "slope",
	catalog.AspectLayer:    "aspect",
	catalog.HillshadeLayer: "hillshade",
}

// ExportName labels a layer of area, e.g. DEM_<area> or slope_<area>.
func ExportName(role catalog.Role, area string) string {
	return exportPrefix[role] + "_" + area
}

// Build reads the elevation of aoi from src, clips it and derives the layers.
func Build(ctx context.Context, src Source, aoi *geo.AreaOfInterest) (*raster.Raster, error) {
	dem, err := src.Elevation(ctx, aoi)
	if err != nil {
		return nil, fmt.Errorf("error reading elevation: %w", err)
	}
	if dem == nil || len(dem.Bands) == 0 {
		return nil, ErrNoElevation
	}
	if aoi != nil {
		dem = raster.Clip(dem, aoi)
	}
	if dem.ValidCount() == 0 {
		return nil, fmt.Errorf("%w: the model does not cover the area", ErrNoElevation)
	}
	return Products(dem), nil
}

// Products returns elevation, slope and aspect in degrees, and hillshade in 0..255
// for the first band of dem. Slope uses Horn's 3x3 kernel, so border pixels and
// pixels next to no-data are no-data on the derived layers. Aspect is the downhill
// direction clockwise from north.
func Products(dem *raster.Raster) *raster.Raster {
	z := dem.Bands[0].Data
	w, h := dem.Width, dem.Height
	slope := make([]float64, len(z))
	aspect := make([]float64, len(z))
	shade := make([]float64, len(z))
	for i := range z {
		slope[i], aspect[i], shade[i] = raster.NoData, raster.NoData, raster.NoData
	}

	zenith := (90 - SunElevation) * math.Pi / 180
	azimuth := SunAzimuth * math.Pi / 180
	east, north := orientation(dem.GeoTransform)

	for y := 1; y < h-1; y++ {
		dx, dy := cellSize(dem, y)
		for x := 1; x < w-1; x++ {
			at := func(cx, cy int) float64 { return z[(y+cy)*w+x+cx] }
			a, b, c := at(-1, -1), at(0, -1), at(1, -1)
			d, f := at(-1, 0), at(1, 0)
			g, hh, i := at(-1, 1), at(0, 1), at(1, 1)
			if anyNoData(a, b, c, d, f, g, hh, i) || raster.IsNoData(at(0, 0)) {
				continue
			}
			// rise towards east and north
			dzdx := east * ((c + 2*f + i) - (a + 2*d + g)) / (8 * dx)
			dzdy := north * ((a + 2*b + c) - (g + 2*hh + i)) / (8 * dy)

			s := math.Atan(math.Hypot(dzdx, dzdy))
			asp := math.Atan2(-dzdx, -dzdy)
			if asp < 0 {
				asp += 2 * math.Pi
			}
			hs := 255 * (math.Cos(zenith)*math.Cos(s) + math.Sin(zenith)*math.Sin(s)*math.Cos(azimuth-asp))

			idx := y*w + x
			slope[idx] = s * 180 / math.Pi
			aspect[idx] = asp * 180 / math.Pi
			shade[idx] = math.Max(0, hs)
		}
	}

	return dem.Derive(
		raster.Band{Name: string(catalog.ElevationLayer), Data: append([]float64(nil), z...)},
		raster.Band{Name: string(catalog.SlopeLayer), Data: slope},
		raster.Band{Name: string(catalog.AspectLayer), Data: aspect},
		raster.Band{Name: string(catalog.HillshadeLayer), Data: shade},
	)
}

// Catalog splits products into one tagged raster per terrain role, all filed under
// area.
func Catalog(area string, products *raster.Raster, runID string) (*catalog.Catalog, error) {
	out := catalog.New()
	for _, role := range catalog.TerrainRoles() {
		data, ok := products.Band(string(role))
		if !ok {
			return nil, fmt.Errorf("%w: no %s layer", ErrNoElevation, role)
		}
		layer := products.Derive(raster.Band{Name: string(role), Data: data})
		prov := catalog.Provenance{
			Period:    area,
			Role:      role,
			TimeStart: MissionStart,
			TimeEnd:   MissionEnd,
			Sensor:    Sensor,
			RunID:     runID,
		}
		layer.ID = prov.ID()
		if err := out.Append(layer, prov); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func anyNoData(values ...float64) bool {
	for _, v := range values {
		if raster.IsNoData(v) {
			return true
		}
	}
	return false
}

// orientation gives the sign turning column and row steps into east and north.
func orientation(gt [6]float64) (east, north float64) {
	east, north = 1, 1
	if gt[1] < 0 {
		east = -1
	}
	if gt[5] > 0 {
		north = -1
	}
	return east, north
}

const (
	metresPerDegreeLat = 110574.0
	metresPerDegreeLon = 111320.0
)

// cellSize is the pixel size in metres on row y. Geographic grids are converted at
// the row's latitude.
func cellSize(r *raster.Raster, y int) (dx, dy float64) {
	dx, dy = math.Abs(r.GeoTransform[1]), math.Abs(r.GeoTransform[5])
	if !geographic(r) {
		return dx, dy
	}
	lat := r.PixelCenter(0, y).Y()
	return dx * metresPerDegreeLon * math.Cos(lat*math.Pi/180), dy * metresPerDegreeLat
}

func geographic(r *raster.Raster) bool {
	wkt := strings.TrimSpace(r.Projection)
	if wkt == "" {
		return math.Abs(r.GeoTransform[1]) < 1
	}
	return strings.HasPrefix(wkt, "GEOGCS") || strings.HasPrefix(wkt, "GEOGCRS")
}
