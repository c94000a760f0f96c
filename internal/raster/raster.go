// Package raster holds the in-memory multi-band grid every stage of the pipeline
// consumes and produces. Rasters are treated as immutable values: every operation
// returns a new raster and leaves its inputs untouched. No-data is NaN.
package raster

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
)

var ErrGridMismatch = errors.New("rasters do not share the same grid")

// NoData is the value stored in pixels without a valid observation.
var NoData = math.NaN()

func IsNoData(v float64) bool {
	return math.IsNaN(v)
}

type Band struct {
	Name string
	Data []float64
}

type Raster struct {
	ID           string
	Acquired     time.Time
	Width        int
	Height       int
	GeoTransform [6]float64
	Projection   string
	Bands        []Band
	// QA is the bit-encoded quality channel, nil once a raster is derived.
	QA []uint16
}

// New allocates a raster whose bands are filled with no-data.
func New(width, height int, geoTransform [6]float64, bandNames ...string) *Raster {
	r := &Raster{
		Width:        width,
		Height:       height,
		GeoTransform: geoTransform,
	}
	for _, name := range bandNames {
		data := make([]float64, width*height)
		for i := range data {
			data[i] = NoData
		}
		r.Bands = append(r.Bands, Band{Name: name, Data: data})
	}
	return r
}

func (r *Raster) Len() int {
	return r.Width * r.Height
}

func (r *Raster) Band(name string) ([]float64, bool) {
	for _, b := range r.Bands {
		if b.Name == name {
			return b.Data, true
		}
	}
	return nil, false
}

func (r *Raster) BandNames() []string {
	names := make([]string, len(r.Bands))
	for i, b := range r.Bands {
		names[i] = b.Name
	}
	return names
}

// Clone deep-copies pixel data and metadata.
func (r *Raster) Clone() *Raster {
	c := *r
	c.Bands = make([]Band, len(r.Bands))
	for i, b := range r.Bands {
		c.Bands[i] = Band{Name: b.Name, Data: append([]float64(nil), b.Data...)}
	}
	if r.QA != nil {
		c.QA = append([]uint16(nil), r.QA...)
	}
	return &c
}

// Derive returns an empty raster on the same grid, without QA, holding the given bands.
func (r *Raster) Derive(bands ...Band) *Raster {
	return &Raster{
		ID:           r.ID,
		Acquired:     r.Acquired,
		Width:        r.Width,
		Height:       r.Height,
		GeoTransform: r.GeoTransform,
		Projection:   r.Projection,
		Bands:        bands,
	}
}

func (r *Raster) SameGrid(o *Raster) bool {
	return r.Width == o.Width && r.Height == o.Height && r.GeoTransform == o.GeoTransform
}

func CheckGrid(rasters ...*Raster) error {
	for i := 1; i < len(rasters); i++ {
		if !rasters[0].SameGrid(rasters[i]) {
			return fmt.Errorf("%w: %q is %dx%d, %q is %dx%d", ErrGridMismatch,
				rasters[0].ID, rasters[0].Width, rasters[0].Height,
				rasters[i].ID, rasters[i].Width, rasters[i].Height)
		}
	}
	return nil
}

// ValidAt reports whether every band holds data at pixel index i.
func (r *Raster) ValidAt(i int) bool {
	if len(r.Bands) == 0 {
		return false
	}
	for _, b := range r.Bands {
		if IsNoData(b.Data[i]) {
			return false
		}
	}
	return true
}

func (r *Raster) ValidCount() int {
	count := 0
	for i := 0; i < r.Len(); i++ {
		if r.ValidAt(i) {
			count++
		}
	}
	return count
}

// PixelCenter converts pixel coordinates to the raster CRS.
func (r *Raster) PixelCenter(x, y int) orb.Point {
	gt := r.GeoTransform
	return orb.Point{
		gt[0] + gt[1]*(float64(x)+0.5) + gt[2]*(float64(y)+0.5),
		gt[3] + gt[4]*(float64(x)+0.5) + gt[5]*(float64(y)+0.5),
	}
}

func (r *Raster) Bound() orb.Bound {
	gt := r.GeoTransform
	corners := []orb.Point{
		{gt[0], gt[3]},
		{gt[0] + gt[1]*float64(r.Width), gt[3] + gt[4]*float64(r.Width)},
		{gt[0] + gt[2]*float64(r.Height), gt[3] + gt[5]*float64(r.Height)},
		{gt[0] + gt[1]*float64(r.Width) + gt[2]*float64(r.Height), gt[3] + gt[4]*float64(r.Width) + gt[5]*float64(r.Height)},
	}
	bound := corners[0].Bound()
	for _, c := range corners[1:] {
		bound = bound.Extend(c)
	}
	return bound
}

// Equal compares grids and pixel values, treating no-data as equal to no-data.
func (r *Raster) Equal(o *Raster) bool {
	if !r.SameGrid(o) || len(r.Bands) != len(o.Bands) {
		return false
	}
	for i, b := range r.Bands {
		if b.Name != o.Bands[i].Name {
			return false
		}
		for j, v := range b.Data {
			w := o.Bands[i].Data[j]
			if IsNoData(v) != IsNoData(w) || (!IsNoData(v) && v != w) {
				return false
			}
		}
	}
	return true
}
