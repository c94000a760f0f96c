package raster

import "github.com/paulmach/orb"

// Region is anything that can tell whether a point lies inside it.
type Region interface {
	Contains(p orb.Point) bool
}

// Combine evaluates fn pixel by pixel over the first band of a and b. No-data in
// either input yields no-data.
func Combine(a, b *Raster, name string, fn func(x, y float64) float64) (*Raster, error) {
	if err := CheckGrid(a, b); err != nil {
		return nil, err
	}
	if len(a.Bands) == 0 || len(b.Bands) == 0 {
		return nil, ErrGridMismatch
	}
	out := make([]float64, a.Len())
	x, y := a.Bands[0].Data, b.Bands[0].Data
	for i := range out {
		if IsNoData(x[i]) || IsNoData(y[i]) {
			out[i] = NoData
			continue
		}
		out[i] = fn(x[i], y[i])
	}
	return a.Derive(Band{Name: name, Data: out}), nil
}

// Clip blanks every pixel whose centre falls outside region.
func Clip(r *Raster, region Region) *Raster {
	clipped := r.Clone()
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			if region.Contains(r.PixelCenter(x, y)) {
				continue
			}
			i := y*r.Width + x
			for _, b := range clipped.Bands {
				b.Data[i] = NoData
			}
		}
	}
	return clipped
}
