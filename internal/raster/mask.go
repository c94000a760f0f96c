package raster

import "fmt"

type Mask struct {
	Width  int
	Height int
	Valid  []bool
}

func NewMask(width, height int) Mask {
	valid := make([]bool, width*height)
	for i := range valid {
		valid[i] = true
	}
	return Mask{Width: width, Height: height, Valid: valid}
}

// ApplyMask returns a copy of r where every pixel the mask rejects is no-data on
// every band. The QA channel is carried over unchanged.
func ApplyMask(r *Raster, m Mask) (*Raster, error) {
	if r.Width != m.Width || r.Height != m.Height {
		return nil, fmt.Errorf("%w: mask is %dx%d, raster %q is %dx%d", ErrGridMismatch, m.Width, m.Height, r.ID, r.Width, r.Height)
	}
	masked := r.Clone()
	for i, valid := range m.Valid {
		if valid {
			continue
		}
		for _, b := range masked.Bands {
			b.Data[i] = NoData
		}
	}
	return masked, nil
}
