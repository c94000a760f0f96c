package sensor

import (
	"errors"
	"fmt"

	"github.com/forest-guardian/burnsev/internal/raster"
)

var ErrMissingQualityBand = errors.New("raster has no quality band")

const (
	s2CloudBit  = 1 << 10
	s2CirrusBit = 1 << 11

	l8CloudShadowBit = 1 << 3
	l8SnowBit        = 1 << 4
	l8CloudBit       = 1 << 5
)

// sentinel2Clear rejects opaque cloud and cirrus.
func sentinel2Clear(qa uint16) bool {
	return qa&s2CloudBit == 0 && qa&s2CirrusBit == 0
}

// landsat8Clear rejects cloud shadow, cloud and snow. Snow has to go as well: unburned
// snow-covered pixels read as dark post-fire surfaces.
func landsat8Clear(qa uint16) bool {
	return qa&l8CloudShadowBit == 0 && qa&l8CloudBit == 0 && qa&l8SnowBit == 0
}

// Clear decodes a single QA value.
func (p *Profile) Clear(qa uint16) bool {
	return p.qaDecode(qa)
}

// ComputeValidityMask decodes the QA channel of r into a per-pixel validity mask.
func ComputeValidityMask(r *raster.Raster, p *Profile) (raster.Mask, error) {
	if len(r.QA) != r.Len() {
		return raster.Mask{}, fmt.Errorf("%w: %q (%s expects %s)", ErrMissingQualityBand, r.ID, p.Name, p.QABand)
	}
	mask := raster.NewMask(r.Width, r.Height)
	for i, qa := range r.QA {
		mask.Valid[i] = p.qaDecode(qa)
	}
	return mask, nil
}

// MaskClouds computes the validity mask of r and applies it.
func MaskClouds(r *raster.Raster, p *Profile) (*raster.Raster, error) {
	mask, err := ComputeValidityMask(r, p)
	if err != nil {
		return nil, err
	}
	return raster.ApplyMask(r, mask)
}
