// Package delta differences a pre-fire and a post-fire index raster.
package delta

import (
	"fmt"

	"github.com/forest-guardian/burnsev/internal/raster"
)

// Scale rescales a normalized-ratio difference into severity units.
const Scale = 1000

// ComputeDelta returns (pre - post) * Scale. The output band is named after the pre
// index with a "d" prefix, dNBR for NBR inputs.
func ComputeDelta(pre, post *raster.Raster) (*raster.Raster, error) {
	if len(pre.Bands) == 0 || len(post.Bands) == 0 {
		return nil, fmt.Errorf("%w: delta needs single band inputs", raster.ErrGridMismatch)
	}
	out, err := raster.Combine(pre, post, "d"+pre.Bands[0].Name, func(a, b float64) float64 {
		return (a - b) * Scale
	})
	if err != nil {
		return nil, fmt.Errorf("error computing delta: %w", err)
	}
	return out, nil
}
