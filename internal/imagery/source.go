// Package imagery defines the catalog of geo-referenced scenes the pipeline reads from.
package imagery

import (
	"context"
	"errors"

	"github.com/forest-guardian/burnsev/internal/geo"
	"github.com/forest-guardian/burnsev/internal/period"
	"github.com/forest-guardian/burnsev/internal/raster"
)

var (
	ErrNoImageryAvailable   = errors.New("no imagery available")
	ErrImagerySourceTimeout = errors.New("imagery source timeout")
)

// Source returns every scene of collection acquired in window whose footprint
// intersects aoi. Scenes carry their acquisition time and QA channel.
type Source interface {
	Query(ctx context.Context, collection string, window period.DateRange, aoi *geo.AreaOfInterest) ([]*raster.Raster, error)
}

// TimeoutError maps a context deadline to ErrImagerySourceTimeout, leaving other
// errors untouched.
func TimeoutError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrImagerySourceTimeout) {
		return errors.Join(ErrImagerySourceTimeout, err)
	}
	return err
}
