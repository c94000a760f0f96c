package pipeline

import (
	"fmt"
	"time"

	"github.com/forest-guardian/burnsev/internal/catalog"
	"github.com/forest-guardian/burnsev/internal/raster"
)

// AggregateQuery reduces the rasters of the given roles whose time range starts in
// [Start, End), e.g. the maximum dNBR over several fire seasons.
type AggregateQuery struct {
	Roles []catalog.Role
	Start time.Time
	End   time.Time
	Op    catalog.ReduceOp
}

func Aggregate(c *catalog.Catalog, q AggregateQuery) (*raster.Raster, error) {
	subset := c.FilterByRole(q.Roles...).FilterByDateRange(q.Start, q.End)
	out, err := subset.Reduce(q.Op)
	if err != nil {
		return nil, fmt.Errorf("error aggregating %v between %s and %s: %w", q.Roles, q.Start.Format(time.DateOnly), q.End.Format(time.DateOnly), err)
	}
	return out, nil
}
