package imagery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest-guardian/burnsev/internal/geo"
	"github.com/forest-guardian/burnsev/internal/period"
	"github.com/forest-guardian/burnsev/internal/raster"
)

func scene(id string, day int) *raster.Raster {
	r := raster.New(2, 2, [6]float64{0, 1, 0, 2, 0, -1}, "B8")
	r.ID = id
	r.Acquired = time.Date(2020, 1, day, 0, 0, 0, 0, time.UTC)
	return r
}

func TestMemorySourceFiltersHalfOpenWindow(t *testing.T) {
	src := NewMemorySource()
	src.Add("S2", scene("a", 1), scene("b", 5), scene("c", 10))
	src.Add("L8", scene("d", 5))

	window, err := period.ParseRange("2020-01-01", "2020-01-10")
	require.NoError(t, err)

	got, err := src.Query(context.Background(), "S2", window, geo.Rect(0, 0, 2, 2))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestMemorySourceSkipsScenesOutsideAOI(t *testing.T) {
	src := NewMemorySource()
	src.Add("S2", scene("a", 1))

	window, err := period.ParseRange("2020-01-01", "2020-02-01")
	require.NoError(t, err)

	got, err := src.Query(context.Background(), "S2", window, geo.Rect(50, 50, 60, 60))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemorySourceHonoursDeadline(t *testing.T) {
	src := NewMemorySource()
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := src.Query(ctx, "S2", period.DateRange{}, nil)
	assert.ErrorIs(t, err, ErrImagerySourceTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
