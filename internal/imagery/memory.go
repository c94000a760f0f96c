package imagery

import (
	"context"
	"sync"

	"github.com/forest-guardian/burnsev/internal/geo"
	"github.com/forest-guardian/burnsev/internal/period"
	"github.com/forest-guardian/burnsev/internal/raster"
)

// MemorySource serves scenes held in memory, keyed by collection.
type MemorySource struct {
	mu     sync.RWMutex
	scenes map[string][]*raster.Raster
}

func NewMemorySource() *MemorySource {
	return &MemorySource{scenes: map[string][]*raster.Raster{}}
}

func (s *MemorySource) Add(collection string, scenes ...*raster.Raster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes[collection] = append(s.scenes[collection], scenes...)
}

func (s *MemorySource) Query(ctx context.Context, collection string, window period.DateRange, aoi *geo.AreaOfInterest) ([]*raster.Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, TimeoutError(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []*raster.Raster
	for _, scene := range s.scenes[collection] {
		if !window.Contains(scene.Acquired) {
			continue
		}
		if aoi != nil && !aoi.Intersects(scene.Bound()) {
			continue
		}
		found = append(found, scene.Clone())
	}
	return found, nil
}
