// Package pipeline runs the burn severity analysis across every configured period
// and collects the tagged rasters into a catalog.
package pipeline

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/forest-guardian/burnsev/internal/geo"
	"github.com/forest-guardian/burnsev/internal/index"
	"github.com/forest-guardian/burnsev/internal/period"
	"github.com/forest-guardian/burnsev/internal/sensor"
)

var ErrInvalidConfig = errors.New("invalid pipeline configuration")

const DefaultFetchTimeout = 5 * time.Minute

// Config is everything a run needs. It is passed explicitly to Run, nothing is read
// from package state.
type Config struct {
	Profile *sensor.Profile
	AOI     *geo.AreaOfInterest
	Periods []period.Period
	Formula index.Formula
	// FetchTimeout bounds each imagery query. Zero means DefaultFetchTimeout.
	FetchTimeout time.Duration
	// Workers is the number of periods processed concurrently. Zero means GOMAXPROCS.
	Workers      int
	RunID        string
	ShowProgress bool
}

// Validate reports setup errors that must stop a run before any period starts.
func (c Config) Validate() error {
	if c.Profile == nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, sensor.ErrUnknownSensor)
	}
	if c.AOI == nil {
		return fmt.Errorf("%w: no area of interest", ErrInvalidConfig)
	}
	if len(c.Periods) == 0 {
		return fmt.Errorf("%w: no periods", ErrInvalidConfig)
	}
	seen := map[string]bool{}
	for _, p := range c.Periods {
		if seen[p.Name()] {
			return fmt.Errorf("%w: duplicate period %s", ErrInvalidConfig, p.Name())
		}
		seen[p.Name()] = true
	}
	if _, err := index.Bind(c.Formula, c.Profile); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) fetchTimeout() time.Duration {
	if c.FetchTimeout <= 0 {
		return DefaultFetchTimeout
	}
	return c.FetchTimeout
}

func (c Config) workers() int {
	if c.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.Workers
}

// Lookup returns the configured period with the given name.
func (c Config) Lookup(name string) (period.Period, bool) {
	for _, p := range c.Periods {
		if p.Name() == name {
			return p, true
		}
	}
	return period.Period{}, false
}
