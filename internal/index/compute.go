package index

import (
	"fmt"
	"math"

	"github.com/forest-guardian/burnsev/internal/raster"
	"github.com/forest-guardian/burnsev/internal/sensor"
)

// Evaluate computes a formula for a single pixel. values follow RequiredBands.
func Evaluate(f Formula, values []float64) (float64, error) {
	def, ok := formulas[f]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormula, f)
	}
	if len(values) != len(def.Bands) {
		return 0, fmt.Errorf("%s expects %d band values, got %d", f, len(def.Bands), len(values))
	}
	result := def.Expr(values)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, ErrDivisionUndefined
	}
	return result, nil
}

// Bind resolves the channels a formula reads on the given sensor. Called once at setup
// so an incompatible formula/sensor pair fails before any imagery is fetched.
func Bind(f Formula, profile *sensor.Profile) ([]string, error) {
	def, ok := formulas[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormula, f)
	}
	channels := make([]string, len(def.Bands))
	for i, band := range def.Bands {
		channel, err := profile.Resolve(band)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", f, err)
		}
		channels[i] = channel
	}
	return channels, nil
}

// Compute evaluates the formula over every pixel of r and returns a single-band raster
// named after the formula. Pixels with missing inputs or an undefined division are
// no-data.
func Compute(r *raster.Raster, profile *sensor.Profile, f Formula) (*raster.Raster, error) {
	channels, err := Bind(f, profile)
	if err != nil {
		return nil, err
	}
	inputs := make([][]float64, len(channels))
	for i, channel := range channels {
		data, ok := r.Band(channel)
		if !ok {
			return nil, fmt.Errorf("raster %q has no channel %s required by %s", r.ID, channel, f)
		}
		inputs[i] = data
	}

	out := make([]float64, r.Len())
	values := make([]float64, len(inputs))
	for px := range out {
		out[px] = raster.NoData
		missing := false
		for i, data := range inputs {
			values[i] = data[px]
			if raster.IsNoData(values[i]) {
				missing = true
				break
			}
		}
		if missing {
			continue
		}
		v, err := Evaluate(f, values)
		if err != nil {
			continue
		}
		out[px] = v
	}
	return r.Derive(raster.Band{Name: string(f), Data: out}), nil
}
