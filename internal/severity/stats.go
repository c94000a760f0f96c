package severity

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/forest-guardian/burnsev/internal/raster"
)

// Histogram counts pixels per class over a categorical raster from ClassifyRaster.
type Histogram struct {
	Counts [NumClasses]int
	NoData int
}

func NewHistogram(classified *raster.Raster) Histogram {
	var h Histogram
	if len(classified.Bands) == 0 {
		h.NoData = classified.Len()
		return h
	}
	for _, v := range classified.Bands[0].Data {
		c := Class(-1)
		if !raster.IsNoData(v) {
			c = Class(v)
		}
		if !c.Valid() {
			h.NoData++
			continue
		}
		h.Counts[c]++
	}
	return h
}

func (h Histogram) Total() int {
	total := h.NoData
	for _, n := range h.Counts {
		total += n
	}
	return total
}

// Fraction is the share of classified pixels falling into c.
func (h Histogram) Fraction(c Class) float64 {
	classified := h.Total() - h.NoData
	if !c.Valid() || classified == 0 {
		return 0
	}
	return float64(h.Counts[c]) / float64(classified)
}

// Stats summarises the valid pixels of a delta raster.
type Stats struct {
	Valid  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	Median float64
}

func Describe(delta *raster.Raster) Stats {
	var values []float64
	if len(delta.Bands) > 0 {
		for _, v := range delta.Bands[0].Data {
			if !raster.IsNoData(v) {
				values = append(values, v)
			}
		}
	}
	if len(values) == 0 {
		nan := math.NaN()
		return Stats{Min: nan, Max: nan, Mean: nan, StdDev: nan, Median: nan}
	}

	sort.Float64s(values)
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	return Stats{
		Valid:  len(values),
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   mean,
		StdDev: std,
		Median: stat.Quantile(0.5, stat.Empirical, values, nil),
	}
}
