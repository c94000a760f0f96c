// Package index evaluates spectral indexes from a fixed formula table. Every formula is
// written against semantic bands and bound to channels through the sensor profile.
package index

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/forest-guardian/burnsev/internal/sensor"
)

var (
	ErrUnknownFormula = errors.New("unknown spectral index")
	// ErrDivisionUndefined marks a pixel whose denominator is exactly zero. Compute
	// recovers it as no-data.
	ErrDivisionUndefined = errors.New("division undefined")
)

type Formula string

const (
	NBR  Formula = "NBR"
	NDVI Formula = "NDVI"
	NDMI Formula = "NDMI"
	EVI  Formula = "EVI"
	GLI  Formula = "GLI"
	SAVI Formula = "SAVI"
	GCI  Formula = "GCI"
	RGR  Formula = "RGR"
	SIPI Formula = "SIPI"
	ARVI Formula = "ARVI"
	NDTI Formula = "NDTI"
	CRC  Formula = "CRC"
	DFI  Formula = "DFI"
)

// soil brightness correction for SAVI, mean vegetation cover
const saviL = 0.5

type definition struct {
	Name  string
	Bands []sensor.Band
	// Expr receives band values in the order of Bands.
	Expr func(v []float64) float64
}

var formulas = map[Formula]definition{
	NBR: {
		Name:  "Normalized Burn Ratio",
		Bands: []sensor.Band{sensor.NIR, sensor.SWIR2},
		Expr:  func(v []float64) float64 { return normalized(v[0], v[1]) },
	},
	NDVI: {
		Name:  "Normalized Difference Vegetation Index",
		Bands: []sensor.Band{sensor.NIR, sensor.Red},
		Expr:  func(v []float64) float64 { return normalized(v[0], v[1]) },
	},
	NDMI: {
		Name:  "Normalized Difference Moisture Index",
		Bands: []sensor.Band{sensor.NIR, sensor.SWIR1},
		Expr:  func(v []float64) float64 { return normalized(v[0], v[1]) },
	},
	EVI: {
		Name:  "Enhanced Vegetation Index",
		Bands: []sensor.Band{sensor.NIR, sensor.Red, sensor.Blue},
		Expr: func(v []float64) float64 {
			nir, red, blue := v[0], v[1], v[2]
			return 2.5 * div(nir-red, nir+6*red-7.5*blue+1)
		},
	},
	GLI: {
		Name:  "Green Leaf Index",
		Bands: []sensor.Band{sensor.Green, sensor.Red, sensor.Blue},
		Expr: func(v []float64) float64 {
			green, red, blue := v[0], v[1], v[2]
			return div((green-red)+(green-blue), 2*green+red+blue)
		},
	},
	SAVI: {
		Name:  "Soil Adjusted Vegetation Index",
		Bands: []sensor.Band{sensor.NIR, sensor.Red},
		Expr: func(v []float64) float64 {
			nir, red := v[0], v[1]
			return div(nir-red, nir+red+saviL) * (1 + saviL)
		},
	},
	GCI: {
		Name:  "Green Chlorophyll Index",
		Bands: []sensor.Band{sensor.NIR, sensor.Green},
		Expr:  func(v []float64) float64 { return div(v[0], v[1]) - 1 },
	},
	RGR: {
		Name:  "Red Green Ratio",
		Bands: []sensor.Band{sensor.Red, sensor.Green},
		Expr:  func(v []float64) float64 { return div(v[0], v[1]) },
	},
	SIPI: {
		Name:  "Structure Insensitive Pigment Index",
		Bands: []sensor.Band{sensor.NIR, sensor.Blue, sensor.Red},
		Expr: func(v []float64) float64 {
			nir, blue, red := v[0], v[1], v[2]
			return div(nir-blue, nir-red)
		},
	},
	ARVI: {
		Name:  "Atmospherically Resistant Vegetation Index",
		Bands: []sensor.Band{sensor.NIR, sensor.Red, sensor.Blue},
		Expr: func(v []float64) float64 {
			nir, red, blue := v[0], v[1], v[2]
			return div(nir-2*red+blue, nir+2*red+blue)
		},
	},
	NDTI: {
		Name:  "Normalized Difference Tillage Index",
		Bands: []sensor.Band{sensor.SWIR1, sensor.SWIR2},
		Expr:  func(v []float64) float64 { return normalized(v[0], v[1]) },
	},
	CRC: {
		Name:  "Crop Residue Cover Index",
		Bands: []sensor.Band{sensor.SWIR1, sensor.Green},
		Expr:  func(v []float64) float64 { return normalized(v[0], v[1]) },
	},
	DFI: {
		Name:  "Dead Fuel Index",
		Bands: []sensor.Band{sensor.Red, sensor.NIR, sensor.SWIR1, sensor.SWIR2},
		Expr: func(v []float64) float64 {
			red, nir, swir1, swir2 := v[0], v[1], v[2], v[3]
			return (1 - div(swir2, swir1)) * div(red, nir)
		},
	},
}

// div yields NaN on a zero denominator so the caller can report the division.
func div(n, d float64) float64 {
	if d == 0 {
		return math.NaN()
	}
	return n / d
}

func normalized(a, b float64) float64 {
	return div(a-b, a+b)
}

func ParseFormula(s string) (Formula, error) {
	f := Formula(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := formulas[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormula, s)
	}
	return f, nil
}

// Formulas lists the catalog in alphabetical order.
func Formulas() []Formula {
	list := make([]Formula, 0, len(formulas))
	for f := range formulas {
		list = append(list, f)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

func (f Formula) Name() string {
	return formulas[f].Name
}

// RequiredBands returns the semantic bands the formula reads.
func (f Formula) RequiredBands() []sensor.Band {
	return append([]sensor.Band(nil), formulas[f].Bands...)
}
