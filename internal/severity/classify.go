// Package severity buckets dNBR values into the eight UN-SPIDER burn severity classes.
package severity

import (
	"image/color"
	"math"

	"github.com/forest-guardian/burnsev/internal/raster"
)

type Class int

const (
	OutOfRange Class = iota
	EnhancedRegrowthHigh
	EnhancedRegrowthLow
	Unburned
	Low
	ModerateLow
	ModerateHigh
	High

	NoData Class = -1
)

// NumClasses is the number of data classes, NoData excluded.
const NumClasses = 8

// upper holds the inclusive upper bound of classes 1..6. Class 0 is everything
// below -500 and class 7 everything above 660.
var upper = [NumClasses - 2]float64{-250, -100, 100, 270, 440, 660}

const lowest = -500

var labels = [NumClasses]string{
	"NA",
	"Enhanced regrowth, high",
	"Enhanced regrowth, low",
	"Unburned",
	"Low severity",
	"Moderate-low severity",
	"Moderate-high severity",
	"High severity",
}

var palette = [NumClasses]color.RGBA{
	{0xff, 0xff, 0xff, 0xff},
	{0x7a, 0x87, 0x37, 0xff},
	{0xac, 0xbe, 0x4d, 0xff},
	{0x0a, 0xe0, 0x42, 0xff},
	{0xff, 0xf7, 0x0b, 0xff},
	{0xff, 0xaf, 0x38, 0xff},
	{0xff, 0x64, 0x1b, 0xff},
	{0xa4, 0x1f, 0xd6, 0xff},
}

// NoDataColor paints pixels without a class.
var NoDataColor = color.RGBA{0x00, 0x00, 0x00, 0x00}

// Classify maps a dNBR value to its class. Breakpoints:
//
//	(-inf,-500) 0, [-500,-250] 1, (-250,-100] 2, (-100,100] 3,
//	(100,270] 4, (270,440] 5, (440,660] 6, (660,+inf) 7
//
// The lowest bucket is open at -500 so the scale is not symmetric around zero:
// Classify(-100) is 2 while Classify(100) is 3.
func Classify(v float64) (Class, bool) {
	if math.IsNaN(v) {
		return NoData, false
	}
	if v < lowest {
		return OutOfRange, true
	}
	for i, bound := range upper {
		if v <= bound {
			return Class(i + 1), true
		}
	}
	return High, true
}

// ClassifyRaster returns a categorical raster holding the class number of each pixel
// of the first band of delta, no-data where delta has none.
func ClassifyRaster(delta *raster.Raster) *raster.Raster {
	data := make([]float64, delta.Len())
	if len(delta.Bands) > 0 {
		for i, v := range delta.Bands[0].Data {
			c, ok := Classify(v)
			if !ok {
				data[i] = raster.NoData
				continue
			}
			data[i] = float64(c)
		}
	}
	return delta.Derive(raster.Band{Name: "severity", Data: data})
}

func (c Class) Valid() bool {
	return c >= 0 && c < NumClasses
}

func (c Class) Label() string {
	if !c.Valid() {
		return "No data"
	}
	return labels[c]
}

func (c Class) Color() color.RGBA {
	if !c.Valid() {
		return NoDataColor
	}
	return palette[c]
}

func Classes() []Class {
	classes := make([]Class, NumClasses)
	for i := range classes {
		classes[i] = Class(i)
	}
	return classes
}
