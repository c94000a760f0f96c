package output

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/forest-guardian/burnsev/internal/raster"
	"github.com/forest-guardian/burnsev/internal/sensor"
	"github.com/forest-guardian/burnsev/internal/severity"
)

// Palette is a linear colour ramp; values are interpolated between stops.
type Palette []color.RGBA

var (
	Grey = Palette{{255, 255, 255, 255}, {0, 0, 0, 255}}
	// Terrain runs deep blue to red for elevation, slope, aspect and hillshade.
	Terrain = Palette{{0x19, 0x2F, 0x9C, 255}, {0xD4, 0x10, 0x00, 255}}
)

var transparent = color.RGBA{}

func normalize(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	norm := (value - min) / (max - min)
	if norm < 0 {
		return 0
	}
	if norm > 1 {
		return 1
	}
	return norm
}

func (p Palette) At(norm float64) color.RGBA {
	if len(p) == 1 {
		return p[0]
	}
	pos := norm * float64(len(p)-1)
	i := int(pos)
	if i >= len(p)-1 {
		return p[len(p)-1]
	}
	ratio := pos - float64(i)
	lerp := func(a, b uint8) uint8 {
		return uint8(float64(a) + (float64(b)-float64(a))*ratio + 0.5)
	}
	a, b := p[i], p[i+1]
	return color.RGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 255}
}

// RenderLinear stretches band between min and max over the palette. No-data is
// transparent.
func RenderLinear(r *raster.Raster, band string, min, max float64, palette Palette) (*image.RGBA, error) {
	data, ok := r.Band(band)
	if !ok {
		return nil, fmt.Errorf("raster %s has no band %s", r.ID, band)
	}
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			v := data[y*r.Width+x]
			if raster.IsNoData(v) {
				img.SetRGBA(x, y, transparent)
				continue
			}
			img.SetRGBA(x, y, palette.At(normalize(v, min, max)))
		}
	}
	return img, nil
}

// RenderTrueColor draws the RED, GREEN and BLUE bands of a mosaic stretched from 0 to
// the sensor's true colour bound. Mosaics in 0-1 reflectance units are detected and
// stretched to the same bound divided by 10000.
func RenderTrueColor(r *raster.Raster, profile *sensor.Profile) (*image.RGBA, error) {
	var channels [3][]float64
	for i, b := range []sensor.Band{sensor.Red, sensor.Green, sensor.Blue} {
		name, err := profile.Resolve(b)
		if err != nil {
			return nil, err
		}
		data, ok := r.Band(name)
		if !ok {
			return nil, fmt.Errorf("raster %s has no band %s", r.ID, name)
		}
		channels[i] = data
	}

	max := profile.TrueColorMax
	peak := 0.0
	for _, c := range channels {
		for _, v := range c {
			if !raster.IsNoData(v) && v > peak {
				peak = v
			}
		}
	}
	if peak <= 1 {
		max /= 10000
	}

	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for i := 0; i < r.Len(); i++ {
		x, y := i%r.Width, i/r.Width
		if !r.ValidAt(i) {
			img.SetRGBA(x, y, transparent)
			continue
		}
		img.SetRGBA(x, y, color.RGBA{
			R: uint8(255 * normalize(channels[0][i], 0, max)),
			G: uint8(255 * normalize(channels[1][i], 0, max)),
			B: uint8(255 * normalize(channels[2][i], 0, max)),
			A: 255,
		})
	}
	return img, nil
}

// RenderClassified paints a categorical raster from severity.ClassifyRaster with the
// burn severity palette.
func RenderClassified(classified *raster.Raster) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, classified.Width, classified.Height))
	for i := 0; i < classified.Len(); i++ {
		c := severity.NoData
		if len(classified.Bands) > 0 && !raster.IsNoData(classified.Bands[0].Data[i]) {
			c = severity.Class(classified.Bands[0].Data[i])
		}
		img.SetRGBA(i%classified.Width, i/classified.Width, c.Color())
	}
	return img
}

// SaveImage writes a PNG, or a JPEG when path ends in .jpg/.jpeg.
func SaveImage(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 100})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}
