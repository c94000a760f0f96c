package output

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"

	"github.com/forest-guardian/burnsev/internal/severity"
)

const (
	previewMinSize = 256
	legendRow      = 16
	titleHeight    = 20
)

// Preview lays an image out for display: scaled up with nearest-neighbour to at least
// previewMinSize pixels on its longest side, a title on top and, for classified
// images, the severity legend underneath.
func Preview(img image.Image, title string, legend bool) image.Image {
	b := img.Bounds()
	scale := 1
	for longest := max(b.Dx(), b.Dy()); longest*scale < previewMinSize && longest > 0; {
		scale++
	}
	w, h := b.Dx()*scale, b.Dy()*scale

	height := titleHeight + h
	if legend {
		height += legendRow * severity.NumClasses
	}
	width := max(w, 240)

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(title, float64(width)/2, titleHeight/2, 0.5, 0.5)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dc.SetColor(img.At(b.Min.X+x/scale, b.Min.Y+y/scale))
			dc.SetPixel(x, titleHeight+y)
		}
	}

	if legend {
		top := float64(titleHeight + h)
		for i, c := range severity.Classes() {
			y := top + float64(i*legendRow)
			dc.SetColor(c.Color())
			dc.DrawRectangle(4, y+3, legendRow-6, legendRow-6)
			dc.Fill()
			dc.SetRGB(0, 0, 0)
			dc.DrawRectangle(4, y+3, legendRow-6, legendRow-6)
			dc.Stroke()
			dc.DrawStringAnchored(fmt.Sprintf("%d %s", int(c), c.Label()), legendRow+4, y+legendRow/2, 0, 0.5)
		}
	}
	return dc.Image()
}

// SavePreview renders a preview and saves it with SaveImage, so the extension of
// path picks PNG or JPEG.
func SavePreview(img image.Image, title string, legend bool, path string) error {
	if err := SaveImage(Preview(img, title, legend), path); err != nil {
		return fmt.Errorf("failed to save preview: %w", err)
	}
	return nil
}
