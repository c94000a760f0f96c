package output

import (
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/forest-guardian/burnsev/internal/raster"
	"github.com/forest-guardian/burnsev/internal/severity"
)

// SeverityFeatures turns every classified pixel into a point feature at the pixel
// centre, carrying its dNBR value and class.
func SeverityFeatures(delta *raster.Raster) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if len(delta.Bands) == 0 {
		return fc
	}
	data := delta.Bands[0].Data
	for y := 0; y < delta.Height; y++ {
		for x := 0; x < delta.Width; x++ {
			v := data[y*delta.Width+x]
			c, ok := severity.Classify(v)
			if !ok {
				continue
			}
			f := geojson.NewFeature(delta.PixelCenter(x, y))
			f.Properties["x"] = x
			f.Properties["y"] = y
			f.Properties[delta.Bands[0].Name] = v
			f.Properties["class"] = int(c)
			f.Properties["label"] = c.Label()
			fc.Append(f)
		}
	}
	return fc
}

func WriteSeverityGeoJSON(delta *raster.Raster, outputPath string) error {
	data, err := SeverityFeatures(delta).MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode GeoJSON: %w", err)
	}
	if err := ensureDir(outputPath); err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	return nil
}
