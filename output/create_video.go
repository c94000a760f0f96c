package output

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"github.com/icza/mjpeg"
)

// CreateTimelapse writes frames as an MJPEG AVI sized after the first frame.
func CreateTimelapse(frames []image.Image, outputPath string, fps int32) error {
	if len(frames) == 0 {
		return errors.New("no frames to encode")
	}
	if !strings.HasSuffix(outputPath, ".avi") {
		outputPath += ".avi"
	}
	if fps <= 0 {
		fps = 1
	}
	if err := ensureDir(outputPath); err != nil {
		return err
	}

	bounds := frames[0].Bounds()
	writer, err := mjpeg.New(outputPath, int32(bounds.Dx()), int32(bounds.Dy()), fps)
	if err != nil {
		return err
	}

	for i, img := range frames {
		if img.Bounds().Dx() != bounds.Dx() || img.Bounds().Dy() != bounds.Dy() {
			writer.Close()
			return fmt.Errorf("frame %d is %dx%d, expected %dx%d", i, img.Bounds().Dx(), img.Bounds().Dy(), bounds.Dx(), bounds.Dy())
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}); err != nil {
			writer.Close()
			return err
		}
		if err := writer.AddFrame(buf.Bytes()); err != nil {
			writer.Close()
			return err
		}
	}
	return writer.Close()
}
