// Package visualization renders corrected projection volumes as grayscale
// images for visual inspection of normalization results.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"tomonorm/pkg/volume"
)

// Viewer renders frames of a projection volume as grayscale images.
// Corrected intensities are mapped linearly from the volume's value range to
// the full 16-bit grayscale range, so previews stay meaningful whether the
// data is raw counts or normalized ratios around one.
type Viewer struct {
	vol *volume.Volume

	// lo and hi bound the linear intensity mapping
	lo, hi float64
}

// NewViewer creates a viewer for the given volume, scanning it once to
// establish the intensity range used for rendering.
func NewViewer(vol *volume.Volume) *Viewer {
	lo, hi := vol.Data[0], vol.Data[0]
	for _, v := range vol.Data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return &Viewer{vol: vol, lo: lo, hi: hi}
}

// RenderFrame renders frame f as a 16-bit grayscale image.
func (v *Viewer) RenderFrame(f int) (image.Image, error) {
	if f < 0 || f >= v.vol.Frames {
		return nil, fmt.Errorf("frame %d is outside [0, %d)", f, v.vol.Frames)
	}

	img := image.NewGray16(image.Rect(0, 0, v.vol.Cols, v.vol.Rows))
	span := v.hi - v.lo
	frame := v.vol.Frame(f)
	for r := 0; r < v.vol.Rows; r++ {
		for c := 0; c < v.vol.Cols; c++ {
			var scaled float64
			if span > 0 {
				scaled = (frame[r*v.vol.Cols+c] - v.lo) / span
			}
			img.SetGray16(c, r, color.Gray16{Y: uint16(scaled * 65535)})
		}
	}
	return img, nil
}

// SaveFrame renders frame f and writes it as a JPEG image.
func (v *Viewer) SaveFrame(f int, filename string) error {
	img, err := v.RenderFrame(f)
	if err != nil {
		return err
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveFrameSequence writes every frame of the volume as a JPEG image into
// outputDir, creating the directory if necessary.
func (v *Viewer) SaveFrameSequence(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for f := 0; f < v.vol.Frames; f++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("frame_%04d.jpg", f))
		if err := v.SaveFrame(f, filename); err != nil {
			return err
		}
	}
	return nil
}
