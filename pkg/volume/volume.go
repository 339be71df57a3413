// Package volume provides the 3D projection volume type shared by the
// normalization engine. A volume is a stack of equally sized 2D frames
// stored in a single flat array, axes ordered (frame, row, col).
package volume

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Volume represents a stack of 2D detector frames as a 3D array.
type Volume struct {
	// Data holds the samples as a 1D array in frame-major order:
	// Data[f*Rows*Cols + r*Cols + c] addresses frame f, row r, column c.
	Data []float64

	// Frames is the number of frames along the acquisition axis.
	Frames int

	// Rows is the number of detector rows per frame.
	Rows int

	// Cols is the number of detector columns per frame.
	Cols int
}

// New allocates a zero-filled volume with the given dimensions.
func New(frames, rows, cols int) *Volume {
	return &Volume{
		Data:   make([]float64, frames*rows*cols),
		Frames: frames,
		Rows:   rows,
		Cols:   cols,
	}
}

// FromSlice wraps an existing flat sample array as a volume. The array is
// used directly, not copied, so callers keep ownership of the storage.
func FromSlice(data []float64, frames, rows, cols int) (*Volume, error) {
	if frames <= 0 || rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("volume dimensions must be positive, got (%d, %d, %d)", frames, rows, cols)
	}
	if len(data) != frames*rows*cols {
		return nil, fmt.Errorf("data length %d does not match dimensions (%d, %d, %d)", len(data), frames, rows, cols)
	}
	return &Volume{Data: data, Frames: frames, Rows: rows, Cols: cols}, nil
}

// FrameSize returns the number of samples in a single frame.
func (v *Volume) FrameSize() int {
	return v.Rows * v.Cols
}

// Frame returns the samples of frame f as a sub-slice of the volume's
// storage. Writes through the returned slice mutate the volume.
func (v *Volume) Frame(f int) []float64 {
	size := v.FrameSize()
	return v.Data[f*size : (f+1)*size]
}

// At returns the sample at frame f, row r, column c.
func (v *Volume) At(f, r, c int) float64 {
	return v.Data[f*v.Rows*v.Cols+r*v.Cols+c]
}

// Set assigns the sample at frame f, row r, column c.
func (v *Volume) Set(f, r, c int, value float64) {
	v.Data[f*v.Rows*v.Cols+r*v.Cols+c] = value
}

// Fill assigns value to every sample in the volume.
func (v *Volume) Fill(value float64) {
	for i := range v.Data {
		v.Data[i] = value
	}
}

// Clone returns a deep copy of the volume with freshly allocated storage.
func (v *Volume) Clone() *Volume {
	data := make([]float64, len(v.Data))
	copy(data, v.Data)
	return &Volume{Data: data, Frames: v.Frames, Rows: v.Rows, Cols: v.Cols}
}

// SameFrameShape reports whether two volumes share identical row and column
// dimensions. Frame counts may differ: a tomogram and its calibration
// stacks agree on frame shape but not on frame count.
func (v *Volume) SameFrameShape(o *Volume) bool {
	return v.Rows == o.Rows && v.Cols == o.Cols
}

// Load reads a raw little-endian float64 volume of the given dimensions
// from a file. The file must contain exactly frames*rows*cols samples.
func Load(path string, frames, rows, cols int) (*Volume, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open volume file: %w", err)
	}
	defer file.Close()

	v := New(frames, rows, cols)
	if err := binary.Read(file, binary.LittleEndian, v.Data); err != nil {
		return nil, fmt.Errorf("failed to read volume data from %s: %w", path, err)
	}
	return v, nil
}

// Save writes the volume as raw little-endian float64 samples.
func (v *Volume) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create volume file: %w", err)
	}
	defer file.Close()

	if err := binary.Write(file, binary.LittleEndian, v.Data); err != nil {
		return fmt.Errorf("failed to write volume data to %s: %w", path, err)
	}
	return nil
}
