// Package normalize corrects raw tomographic projection volumes for detector
// and illumination non-uniformity using flat-field (bright) and dark-field
// (zero-light) calibration frames.
//
// The correction is a pure value transformation: reference frames are reduced
// from the calibration stacks, and each projection frame is corrected
// independently as (projection − dark) / (flat − dark). Work is partitioned
// along the frame axis into chunks that run in parallel over the shared
// volume buffer; every partition yields a result identical to a sequential
// pass.
package normalize

import (
	"fmt"

	"tomonorm/pkg/volume"
)

// Options control chunked dispatch and the intensity clamp. The zero value
// uses all CPUs, spreads frames evenly across workers, and applies no clamp.
type Options struct {
	// Workers is the number of worker goroutines. Values <= 0 use
	// runtime.NumCPU().
	Workers int

	// ChunkSize is the number of frames per chunk. Values <= 0 spread the
	// frames evenly across the workers instead.
	ChunkSize int

	// Cutoff is an upper clamp applied to corrected intensities. Values
	// <= 0 disable the clamp.
	Cutoff float64
}

// Normalizer applies flat/dark-field corrections to projection volumes.
// It holds no per-call state; one Normalizer may be shared across
// goroutines and reused for any number of volumes.
type Normalizer struct {
	opts Options
}

// NewNormalizer creates a normalizer with the given dispatch options.
func NewNormalizer(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

// Normalize corrects tomo in place using the arithmetic mean of the flat and
// dark stacks as reference frames. The tomogram's storage is mutated
// destructively; the calibration stacks are read-only.
func (n *Normalizer) Normalize(tomo, flat, dark *volume.Volume) error {
	if err := checkStacks(tomo, flat, dark); err != nil {
		return err
	}

	flatRef := reduceMean(flat, 0, flat.Frames)
	darkRef := reduceMean(dark, 0, dark.Frames)

	return n.dispatch(tomo, 0, tomo.Frames, FlatFieldKernel(flatRef, darkRef, n.opts.Cutoff))
}

// NormalizeBackground corrects tomo in place by scaling each sinogram row
// against its air region, using air boundary pixels on each side of the row
// to estimate the background (see BackgroundKernel).
func (n *Normalizer) NormalizeBackground(tomo *volume.Volume, air int) error {
	if air <= 0 {
		return fmt.Errorf("air pixel count must be positive, got %d", air)
	}
	if air > tomo.Cols {
		return fmt.Errorf("air pixel count %d exceeds %d columns", air, tomo.Cols)
	}
	return n.dispatch(tomo, 0, tomo.Frames, BackgroundKernel(air))
}

// NormalizeNearestFlats corrects a tomogram whose flat fields were acquired
// repeatedly during the scan. flatLoc lists the tomogram frame indices of
// the flat acquisitions in strictly increasing order; each projection is
// corrected with the median flat of the acquisition nearest to it in
// acquisition order, and with the median of the entire dark stack.
//
// The flat stack is divided into len(flatLoc) equal runs of
// flats.Frames/len(flatLoc) frames each; trailing frames beyond the last
// full run are unused. The input tomogram is left untouched and a freshly
// allocated corrected volume is returned.
func (n *Normalizer) NormalizeNearestFlats(tomo, flats, dark *volume.Volume, flatLoc []int) (*volume.Volume, error) {
	if err := checkStacks(tomo, flats, dark); err != nil {
		return nil, err
	}
	if err := checkFlatLocations(flatLoc, tomo.Frames); err != nil {
		return nil, err
	}
	if flats.Frames < len(flatLoc) {
		return nil, fmt.Errorf("flat stack has %d frames for %d acquisitions", flats.Frames, len(flatLoc))
	}

	out := tomo.Clone()

	// The dark reference is shared by every segment and computed once.
	darkRef := reduceMedian(dark, 0, dark.Frames)

	perFlat := flats.Frames / len(flatLoc)
	for m, seg := range nearestFlatSegments(flatLoc, tomo.Frames) {
		flatRef := reduceMedian(flats, m*perFlat, (m+1)*perFlat)
		kern := FlatFieldKernel(flatRef, darkRef, n.opts.Cutoff)
		if err := n.dispatch(out, seg.start, seg.end, kern); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Apply dispatches a caller-supplied kernel over every frame of tomo. It is
// the extension point for alternative per-chunk correction strategies; the
// kernel must honor the ownership contract documented on Kernel.
func (n *Normalizer) Apply(tomo *volume.Volume, kern Kernel) error {
	return n.dispatch(tomo, 0, tomo.Frames, kern)
}

// checkStacks validates the shared input contract of the entry operations:
// all three volumes agree on frame shape and the calibration stacks carry at
// least one frame each. Violations surface before any worker is dispatched,
// so the tomogram is never partially mutated.
func checkStacks(tomo, flat, dark *volume.Volume) error {
	if !tomo.SameFrameShape(flat) {
		return fmt.Errorf("flat frame shape (%d, %d) does not match tomogram (%d, %d)",
			flat.Rows, flat.Cols, tomo.Rows, tomo.Cols)
	}
	if !tomo.SameFrameShape(dark) {
		return fmt.Errorf("dark frame shape (%d, %d) does not match tomogram (%d, %d)",
			dark.Rows, dark.Cols, tomo.Rows, tomo.Cols)
	}
	if flat.Frames < 1 {
		return fmt.Errorf("flat stack is empty")
	}
	if dark.Frames < 1 {
		return fmt.Errorf("dark stack is empty")
	}
	return nil
}

// checkFlatLocations validates the acquisition index list for the
// time-varying variant: non-empty, strictly increasing, and within the
// tomogram's frame range.
func checkFlatLocations(flatLoc []int, totalFrames int) error {
	if len(flatLoc) == 0 {
		return fmt.Errorf("flat location list is empty")
	}
	for i, loc := range flatLoc {
		if loc < 0 || loc >= totalFrames {
			return fmt.Errorf("flat location %d at position %d is outside [0, %d)", loc, i, totalFrames)
		}
		if i > 0 && loc <= flatLoc[i-1] {
			return fmt.Errorf("flat locations must be strictly increasing, got %d after %d", loc, flatLoc[i-1])
		}
	}
	return nil
}
