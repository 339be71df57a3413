package normalize

import (
	"gonum.org/v1/gonum/stat"

	"tomonorm/pkg/volume"
)

// DenomEpsilon replaces flat−dark differences that are exactly zero in the
// correction denominator. It is far smaller than any physically meaningful
// detector response, so the substitution avoids division by zero without
// introducing visible artifacts.
const DenomEpsilon = 1e-6

// Kernel corrects frames [start, end) of vol in place. A kernel owns exactly
// that frame range for the duration of the call and must not read or write
// frames outside it; the dispatcher relies on this to run kernels over
// disjoint ranges of one shared buffer without locking.
type Kernel func(vol *volume.Volume, start, end int) error

// FlatFieldKernel returns the standard correction kernel computing
// (projection − dark) / (flat − dark) per pixel. The flat and dark reference
// frames must match the frame shape of the volumes it is applied to.
//
// Denominator pixels equal to zero are replaced with DenomEpsilon. A positive
// cutoff clamps corrected values from above; values at or below the cutoff,
// including negative ones, pass through unchanged.
func FlatFieldKernel(flat, dark []float64, cutoff float64) Kernel {
	// The guarded denominator is shared read-only across all chunks.
	denom := make([]float64, len(flat))
	for i := range denom {
		d := flat[i] - dark[i]
		if d == 0 {
			d = DenomEpsilon
		}
		denom[i] = d
	}

	return func(vol *volume.Volume, start, end int) error {
		for f := start; f < end; f++ {
			frame := vol.Frame(f)
			for i, p := range frame {
				corrected := (p - dark[i]) / denom[i]
				if cutoff > 0 && corrected > cutoff {
					corrected = cutoff
				}
				frame[i] = corrected
			}
		}
		return nil
	}
}

// BackgroundKernel returns a kernel that scales each sinogram row by its air
// region: the mean of the leftmost and rightmost air columns defines a
// per-row linear background, and every pixel is divided by the background
// value interpolated at its column. Row boundaries therefore come out at
// one, with intermediate values scaled linearly.
func BackgroundKernel(air int) Kernel {
	return func(vol *volume.Volume, start, end int) error {
		cols := vol.Cols
		for f := start; f < end; f++ {
			frame := vol.Frame(f)
			for r := 0; r < vol.Rows; r++ {
				row := frame[r*cols : (r+1)*cols]
				left := stat.Mean(row[:air], nil)
				right := stat.Mean(row[cols-air:], nil)
				for j := range row {
					weight := left
					if cols > 1 {
						weight += (right - left) * float64(j) / float64(cols-1)
					}
					if weight == 0 {
						weight = DenomEpsilon
					}
					row[j] /= weight
				}
			}
		}
		return nil
	}
}
