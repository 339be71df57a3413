package normalize

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"tomonorm/pkg/volume"
)

// reduceMean collapses frames [start, end) of a calibration stack into one
// reference frame by averaging each pixel across the frame axis.
func reduceMean(stack *volume.Volume, start, end int) []float64 {
	size := stack.FrameSize()
	out := make([]float64, size)
	samples := make([]float64, end-start)
	for i := 0; i < size; i++ {
		for f := start; f < end; f++ {
			samples[f-start] = stack.Data[f*size+i]
		}
		out[i] = stat.Mean(samples, nil)
	}
	return out
}

// reduceMedian collapses frames [start, end) of a calibration stack into one
// reference frame by taking the per-pixel median across the frame axis. The
// median tolerates occasional corrupted or misaligned calibration frames
// that would skew a mean.
func reduceMedian(stack *volume.Volume, start, end int) []float64 {
	size := stack.FrameSize()
	out := make([]float64, size)
	samples := make([]float64, end-start)
	for i := 0; i < size; i++ {
		for f := start; f < end; f++ {
			samples[f-start] = stack.Data[f*size+i]
		}
		out[i] = median(samples)
	}
	return out
}

// median returns the median of values, sorting the slice in place. Even
// counts average the two middle values.
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n == 0 {
		return 0
	}
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2
	}
	return values[n/2]
}
