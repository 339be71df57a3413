package normalize

import (
	"fmt"
	"testing"

	"tomonorm/pkg/volume"
)

// TestPlanChunks verifies the partitioning policy: exact coverage with no
// overlaps, fixed-size chunks when a chunk size is given, and even spread
// with the remainder on the earliest chunks otherwise.
func TestPlanChunks(t *testing.T) {
	testCases := []struct {
		name       string
		start, end int
		workers    int
		chunkSize  int
		expected   []Chunk
	}{
		{
			name:  "SingleWorkerSingleChunk",
			start: 0, end: 8, workers: 1, chunkSize: 0,
			expected: []Chunk{{0, 8}},
		},
		{
			name:  "EvenSpread",
			start: 0, end: 8, workers: 4, chunkSize: 0,
			expected: []Chunk{{0, 2}, {2, 4}, {4, 6}, {6, 8}},
		},
		{
			name:  "RemainderToEarliestChunks",
			start: 0, end: 10, workers: 4, chunkSize: 0,
			expected: []Chunk{{0, 3}, {3, 6}, {6, 8}, {8, 10}},
		},
		{
			name:  "MoreWorkersThanFrames",
			start: 0, end: 3, workers: 8, chunkSize: 0,
			expected: []Chunk{{0, 1}, {1, 2}, {2, 3}},
		},
		{
			name:  "ChunkSizeOne",
			start: 0, end: 3, workers: 2, chunkSize: 1,
			expected: []Chunk{{0, 1}, {1, 2}, {2, 3}},
		},
		{
			name:  "ChunkSizeNotDividingRange",
			start: 0, end: 10, workers: 2, chunkSize: 4,
			expected: []Chunk{{0, 4}, {4, 8}, {8, 10}},
		},
		{
			name:  "SubRange",
			start: 5, end: 17, workers: 3, chunkSize: 0,
			expected: []Chunk{{5, 9}, {9, 13}, {13, 17}},
		},
		{
			name:  "EmptyRange",
			start: 4, end: 4, workers: 2, chunkSize: 0,
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			chunks := planChunks(tc.start, tc.end, tc.workers, tc.chunkSize)
			if len(chunks) != len(tc.expected) {
				t.Fatalf("expected %d chunks, got %d: %v", len(tc.expected), len(chunks), chunks)
			}
			for i, want := range tc.expected {
				if chunks[i] != want {
					t.Errorf("chunk %d: expected %v, got %v", i, want, chunks[i])
				}
			}
		})
	}
}

// TestPlanChunksPartitionInvariant checks that arbitrary parameter
// combinations always produce a contiguous, exhaustive partition.
func TestPlanChunksPartitionInvariant(t *testing.T) {
	for _, n := range []int{1, 2, 7, 16, 31} {
		for _, workers := range []int{1, 2, 3, 8, 40} {
			for _, chunkSize := range []int{0, 1, 3, 50} {
				chunks := planChunks(0, n, workers, chunkSize)
				pos := 0
				for _, ch := range chunks {
					if ch.Start != pos {
						t.Fatalf("n=%d workers=%d chunkSize=%d: chunk starts at %d, expected %d",
							n, workers, chunkSize, ch.Start, pos)
					}
					if ch.End <= ch.Start {
						t.Fatalf("n=%d workers=%d chunkSize=%d: empty chunk %v", n, workers, chunkSize, ch)
					}
					pos = ch.End
				}
				if pos != n {
					t.Fatalf("n=%d workers=%d chunkSize=%d: partition covers [0, %d), expected [0, %d)",
						n, workers, chunkSize, pos, n)
				}
			}
		}
	}
}

// TestDispatchEquivalence verifies that for every worker/chunk-size
// combination the dispatched result is elementwise identical to running the
// kernel sequentially over the whole frame range.
func TestDispatchEquivalence(t *testing.T) {
	const frames, rows, cols = 11, 4, 5

	tomo := makeVolume(frames, rows, cols, func(f, i int) float64 {
		return float64(f*100+i) / 7
	})
	flat := make([]float64, rows*cols)
	dark := make([]float64, rows*cols)
	for i := range flat {
		flat[i] = 9 + float64(i%3)
		dark[i] = float64(i % 2)
	}

	// Sequential reference over the entire frame range.
	want := tomo.Clone()
	if err := FlatFieldKernel(flat, dark, 1.2)(want, 0, frames); err != nil {
		t.Fatalf("sequential kernel failed: %v", err)
	}

	combos := []Options{
		{Workers: 1, Cutoff: 1.2},               // single chunk covering the whole volume
		{Workers: 4, ChunkSize: 1, Cutoff: 1.2}, // chunk size 1
		{Workers: 3, ChunkSize: 4, Cutoff: 1.2}, // chunk size not dividing frame count
		{Workers: 4, Cutoff: 1.2},               // even spread with remainder
		{Cutoff: 1.2},                           // defaults
	}

	for _, opts := range combos {
		t.Run(fmt.Sprintf("Workers%dChunk%d", opts.Workers, opts.ChunkSize), func(t *testing.T) {
			got := tomo.Clone()
			n := NewNormalizer(opts)
			if err := n.dispatch(got, 0, frames, FlatFieldKernel(flat, dark, opts.Cutoff)); err != nil {
				t.Fatalf("dispatch failed: %v", err)
			}
			for i := range want.Data {
				if got.Data[i] != want.Data[i] {
					t.Fatalf("sample %d: expected %v, got %v", i, want.Data[i], got.Data[i])
				}
			}
		})
	}
}

// TestDispatchDeterminism runs the same parallel dispatch repeatedly and
// requires bit-identical output regardless of goroutine scheduling.
func TestDispatchDeterminism(t *testing.T) {
	const frames = 16
	tomo := makeVolume(frames, 3, 3, func(f, i int) float64 { return float64(f*10 + i) })
	flat := []float64{3, 3, 3, 3, 3, 3, 3, 3, 3}
	dark := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1}

	n := NewNormalizer(Options{Workers: 4, ChunkSize: 3})

	first := tomo.Clone()
	if err := n.dispatch(first, 0, frames, FlatFieldKernel(flat, dark, 0)); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	for run := 0; run < 10; run++ {
		again := tomo.Clone()
		if err := n.dispatch(again, 0, frames, FlatFieldKernel(flat, dark, 0)); err != nil {
			t.Fatalf("dispatch failed on run %d: %v", run, err)
		}
		for i := range first.Data {
			if again.Data[i] != first.Data[i] {
				t.Fatalf("run %d sample %d: expected %v, got %v", run, i, first.Data[i], again.Data[i])
			}
		}
	}
}

// TestDispatchErrorPropagation verifies that a failing chunk surfaces its
// error to the caller after the remaining chunks finish.
func TestDispatchErrorPropagation(t *testing.T) {
	tomo := volume.New(8, 2, 2)

	failing := func(vol *volume.Volume, start, end int) error {
		if start >= 4 {
			return fmt.Errorf("detector fault in frames [%d, %d)", start, end)
		}
		return nil
	}

	n := NewNormalizer(Options{Workers: 4, ChunkSize: 2})
	err := n.dispatch(tomo, 0, tomo.Frames, failing)
	if err == nil {
		t.Fatal("expected dispatch to surface the kernel error")
	}
}
