package normalize

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"tomonorm/pkg/volume"
)

// Chunk is a half-open range of frame indices dispatched to one worker.
// Chunks exist purely for parallelism; they carry no calibration meaning.
type Chunk struct {
	Start, End int
}

// planChunks partitions the frame range [start, end) into contiguous,
// non-overlapping chunks whose union covers the range exactly.
//
// A positive chunkSize forces fixed-length chunks, with the last chunk
// absorbing whatever remains. Otherwise frames are spread evenly across the
// workers, with the remainder distributed to the earliest chunks at one
// extra frame each.
func planChunks(start, end, workers, chunkSize int) []Chunk {
	n := end - start
	if n <= 0 {
		return nil
	}

	if chunkSize > 0 {
		chunks := make([]Chunk, 0, (n+chunkSize-1)/chunkSize)
		for s := start; s < end; s += chunkSize {
			e := s + chunkSize
			if e > end {
				e = end
			}
			chunks = append(chunks, Chunk{Start: s, End: e})
		}
		return chunks
	}

	if workers > n {
		workers = n
	}
	base := n / workers
	extra := n % workers
	chunks := make([]Chunk, 0, workers)
	s := start
	for i := 0; i < workers; i++ {
		length := base
		if i < extra {
			length++
		}
		chunks = append(chunks, Chunk{Start: s, End: s + length})
		s += length
	}
	return chunks
}

// dispatch partitions frames [start, end) of vol into chunks and runs the
// kernel once per chunk across the worker pool. Each chunk owns a disjoint
// frame range of the shared buffer, so the result is identical to running
// the kernel sequentially over the whole range regardless of scheduling.
//
// If any kernel invocation fails, the first error is returned after every
// outstanding chunk has finished.
func (n *Normalizer) dispatch(vol *volume.Volume, start, end int, kern Kernel) error {
	workers := n.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	chunks := planChunks(start, end, workers, n.opts.ChunkSize)
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) == 1 {
		return kern(vol, chunks[0].Start, chunks[0].End)
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for _, ch := range chunks {
		ch := ch
		g.Go(func() error {
			return kern(vol, ch.Start, ch.End)
		})
	}
	return g.Wait()
}
