package normalize

// segment is one contiguous tomogram frame range assigned to a single
// flat-field acquisition in the time-varying variant.
type segment struct {
	start, end int
}

// nearestFlatSegments splits the tomogram frame range [0, total) into one
// segment per flat-field acquisition, such that each frame falls in the
// segment of the acquisition nearest to it in acquisition order.
//
// The boundary between the acquisitions at loc and next sits at
// loc + (next−loc−1)/2; integer floor division biases the split toward the
// earlier acquisition. The last segment always extends to total. Together
// the segments are contiguous, non-overlapping, and cover [0, total)
// exactly.
func nearestFlatSegments(flatLoc []int, total int) []segment {
	segs := make([]segment, len(flatLoc))
	end := 0
	for m, loc := range flatLoc {
		start := end
		if m == len(flatLoc)-1 {
			end = total
		} else {
			end = loc + (flatLoc[m+1]-loc-1)/2
		}
		segs[m] = segment{start: start, end: end}
	}
	return segs
}
