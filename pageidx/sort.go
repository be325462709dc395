package pageidx

import "slices"

// sortAcrossSegments sorts the concatenation of the segments ascending and
// redistributes the sorted ids back into slices of the original lengths, in
// segment order. It is the in-memory half of the multi-page run repair: the
// caller gathers the row-id sub-arrays of every page a duplicate-value run
// touches, and scatters the result back to the same page positions.
func sortAcrossSegments(segs [][]int32) [][]int32 {
	var total int
	for _, s := range segs {
		total += len(s)
	}

	all := make([]int32, 0, total)
	for _, s := range segs {
		all = append(all, s...)
	}
	slices.Sort(all)

	out := make([][]int32, len(segs))
	for i, s := range segs {
		out[i] = all[:len(s):len(s)]
		all = all[len(s):]
	}
	return out
}
