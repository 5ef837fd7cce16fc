package feed

import "math"

// LatestHeights returns latest, latest-1, ... n heights in total, stopping at
// genesis when latest+1 < n.
func LatestHeights(latest uint64, n int) []uint64 {
	if n <= 0 {
		return nil
	}
	if latest < math.MaxUint64 && uint64(n) > latest+1 {
		n = int(latest + 1)
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = latest - uint64(i)
	}
	return out
}
