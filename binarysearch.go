package zekta

// lowerBound returns the smallest index k in [0, length] such that
// inserting at k preserves order, given cmp(i) == sign(item[i] - key).
//
// On an exact match, lowerBound returns the index where the match was
// found, not necessarily the first or last such index — callers needing
// the leftmost or rightmost equal index must walk linearly from the
// returned position (see bucket.go's range-to-offsets mapping).
func lowerBound(length int, cmp func(i int) int) int {
	lo, hi := 0, length

	for lo < hi {
		mid := lo + (hi-lo)/2

		switch s := cmp(mid); {
		case s == 0:
			return mid
		case s < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}

	return lo
}
