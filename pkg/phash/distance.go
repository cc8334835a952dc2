package phash

import "math/bits"

// Distance returns the Hamming distance between two fingerprints, counted
// per hex digit via XOR and popcount.
//
// Fingerprints of different lengths belong to different hash schemes and
// are incomparable: the result is the full bit width of the wider one, a
// conservative "not a match" rather than an error.
func Distance(a, b Fingerprint) int {
	if len(a) != len(b) {
		w := len(a)
		if len(b) > w {
			w = len(b)
		}
		return w * 4
	}

	dist := 0
	for i := 0; i < len(a); i++ {
		va, okA := hexVal(a[i])
		vb, okB := hexVal(b[i])
		if !okA || !okB {
			dist += 4
			continue
		}
		dist += bits.OnesCount8(va ^ vb)
	}
	return dist
}

// Similarity converts a Hamming distance over the given bit width into a
// 0-100 percentage. Strictly decreasing in distance for a fixed width.
func Similarity(distance, bitWidth int) int {
	if bitWidth <= 0 {
		return 0
	}
	if distance > bitWidth {
		distance = bitWidth
	}
	// round((1 - d/bits) * 100)
	return ((bitWidth-distance)*100*2 + bitWidth) / (2 * bitWidth)
}
