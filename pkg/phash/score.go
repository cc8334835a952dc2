package phash

// The on-chain similarity score is a single byte in the Hamming-distance
// domain: 0 means identical, 255 maximally different. Every call site that
// moves between the byte and a 0-100 similarity percentage must use this
// one mapping so the stored value stays intelligible to resolvers.

// ScoreByte maps a 0-100 similarity percentage to the on-chain score byte.
//
//	ScoreByte(100) = 0, ScoreByte(0) = 255
func ScoreByte(similarity int) uint8 {
	if similarity < 0 {
		similarity = 0
	}
	if similarity > 100 {
		similarity = 100
	}
	return uint8(((100-similarity)*255*2 + 100) / 200)
}

// SimilarityFromByte inverts ScoreByte back into a 0-100 percentage.
func SimilarityFromByte(score uint8) int {
	return 100 - (int(score)*100*2+255)/(2*255)
}

// ScoreByteFromDistance maps a Hamming distance over the given bit width
// directly to the on-chain score byte.
func ScoreByteFromDistance(distance, bitWidth int) uint8 {
	return ScoreByte(Similarity(distance, bitWidth))
}
