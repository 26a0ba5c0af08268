package scoreintake

// hash32Multiplier is the odd 32-bit multiplier the reference scoring
// algorithm applies twice, between its three xor-shift folds.
const hash32Multiplier uint32 = 0x119DE1F3

// hash32 is the triple-fold multiplicative-XOR mix of spec.md §4.7:
// y1 = ((x>>16)^x)*m, y2 = ((y1>>16)^y1)*m, result = (y2>>16)^y2, all mod
// 2^32 (free via uint32 wraparound).
func hash32(x uint32) uint32 {
	y1 := ((x >> 16) ^ x) * hash32Multiplier
	y2 := ((y1 >> 16) ^ y1) * hash32Multiplier
	return (y2 >> 16) ^ y2
}

// calculatedScore derives the authoritative leaderboard score from the raw
// decrypted score. The raw value is signed; it is taken mod 2^32 via the
// two's-complement truncation Go's numeric conversion already performs.
func calculatedScore(score int64) uint32 {
	return hash32(uint32(score))
}
