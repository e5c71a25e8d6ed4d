package strtable

// pearson is a fixed permutation of 0..255. It is generated once from a
// constant seed so keys written by one build are reproduced by the next.
var pearson = func() [256]byte {
	var t [256]byte
	for i := range t {
		t[i] = byte(i)
	}
	x := uint32(0x9E3779B9)
	for i := 255; i > 0; i-- {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		j := int(x % uint32(i+1))
		t[i], t[j] = t[j], t[i]
	}
	return t
}()

func pearson8(s string, first byte) byte {
	h := pearson[first]
	for i := 1; i < len(s); i++ {
		h = pearson[h^s[i]]
	}
	return h
}

// hash16 scores s twice with the 8-bit Pearson hash, the second time with
// its first byte perturbed, and packs both results into 16 bits.
func hash16(s string) uint16 {
	if s == "" {
		return 0
	}
	hi := pearson8(s, s[0])
	lo := pearson8(s, s[0]+1)
	return uint16(hi)<<8 | uint16(lo)
}
