package bloom

// fnvPrime is the 32-bit FNV prime, widened to 64 bits so all four
// accumulators below share width with the partition offsets they are
// reduced against.
const fnvPrime = uint64(0x811C9DC5)

// computeHashes produces k 64-bit hash values for key using the classical
// djb2/dek/fnv/js scheme, combined via salted re-mixing rather than k
// independent hash functions.
//
//	DESIGN
//	------
//
//	Four hashes come out of a single pass over the key: djb2, a variant of
//	Dan Bernstein's hash; dek, a Donald Knuth hash; fnv, the Fowler-Noll-Vo
//	hash; and js, a hash attributed to Justin Sobel. Each is a different
//	mixing function over the same byte stream, which makes them cheap to
//	decorrelate relative to computing four unrelated hash functions.
//
//	For k <= 4 one pass over the key is enough. For k > 4, rounds beyond the
//	first are re-keyed with an 8-byte little-endian salt derived from the
//	previous round's four final accumulator values (djb xor dek xor fnv xor
//	js): the salt bytes are mixed through all four accumulators first, then
//	the key bytes again. This is "double hashing" in the Kirsch-Mitzenmacher
//	sense: each round behaves like an independent hash of (salt || key)
//	without re-reading the key from a different seed state.
//
//	dek's initial value is len(key) for round 0; rounds after the first add
//	8 to that seed before mixing, accounting for the salt bytes that will
//	be folded in ahead of the key.
func computeHashes(key []byte, k int) []uint64 {
	rounds := (k + 3) / 4
	hashes := make([]uint64, k)

	var salt uint64
	for round := 0; round < rounds; round++ {
		djb := uint64(5381)
		dek := uint64(len(key))
		fnv := uint64(0)
		js := uint64(1315423911)

		if round > 0 {
			dek += 8
			for j := 0; j < 8; j++ {
				b := byte(salt >> (uint(j) * 8))
				djb = (djb << 5) + djb + uint64(b)
				dek = ((dek << 6) ^ (dek >> 27)) ^ uint64(b)
				fnv *= fnvPrime
				fnv ^= uint64(b)
				js ^= (js << 5) + uint64(b) + (js >> 2)
			}
		}

		for _, b := range key {
			djb = (djb << 5) + djb + uint64(b)
			dek = ((dek << 6) ^ (dek >> 27)) ^ uint64(b)
			fnv *= fnvPrime
			fnv ^= uint64(b)
			js ^= (js << 5) + uint64(b) + (js >> 2)
		}

		slots := [4]uint64{djb, dek, fnv, js}
		for s := 0; s < 4; s++ {
			idx := 4*round + s
			if idx >= k {
				break
			}
			hashes[idx] = slots[s]
		}

		salt = djb ^ dek ^ fnv ^ js
	}

	return hashes
}

// partitionPositions maps k hash values into k disjoint bit ranges, each of
// width offset: hash slot j owns bits [j*offset, (j+1)*offset), and lands
// on hash[j] mod offset within that range. Disjoint per-hash ranges are
// what the scaling bound in the sbf package assumes; scattering all k bits
// across the full bitmap (as a classic Bloom filter does) would break that
// analysis.
func partitionPositions(hashes []uint64, offset int64) []int64 {
	positions := make([]int64, len(hashes))
	for j, h := range hashes {
		positions[j] = int64(j)*offset + int64(h%uint64(offset))
	}
	return positions
}
