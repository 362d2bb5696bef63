package bloom

import "testing"

// TestComputeHashesWorkedExample pins the djb/dek/fnv/js rounds to fixed
// values for a few small keys, computed by hand-evaluating the mixing
// steps in hash.go. This is a regression test for the exact algorithm:
// any change to the per-byte mixing, the salt derivation, or the
// round/slot bookkeeping would change these values.
func TestComputeHashesWorkedExample(t *testing.T) {
	cases := []struct {
		key  string
		k    int
		want []uint64
	}{
		{"a", 4, []uint64{0x2b606, 0x21, 0x61, 0x9aef5004d}},
		{"hello", 1, []uint64{0x310f923099}},
	}

	for _, c := range cases {
		got := computeHashes([]byte(c.key), c.k)
		if len(got) != len(c.want) {
			t.Fatalf("key=%q k=%d: got %d hashes, want %d", c.key, c.k, len(got), len(c.want))
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("key=%q k=%d slot %d: got %#x, want %#x", c.key, c.k, i, got[i], c.want[i])
			}
		}
	}
}

// TestComputeHashesMultiRound verifies that k > 4 spans multiple rounds
// and that the first four slots of a k=8 computation match a k=4
// computation on the same key (round 0 is identical regardless of how
// many rounds follow it).
func TestComputeHashesMultiRound(t *testing.T) {
	four := computeHashes([]byte("test"), 4)
	eight := computeHashes([]byte("test"), 8)

	if len(eight) != 8 {
		t.Fatalf("expected 8 hashes, got %d", len(eight))
	}
	for i := 0; i < 4; i++ {
		if four[i] != eight[i] {
			t.Errorf("round 0 slot %d diverged between k=4 and k=8: %#x vs %#x", i, four[i], eight[i])
		}
	}
}

func TestPartitionPositionsDisjoint(t *testing.T) {
	hashes := computeHashes([]byte("partition-me"), 4)
	offset := int64(100)
	positions := partitionPositions(hashes, offset)

	for j, p := range positions {
		lo := int64(j) * offset
		hi := lo + offset
		if p < lo || p >= hi {
			t.Errorf("slot %d position %d outside its partition [%d, %d)", j, p, lo, hi)
		}
	}
}
