package bloom

import "testing"

func TestHeaderAccessors(t *testing.T) {
	data := make([]byte, HeaderBytes)
	hdr := header(data)

	if hdr.count() != 0 {
		t.Error("fresh header should have 0 count")
	}
	if hdr.k() != 0 {
		t.Error("fresh header should have 0 k (uninitialized sentinel)")
	}

	hdr.setCount(42)
	hdr.setK(7)

	if hdr.count() != 42 {
		t.Errorf("count mismatch. got %d", hdr.count())
	}
	if hdr.k() != 7 {
		t.Errorf("k mismatch. got %d", hdr.k())
	}
}
