package bloom

import "encoding/binary"

// HeaderBytes is the size, in bytes, of the trailing header embedded in a
// BloomFilter's bitmap: an 8-byte count followed by a 4-byte k.
const HeaderBytes = 12

// header is a flyweight view over a Filter's trailing HeaderBytes, the same
// zero-copy-byte-slice pattern the teacher's Metadata/FilterHeader types
// use: no fields are copied out, every accessor reads or writes the
// backing bytes directly.
//
//	bytes [0, 8)  : count, little-endian u64
//	bytes [8, 12) : k, little-endian u32
type header []byte

func (h header) count() uint64 {
	return binary.LittleEndian.Uint64(h[0:8])
}

func (h header) setCount(v uint64) {
	binary.LittleEndian.PutUint64(h[0:8], v)
}

func (h header) k() uint32 {
	return binary.LittleEndian.Uint32(h[8:12])
}

func (h header) setK(v uint32) {
	binary.LittleEndian.PutUint32(h[8:12], v)
}
