// Package bloom implements a partitioned, k-hash Bloom filter over a
// bitmap.Bitmap, with a small persistent header embedded at the tail of
// the bitmap.
//
// Data Layout
// ===========
//
// The filter occupies the whole of its backing Bitmap. The last
// HeaderBytes (12) bytes are the header; everything before that is bit
// storage, split into k equal-width, non-overlapping partitions, one per
// hash function:
//
//	+----------------------------------------------+------------------+
//	| Bit storage: k partitions of `offset` bits    | Header (12 B)    |
//	+----------------------------------------------+------------------+
//
//	Header:
//	+--------------------+--------------------+
//	| count (8 B, u64 LE) | k (4 B, u32 LE)    |
//	+--------------------+--------------------+
//
// A freshly zeroed header has k == 0, which New treats as "uninitialized":
// it installs the caller-supplied k and writes it through. Reopening an
// existing filter always uses the stored k, ignoring whatever the caller
// passed — this is what makes the on-disk format stable across process
// restarts.
//
// Hashing
// =======
//
// See hash.go for the djb/dek/fnv/js rotating-round scheme used to derive
// k hash values from a key, and partitionPositions for how those values
// become bit indices confined to each hash's own partition.
package bloom

import (
	"fmt"
	"math"

	"bloomdisk.dev/bitmap"
)

// ln2Squared is (ln 2)^2, used throughout the capacity/probability
// formulas below.
var ln2Squared = math.Log(2) * math.Log(2)

// Filter is a partitioned Bloom filter backed by a bitmap.Bitmap. It owns
// the Bitmap for its entire lifetime: Close closes the Bitmap too.
type Filter struct {
	bm             *bitmap.Bitmap
	hdr            header
	k              int
	bitmapSizeBits int64
	offset         int64
}

// New constructs a Filter over bm, an already-sized Bitmap. k is the
// number of hash functions to use if bm's header is uninitialized (stored
// k == 0); otherwise the stored k takes precedence and k is ignored.
//
// bm.Size() must exceed HeaderBytes (there must be room for at least one
// bit per partition) and k must be at least 1.
func New(bm *bitmap.Bitmap, k int) (*Filter, error) {
	if bm.Size() <= HeaderBytes {
		return nil, fmt.Errorf("bloom: bitmap of %d bytes too small to hold a %d-byte header: %w", bm.Size(), HeaderBytes, ErrInvalidArgument)
	}
	if k < 1 {
		return nil, fmt.Errorf("bloom: k must be at least 1, got %d: %w", k, ErrInvalidArgument)
	}

	hdrBytes, err := bm.GetSlice(bm.Size()-HeaderBytes, bm.Size())
	if err != nil {
		return nil, err
	}
	hdr := header(hdrBytes)

	if hdr.k() == 0 {
		hdr.setK(uint32(k))
		if err := bm.Flush(); err != nil {
			return nil, fmt.Errorf("bloom: flush header: %w: %w", err, ErrIO)
		}
	} else {
		k = int(hdr.k())
	}

	bitmapSizeBits := 8*bm.Size() - 8*HeaderBytes
	offset := bitmapSizeBits / int64(k)
	if offset <= 0 {
		return nil, fmt.Errorf("bloom: k=%d leaves no bits per partition in a %d-bit bitmap: %w", k, bitmapSizeBits, ErrInvalidArgument)
	}

	return &Filter{bm: bm, hdr: hdr, k: k, bitmapSizeBits: bitmapSizeBits, offset: offset}, nil
}

// ForCapacity sizes a Bitmap for capacity n at false-positive rate p via
// ParamsForCapacity, creates it (file-backed at path, or anonymous if path
// is empty), and constructs a Filter over it. It is a convenience that
// fuses the two-step "size it, then build it" sequence callers otherwise
// repeat at every call site.
func ForCapacity(path string, n uint64, p float64) (*Filter, error) {
	if p <= 0 || p >= 1 {
		return nil, fmt.Errorf("bloom: probability must be in (0, 1), got %v: %w", p, ErrInvalidArgument)
	}
	totalBytes, k := ParamsForCapacity(n, p)
	bm, err := bitmap.New(int64(totalBytes), path, false)
	if err != nil {
		return nil, err
	}
	f, err := New(bm, k)
	if err != nil {
		_ = bm.Close(false)
		return nil, err
	}
	return f, nil
}

// K returns the number of hash functions this filter uses.
func (f *Filter) K() int {
	return f.k
}

// Len returns count, the number of successful (novel, per the check_first
// semantics of Add) insertions. It is not a cardinality estimate: with
// check_first=false and duplicate keys, count can exceed the true number
// of distinct members.
func (f *Filter) Len() uint64 {
	return f.hdr.count()
}

// Add inserts key. If checkFirst is true and Contains(key) is already
// true, Add returns false without modifying any state (no bits, no
// count). Otherwise it sets all k partitioned bits (idempotent if some
// were already set), increments count, and returns true.
func (f *Filter) Add(key []byte, checkFirst bool) bool {
	if checkFirst && f.Contains(key) {
		return false
	}

	for _, pos := range partitionPositions(computeHashes(key, f.k), f.offset) {
		f.bm.Set(pos, 1)
	}
	f.hdr.setCount(f.hdr.count() + 1)
	return true
}

// Contains reports whether every one of key's k partitioned bits is set.
// A true result can be a false positive; a false result is always a true
// negative.
func (f *Filter) Contains(key []byte) bool {
	for _, pos := range partitionPositions(computeHashes(key, f.k), f.offset) {
		if f.bm.Get(pos) == 0 {
			return false
		}
	}
	return true
}

// Flush writes count into the header (it is a live view, so this is
// already true in memory) and flushes the underlying Bitmap.
func (f *Filter) Flush() error {
	if err := f.bm.Flush(); err != nil {
		return fmt.Errorf("bloom: flush: %w: %w", err, ErrIO)
	}
	return nil
}

// Close flushes and closes the underlying Bitmap.
func (f *Filter) Close() error {
	if err := f.bm.Close(true); err != nil {
		return fmt.Errorf("bloom: close: %w: %w", err, ErrIO)
	}
	return nil
}

// Union returns a new anonymous Filter whose bits are the union of a and
// b's bits. a and b must share k and partition layout (i.e. were built
// from the same ParamsForCapacity(n, p)). The result's count is reset to
// 0: a bitwise union no longer corresponds to any real sequence of Add
// calls, so "number of successful inserts" has no meaning for it.
func Union(a, b *Filter) (*Filter, error) {
	if err := compatible(a, b); err != nil {
		return nil, err
	}
	bm, err := bitmap.Union(a.bm, b.bm)
	if err != nil {
		return nil, err
	}
	return wrapCombined(bm, a.k)
}

// Intersect returns a new anonymous Filter whose bits are the intersection
// of a and b's bits. See Union for the compatibility requirement and the
// reset-count caveat.
func Intersect(a, b *Filter) (*Filter, error) {
	if err := compatible(a, b); err != nil {
		return nil, err
	}
	bm, err := bitmap.Intersect(a.bm, b.bm)
	if err != nil {
		return nil, err
	}
	return wrapCombined(bm, a.k)
}

func compatible(a, b *Filter) error {
	if a.k != b.k || a.offset != b.offset || a.bitmapSizeBits != b.bitmapSizeBits {
		return fmt.Errorf("bloom: filters have incompatible layouts (k=%d/%d, offset=%d/%d): %w", a.k, b.k, a.offset, b.offset, ErrInvalidArgument)
	}
	return nil
}

func wrapCombined(bm *bitmap.Bitmap, k int) (*Filter, error) {
	hdrBytes, err := bm.GetSlice(bm.Size()-HeaderBytes, bm.Size())
	if err != nil {
		return nil, err
	}
	hdr := header(hdrBytes)
	hdr.setK(uint32(k))
	hdr.setCount(0)

	bitmapSizeBits := 8*bm.Size() - 8*HeaderBytes
	return &Filter{bm: bm, hdr: hdr, k: k, bitmapSizeBits: bitmapSizeBits, offset: bitmapSizeBits / int64(k)}, nil
}

// RequiredBits returns the number of bits needed to hold n items at false
// positive probability p: ceil(-n*ln(p) / (ln 2)^2).
func RequiredBits(n uint64, p float64) uint64 {
	raw := -float64(n) * math.Log(p) / ln2Squared
	return uint64(math.Ceil(raw))
}

// RequiredBytes is RequiredBits rounded up to a whole number of bytes.
func RequiredBytes(n uint64, p float64) uint64 {
	return uint64(math.Ceil(float64(RequiredBits(n, p)) / 8.0))
}

// ExpectedProbability returns the false-positive probability of a filter
// with the given bit count, after n items have been inserted:
// e^(-(bits/n)*(ln 2)^2).
func ExpectedProbability(bits, n uint64) float64 {
	return math.Exp(-(float64(bits) / float64(n)) * ln2Squared)
}

// ExpectedCapacity returns the number of items a filter of the given bit
// count can hold while keeping its false-positive probability at or below
// p: -bits/ln(p) * (ln 2)^2.
func ExpectedCapacity(bits uint64, p float64) float64 {
	return -float64(bits) / math.Log(p) * ln2Squared
}

// IdealK returns the hash-function count that minimizes the false-positive
// probability for the given bit count and item count: ln(2) * bits / n.
func IdealK(bits, n uint64) float64 {
	return math.Log(2) * float64(bits) / float64(n)
}

// ExtraBuffer returns the number of header bytes a Filter reserves beyond
// raw bit storage. Callers computing usable capacity from a Bitmap's size
// subtract 8*ExtraBuffer() bits before applying ExpectedCapacity.
func ExtraBuffer() uint64 {
	return HeaderBytes
}

// ParamsForCapacity returns the total Bitmap size (bit storage plus
// header) and the ideal k for capacity n at false-positive rate p.
func ParamsForCapacity(n uint64, p float64) (totalBytes uint64, k int) {
	reqBytes := RequiredBytes(n, p)
	k = int(math.Ceil(IdealK(reqBytes*8, n)))
	if k < 1 {
		k = 1
	}
	return reqBytes + HeaderBytes, k
}
