// Package bitmap implements a bit-addressable view over a fixed-size byte
// region, optionally backed by a memory-mapped file.
//
// A Bitmap owns exactly one mapped region for its whole lifetime: either an
// anonymous, process-private mapping, or a mapping of a file that has been
// zero-extended to the requested size before mmap is ever called. Bits are
// addressed MSB-first within each byte — bit i lives in byte i>>3 at bit
// position 7-(i%8) — which is not an implementation detail, it is the
// on-disk format (see the package doc of bloom for the layout this
// supports).
//
// This package never synchronizes access across goroutines or processes: a
// Bitmap is meant to be owned by exactly one BloomFilter, which is in turn
// owned by exactly one caller.
package bitmap

import (
	"fmt"
)

// Sharing selects how a file-backed mapping is shared with the underlying
// file. Anonymous bitmaps are always Private, since there is no file for
// other mappings to observe.
type Sharing int

const (
	// Shared mappings write through to the backing file; other mappings of
	// the same file observe the writes, and Flush persists them.
	Shared Sharing = iota

	// Private mappings are copy-on-write: writes never reach the backing
	// file, and Flush is a no-op beyond returning success.
	Private
)

// Bitmap is a fixed-size, bit-addressable view over a byte region. The
// region is either anonymous (heap-equivalent, process-private) or backed
// by a file opened and zero-extended to sizeBytes before mapping.
type Bitmap struct {
	sizeBytes int64
	addr      []byte
	sharing   Sharing
	path      string // empty for anonymous maps
	handle    fileHandle
	closed    bool
}

// New creates a Bitmap of sizeBytes bytes (8*sizeBytes bits).
//
// If path is empty, the map is anonymous and always Private: no file is
// opened, and Flush/Close never touch a file descriptor. If path is
// non-empty, the file at path is opened (created if necessary), zero-
// extended to at least sizeBytes per the protocol described in zeroExtend,
// and then mapped Shared unless private is true.
//
// On any failure, no mapping and no open file descriptor is leaked: New
// unwinds everything it opened before returning.
func New(sizeBytes int64, path string, private bool) (*Bitmap, error) {
	if sizeBytes <= 0 {
		return nil, fmt.Errorf("bitmap: size_bytes must be positive, got %d: %w", sizeBytes, ErrInvalidArgument)
	}

	sharing := Shared
	if private || path == "" {
		sharing = Private
	}

	addr, handle, err := mapRegion(sizeBytes, path, sharing)
	if err != nil {
		return nil, err
	}

	return &Bitmap{
		sizeBytes: sizeBytes,
		addr:      addr,
		sharing:   sharing,
		path:      path,
		handle:    handle,
	}, nil
}

// LenBits returns the number of addressable bits, 8*sizeBytes.
func (b *Bitmap) LenBits() int64 {
	return 8 * b.sizeBytes
}

// Size returns the size of the backing region in bytes.
func (b *Bitmap) Size() int64 {
	return b.sizeBytes
}

// IsFileBacked reports whether this Bitmap maps a file rather than
// anonymous memory.
func (b *Bitmap) IsFileBacked() bool {
	return b.path != ""
}

// Get returns 0 or 1, the value of bit i. Like indexing a Go slice, an
// out-of-range i panics: callers are expected to stay within
// [0, LenBits()), and bit access never fails in normal operation (see
// spec's "bit operations never fail" in the Failure semantics notes).
func (b *Bitmap) Get(i int64) byte {
	byteIdx := i >> 3
	bitPos := uint(7 - (i % 8))
	return (b.addr[byteIdx] >> bitPos) & 0x1
}

// Set writes bit i. Any nonzero v is treated as 1.
func (b *Bitmap) Set(i int64, v byte) {
	byteIdx := i >> 3
	bitPos := uint(7 - (i % 8))
	mask := byte(1) << bitPos
	if v != 0 {
		b.addr[byteIdx] |= mask
	} else {
		b.addr[byteIdx] &^= mask
	}
}

// GetSlice returns a byte-range view [i, j) of the backing region. The
// returned slice aliases the mapped memory; mutating it mutates the
// Bitmap.
func (b *Bitmap) GetSlice(i, j int64) ([]byte, error) {
	if err := b.checkRange(i, j); err != nil {
		return nil, err
	}
	return b.addr[i:j], nil
}

// SetSlice overwrites the byte-range [i, j) with data. len(data) must equal
// j-i.
func (b *Bitmap) SetSlice(i, j int64, data []byte) error {
	if err := b.checkRange(i, j); err != nil {
		return err
	}
	if int64(len(data)) != j-i {
		return fmt.Errorf("bitmap: SetSlice data length %d does not match range length %d: %w", len(data), j-i, ErrIndexOutOfRange)
	}
	copy(b.addr[i:j], data)
	return nil
}

func (b *Bitmap) checkRange(i, j int64) error {
	if i < 0 || j > b.sizeBytes || i >= j {
		return fmt.Errorf("bitmap: range [%d, %d) invalid for size %d: %w", i, j, b.sizeBytes, ErrIndexOutOfRange)
	}
	return nil
}

// Flush synchronously persists writes to the backing file. For file-backed
// Shared maps, this is msync(MS_SYNC) followed by fsync of the file
// descriptor. Private maps and anonymous maps return success without any
// syscall, since there is nothing durable to flush.
func (b *Bitmap) Flush() error {
	if b.closed {
		return nil
	}
	if !b.IsFileBacked() || b.sharing == Private {
		return nil
	}
	return b.handle.flush(b.addr)
}

// Close flushes (if flush is true) then unmaps the region and closes the
// backing file descriptor, if any. Close is idempotent: a second call is a
// no-op. Destroying a Shared file-backed Bitmap without flushing first may
// lose writes that were never msynced.
func (b *Bitmap) Close(flush bool) error {
	if b.closed {
		return nil
	}
	var flushErr error
	if flush {
		flushErr = b.Flush()
	}
	b.closed = true

	unmapErr := b.handle.unmap(b.addr)
	closeErr := b.handle.closeFile()
	b.addr = nil

	if flushErr != nil {
		return flushErr
	}
	if unmapErr != nil {
		return unmapErr
	}
	return closeErr
}

// Union returns a new anonymous Bitmap whose bits are the bitwise OR of a
// and b's bits. a and b must have equal Size(). This is a set union at the
// byte level: it is meaningful for two Bitmaps that back compatible
// BloomFilters (same k, same partition layout), not an arbitrary pair.
func Union(a, b *Bitmap) (*Bitmap, error) {
	return combine(a, b, func(x, y byte) byte { return x | y })
}

// Intersect returns a new anonymous Bitmap whose bits are the bitwise AND
// of a and b's bits. a and b must have equal Size().
func Intersect(a, b *Bitmap) (*Bitmap, error) {
	return combine(a, b, func(x, y byte) byte { return x & y })
}

func combine(a, b *Bitmap, op func(x, y byte) byte) (*Bitmap, error) {
	if a.sizeBytes != b.sizeBytes {
		return nil, fmt.Errorf("bitmap: cannot combine bitmaps of size %d and %d: %w", a.sizeBytes, b.sizeBytes, ErrInvalidArgument)
	}
	out, err := New(a.sizeBytes, "", true)
	if err != nil {
		return nil, err
	}
	for i := int64(0); i < a.sizeBytes; i++ {
		out.addr[i] = op(a.addr[i], b.addr[i])
	}
	return out, nil
}
