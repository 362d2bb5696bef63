package bitmap

import "errors"

// Sentinel errors returned by the bitmap package. Construction failures are
// ErrInvalidArgument or ErrIO; bounds failures on the slice accessors are
// ErrIndexOutOfRange. Single-bit Get/Set are not in this list: like a plain
// Go slice index, an out-of-range bit index panics rather than returning an
// error, since there is no error return in their signature.
var (
	// ErrInvalidArgument indicates a non-positive size or an otherwise
	// malformed constructor argument. A backing file that cannot be opened
	// or created is reported as ErrIO.
	ErrInvalidArgument = errors.New("bitmap: invalid argument")

	// ErrIO wraps a failed open, extend, mmap, munmap, msync, or fsync
	// syscall. The underlying OS error is always available via errors.Unwrap.
	ErrIO = errors.New("bitmap: io error")

	// ErrIndexOutOfRange indicates a GetSlice/SetSlice range outside
	// [0, size_bytes].
	ErrIndexOutOfRange = errors.New("bitmap: index out of range")
)
