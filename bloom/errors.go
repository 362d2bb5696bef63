package bloom

import "errors"

// Sentinel errors returned by the bloom package, matching the error kinds
// a caller also sees from the underlying bitmap package.
var (
	// ErrInvalidArgument indicates a bad k, an undersized bitmap (too small
	// to hold the trailing header), a bad probability, or incompatible
	// filters passed to Union/Intersect.
	ErrInvalidArgument = errors.New("bloom: invalid argument")

	// ErrIO wraps a failed flush or close on the underlying bitmap.
	ErrIO = errors.New("bloom: io error")
)
