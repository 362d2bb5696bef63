package sbf

import "errors"

// Sentinel errors returned by the sbf package.
var (
	// ErrInvalidArgument indicates a non-positive initial capacity, a
	// probability outside (0, 1), or a scale_prob outside (0, 1).
	ErrInvalidArgument = errors.New("sbf: invalid argument")

	// ErrMaxLayers indicates growth was attempted past MaxLayers, a safety
	// limit against unbounded layer chains on corrupted or adversarial
	// input.
	ErrMaxLayers = errors.New("sbf: max layers reached")
)
