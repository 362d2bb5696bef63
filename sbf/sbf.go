// Package sbf implements a Scalable Bloom Filter: an ordered, growing
// sequence of bloom.Filter layers that together enforce a bounded
// aggregate false-positive probability while accepting unbounded inserts.
//
// Only the newest layer is ever written to. When it saturates, a new
// layer is appended with scale_size times the capacity and scale_prob
// times the target false-positive probability of the previous one.
// Membership checks every layer, newest first, since recently inserted
// keys are most likely to be there.
//
// Per-Layer Probability Budget
// =============================
//
// Target the per-layer false-positive probability pᵢ = p₀ · r^i for some
// 0 < r < 1 (r is scale_prob). The probability that *some* layer falsely
// matches is bounded above by the geometric sum Σ pᵢ = p₀ / (1 - r). To
// keep that sum at or below the caller's requested prob for any number of
// layers, p₀ must be prob · (1 - r), not prob itself — using pᵢ = prob ·
// r^i directly yields
// Σ pᵢ = prob / (1 - r), i.e. up to 1/(1-r) times the intended rate. Every
// layer's target probability is therefore the previous layer's target
// multiplied by scale_prob, seeded from prob*(1-scale_prob) at layer 0.
package sbf

import (
	"errors"
	"fmt"

	"bloomdisk.dev/bitmap"
	"bloomdisk.dev/bloom"
)

const (
	// DefaultScaleSize is the geometric growth factor applied to capacity
	// at each new layer.
	DefaultScaleSize = 4

	// DefaultScaleProb is the per-layer tightening factor applied to the
	// target false-positive probability at each new layer.
	DefaultScaleProb = 0.9

	// MaxLayers bounds the layer chain as a safety net against runaway
	// growth on corrupted state or adversarial input; with the default
	// scale size capacity quadruples every layer, so even a far smaller
	// bound than this would cover any realistic workload.
	MaxLayers = 1024
)

// BitmapFactory produces a path for the next file-backed layer, or ""
// for an anonymous layer. It is deliberately a plain function type rather
// than an interface with hidden global state: callers wanting persistent
// layers close over whatever directory/counter they need (see
// DefaultFileFactory for a ready-made one).
type BitmapFactory func() (string, error)

// layer pairs a bloom.Filter with the capacity and target probability it
// was sized for. Capacity and probability are not persisted in any header:
// they are the values addLayer was called with and live only in memory.
// Only count and k are stored on disk; this package has no code path that
// reopens an existing chain of layers.
type layer struct {
	filter *bloom.Filter
	cap    uint64
	prob   float64
}

// Filter is a Scalable Bloom Filter: an ordered, growing chain of
// bloom.Filter layers.
type Filter struct {
	initialCapacity uint64
	prob            float64
	scaleSize       uint64
	scaleProb       float64
	factory         BitmapFactory
	layers          []layer
}

// New constructs a ScalingBloomFilter and immediately builds its first
// layer, sized for initialCapacity at the per-layer probability budget
// derived from prob (see package doc). scaleSize and scaleProb use their
// documented defaults when zero.
func New(initialCapacity uint64, prob float64, scaleSize uint64, scaleProb float64, factory BitmapFactory) (*Filter, error) {
	if initialCapacity == 0 {
		return nil, fmt.Errorf("sbf: initial_capacity must be positive: %w", ErrInvalidArgument)
	}
	if prob <= 0 || prob >= 1 {
		return nil, fmt.Errorf("sbf: prob must be in (0, 1), got %v: %w", prob, ErrInvalidArgument)
	}
	if scaleSize == 0 {
		scaleSize = DefaultScaleSize
	}
	if scaleProb == 0 {
		scaleProb = DefaultScaleProb
	}
	if scaleProb <= 0 || scaleProb >= 1 {
		return nil, fmt.Errorf("sbf: scale_prob must be in (0, 1), got %v: %w", scaleProb, ErrInvalidArgument)
	}

	sf := &Filter{
		initialCapacity: initialCapacity,
		prob:            prob,
		scaleSize:       scaleSize,
		scaleProb:       scaleProb,
		factory:         factory,
	}

	p0 := prob * (1 - scaleProb)
	if err := sf.addLayer(initialCapacity, p0); err != nil {
		return nil, err
	}
	return sf, nil
}

// addLayer materializes and appends a new layer sized for cap at target
// probability prob.
func (sf *Filter) addLayer(cap uint64, prob float64) error {
	totalBytes, k := bloom.ParamsForCapacity(cap, prob)

	var path string
	if sf.factory != nil {
		p, err := sf.factory()
		if err != nil {
			return fmt.Errorf("sbf: bitmap factory: %w", err)
		}
		path = p
	}

	bm, err := bitmap.New(int64(totalBytes), path, false)
	if err != nil {
		return err
	}

	f, err := bloom.New(bm, k)
	if err != nil {
		_ = bm.Close(false)
		return err
	}

	sf.layers = append(sf.layers, layer{filter: f, cap: cap, prob: prob})
	return nil
}

// Add inserts key into the newest layer, always with check_first=true (so
// a key already present in the newest layer is never recounted). This
// does not consult older layers: a key present only in an older layer
// will be re-added to the newest one, which the scaling design accepts
// as the cost of never having to touch read-only layers. After a
// successful add, if the newest layer has reached its capacity, a new
// layer is appended before Add returns.
func (sf *Filter) Add(key []byte) (bool, error) {
	idx := len(sf.layers) - 1
	newest := sf.layers[idx]

	added := newest.filter.Add(key, true)
	if !added {
		return false, nil
	}

	if newest.filter.Len() >= newest.cap {
		if len(sf.layers) >= MaxLayers {
			return true, ErrMaxLayers
		}
		if err := sf.addLayer(newest.cap*sf.scaleSize, newest.prob*sf.scaleProb); err != nil {
			return true, err
		}
	}

	return true, nil
}

// Contains reports whether any layer contains key, probing from newest to
// oldest.
func (sf *Filter) Contains(key []byte) bool {
	for i := len(sf.layers) - 1; i >= 0; i-- {
		if sf.layers[i].filter.Contains(key) {
			return true
		}
	}
	return false
}

// Len returns the sum of every layer's count.
func (sf *Filter) Len() uint64 {
	var total uint64
	for _, l := range sf.layers {
		total += l.filter.Len()
	}
	return total
}

// TotalCapacity returns the sum of every layer's target capacity.
func (sf *Filter) TotalCapacity() uint64 {
	var total uint64
	for _, l := range sf.layers {
		total += l.cap
	}
	return total
}

// NumLayers returns how many layers currently exist.
func (sf *Filter) NumLayers() int {
	return len(sf.layers)
}

// Flush flushes every layer, joining any errors encountered.
func (sf *Filter) Flush() error {
	var errs []error
	for _, l := range sf.layers {
		if err := l.filter.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close flushes and closes every layer, joining any errors encountered.
func (sf *Filter) Close() error {
	var errs []error
	for _, l := range sf.layers {
		if err := l.filter.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
