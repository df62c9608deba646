package fontclass

import (
	"fmt"
	"math"
)

// DegeneratePolicy decides the scores of a batch whose values are all equal.
type DegeneratePolicy string

const (
	// PolicyMidpoint gives every font the middle of the target range (5 for 1..10).
	PolicyMidpoint DegeneratePolicy = "midpoint"
	// PolicyClampAbsolute floors the shared raw value and clamps it into the
	// target range. Suitable for values already on a 1..10-like scale, such as
	// italic angles in degrees.
	PolicyClampAbsolute DegeneratePolicy = "clamp"
)

const (
	DefaultTargetMin = 1
	DefaultTargetMax = 10
)

// NormalizeOpts configures Normalize. Zero Min and Max mean 1..10.
type NormalizeOpts struct {
	Min, Max int
	Policy   DegeneratePolicy // default: PolicyMidpoint
}

// Normalize maps a batch of raw values onto the integer range [Min, Max]:
//
//	score = Min + floor((Max-Min) * (v-min)/(max-min))
//
// so the smallest value always scores Min, the largest scores Max, and scores
// never invert the raw ordering. Batches with min == max are resolved by
// opts.Policy. An empty batch returns ErrEmptyBatch.
func Normalize(raw map[string]float64, opts NormalizeOpts) (map[string]int, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyBatch
	}
	if opts.Min == 0 && opts.Max == 0 {
		opts.Min, opts.Max = DefaultTargetMin, DefaultTargetMax
	}
	if opts.Min >= opts.Max {
		return nil, fmt.Errorf("fontclass: invalid target range [%d, %d]", opts.Min, opts.Max)
	}
	if opts.Policy == "" {
		opts.Policy = PolicyMidpoint
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for key, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("fontclass: non-finite value %v for %s", v, key)
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}

	out := make(map[string]int, len(raw))
	if lo == hi {
		var score int
		switch opts.Policy {
		case PolicyClampAbsolute:
			score = int(math.Floor(math.Min(math.Max(lo, float64(opts.Min)), float64(opts.Max))))
		case PolicyMidpoint:
			score = opts.Min + (opts.Max-opts.Min)/2
		default:
			return nil, fmt.Errorf("fontclass: unknown degenerate policy %q", opts.Policy)
		}
		for key := range raw {
			out[key] = score
		}
		return out, nil
	}

	span := float64(opts.Max - opts.Min)
	scale := 1.0
	valueRange := hi - lo
	if math.IsInf(valueRange, 0) {
		// Halved operands cannot overflow.
		scale = 0.5
		valueRange = hi*scale - lo*scale
	}
	for key, v := range raw {
		score := opts.Min + int(math.Floor(span*((v*scale-lo*scale)/valueRange)))
		out[key] = min(max(score, opts.Min), opts.Max)
	}
	return out, nil
}
