package compiler

import (
	"fmt"
	"math"
)

// Default rates used when neither the command line nor the orchestra say
// otherwise.
const (
	DefaultSr       = 44100
	DefaultKr       = 4410
	DefaultKsmps    = 10
	DefaultNchnls   = 1
	DefaultZeroDBFS = 32768

	// rateTolerance is the relative error allowed between sr and kr*ksmps.
	rateTolerance = 1e-12
)

// RateSpec holds partially known rates; zero means unknown.
type RateSpec struct {
	Sr    float64
	Kr    float64
	Ksmps float64
}

func pick(override, orch float64) float64 {
	if override > 0 {
		return override
	}
	return orch
}

// relEqual compares two rates by relative error.
func relEqual(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= rateTolerance*math.Max(math.Abs(a), math.Abs(b))
}

// ResolveRates settles sr, kr and ksmps. Each value comes from the override
// if set, else from the orchestra; a missing value is derived from the other
// two, and values that cannot be derived fall back to the defaults. The result
// must satisfy sr == kr*ksmps with an integral ksmps.
func ResolveRates(override, orch RateSpec) (Rates, error) {
	sr := pick(override.Sr, orch.Sr)
	kr := pick(override.Kr, orch.Kr)
	ksmps := pick(override.Ksmps, orch.Ksmps)

	switch {
	case sr > 0 && kr > 0 && ksmps > 0:
	case sr > 0 && kr > 0:
		ksmps = sr / kr
	case sr > 0 && ksmps > 0:
		kr = sr / ksmps
	case kr > 0 && ksmps > 0:
		sr = kr * ksmps
	case sr > 0:
		ksmps = DefaultKsmps
		kr = sr / ksmps
	case kr > 0:
		ksmps = DefaultKsmps
		sr = kr * ksmps
	case ksmps > 0:
		sr = DefaultSr
		kr = sr / ksmps
	default:
		sr, kr, ksmps = DefaultSr, DefaultKr, DefaultKsmps
	}

	r := Rates{Sr: sr, Kr: kr, Ksmps: int(math.Round(ksmps))}
	if sr <= 0 || kr <= 0 || ksmps < 1 {
		return r, fmt.Errorf("%w: sr %g, kr %g, ksmps %g must be positive", ErrRateMismatch, sr, kr, ksmps)
	}
	if !relEqual(ksmps, float64(r.Ksmps)) {
		return r, fmt.Errorf("%w: ksmps %g is not an integer (sr %g / kr %g)", ErrRateMismatch, ksmps, sr, kr)
	}
	if !relEqual(sr, kr*float64(r.Ksmps)) {
		return r, fmt.Errorf("%w: sr %g != kr %g * ksmps %d", ErrRateMismatch, sr, kr, r.Ksmps)
	}
	return r, nil
}
