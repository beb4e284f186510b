package check

import "math"

// Epsilon layers three float tolerances. A comparison passes if any
// layer accepts it: absolute difference first, then difference relative
// to the larger magnitude, then distance in representable values.
type Epsilon struct {
	Abs float64 // absolute tolerance
	Rel float64 // relative tolerance, scaled by the larger magnitude
	ULP uint64  // maximum steps between representable values
}

// DefaultEpsilon accepts accumulated rounding error from short
// computation chains without hiding real numeric differences.
var DefaultEpsilon = Epsilon{Abs: 1e-12, Rel: 1e-9, ULP: 4}

// AlmostEqual reports whether a and b are equal within eps. NaN never
// compares equal, not even to itself. Infinities compare equal only to
// the same infinity.
func AlmostEqual(a, b float64, eps Epsilon) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	if a == b {
		return true
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return false
	}
	diff := math.Abs(a - b)
	if diff <= eps.Abs {
		return true
	}
	largest := math.Max(math.Abs(a), math.Abs(b))
	if diff <= eps.Rel*largest {
		return true
	}
	return ULPDistance(a, b) <= eps.ULP
}

// ULPDistance returns how many representable float64 values lie between
// a and b. Adjacent floats are one apart; a value is zero from itself,
// and positive and negative zero are zero apart.
func ULPDistance(a, b float64) uint64 {
	ua := orderedBits(a)
	ub := orderedBits(b)
	if ua > ub {
		return ua - ub
	}
	return ub - ua
}

// orderedBits maps a float's bit pattern onto an unsigned scale that is
// monotone in the float's value, so adjacent representable floats land
// one apart regardless of sign.
func orderedBits(f float64) uint64 {
	b := math.Float64bits(f)
	if b>>63 != 0 {
		return -b
	}
	return b + 1<<63
}
