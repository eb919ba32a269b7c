package utils

import "math"

// IsClose reports whether x and y are approximately equal: within absTol
// absolutely, or within relTol relative to either operand. Both
// tolerances must be non-negative; violating that is a contract error
// and panics.
//
// Non-finite values compare by direct identity, which deliberately makes
// two NaNs equal. That diverges from IEEE comparison semantics and is
// kept as observed reference behavior.
func IsClose(x, y, relTol, absTol float64) bool {
	if relTol < 0 || absTol < 0 {
		panic("utils: IsClose called with negative tolerance")
	}

	if isFinite(x) && isFinite(y) {
		if x == y {
			return true
		}
		d := math.Abs(x - y)
		return d <= absTol || d <= relTol*math.Abs(x) || d <= relTol*math.Abs(y)
	}

	if math.IsNaN(x) || math.IsNaN(y) {
		return math.IsNaN(x) && math.IsNaN(y)
	}
	return x == y
}

func isFinite(x float64) bool {
	return !math.IsInf(x, 0) && !math.IsNaN(x)
}
