package utils

// ClampInt bounds v into [min, max].
func ClampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// LimitOrDefault returns def when v is zero or negative, otherwise v capped at max.
func LimitOrDefault(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
