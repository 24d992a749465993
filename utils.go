package itspc

type numeric interface {
	uint8 | int | float64
}

func clamp[T numeric](v, min, max T) T {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampTicks(ticks int) uint8 {
	return uint8(clamp(ticks, 1, 255))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func bitLen(x int) int {
	n := 0
	for ; x > 0; x >>= 1 {
		n++
	}
	return n
}

// ceilDiv returns a/b rounded up for positive values.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
