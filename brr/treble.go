package brr

// trebleBoostFilter is a symmetric FIR that approximately inverts
// the DSP 4-point gaussian interpolation.
// trebleBoostFilter[0] is the center tap.
var trebleBoostFilter = [...]float64{
	0.912962,
	-0.16199,
	-0.0153283,
	0.0426783,
	-0.0372004,
	0.023436,
	-0.0105816,
	0.00250474,
}

// trebleBoostGain normalizes the filter to a unity DC gain.
var trebleBoostGain = func() float64 {
	sum := trebleBoostFilter[0]
	for _, c := range trebleBoostFilter[1:] {
		sum += 2 * c
	}
	return sum
}()

// trebleBoost returns a filtered copy of pcm.
// The samples outside of the input are repeated edge values.
func trebleBoost(pcm []int16) []int16 {
	out := make([]int16, len(pcm))
	last := len(pcm) - 1
	at := func(i int) float64 {
		if i < 0 {
			i = 0
		}
		if i > last {
			i = last
		}
		return float64(pcm[i])
	}
	for i := range pcm {
		acc := trebleBoostFilter[0] * at(i)
		for k := 1; k < len(trebleBoostFilter); k++ {
			acc += trebleBoostFilter[k] * (at(i-k) + at(i+k))
		}
		out[i] = clampSample(acc / trebleBoostGain)
	}
	return out
}

func clampSample(v float64) int16 {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	case v >= 0:
		return int16(v + 0.5)
	default:
		return int16(v - 0.5)
	}
}
