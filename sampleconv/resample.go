package sampleconv

import (
	"math"
)

const lanczosLobes = 8

// at returns the source sample at index i as the player would see it:
// positions past the loop end wrap into the loop, other out of range
// positions are silent.
func (s *Source) at(i int) float64 {
	if i < 0 {
		return 0
	}
	if s.hasLoop() && i >= s.LoopEnd {
		i = s.LoopBegin + (i-s.LoopBegin)%(s.LoopEnd-s.LoopBegin)
	}
	if i >= len(s.PCM) {
		return 0
	}
	return float64(s.PCM[i])
}

func resampleLinear(src *Source, n int, ratio float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		x := float64(i) / ratio
		j := int(math.Floor(x))
		frac := x - float64(j)
		out[i] = toSample(src.at(j)*(1-frac) + src.at(j+1)*frac)
	}
	return out
}

// resampleLanczos uses a windowed sinc reconstruction.
// When downsampling, the kernel is stretched to cut off
// the frequencies above the new Nyquist limit.
func resampleLanczos(src *Source, n int, ratio float64) []int16 {
	cutoff := math.Min(1, ratio)
	support := float64(lanczosLobes) / cutoff
	out := make([]int16, n)
	for i := range out {
		x := float64(i) / ratio
		from := int(math.Ceil(x - support))
		to := int(math.Floor(x + support))
		var acc, norm float64
		for j := from; j <= to; j++ {
			t := (x - float64(j)) * cutoff
			w := lanczos(t)
			if w == 0 {
				continue
			}
			acc += w * src.at(j)
			norm += w
		}
		if norm != 0 {
			acc /= norm
		}
		out[i] = toSample(acc)
	}
	return out
}

func lanczos(t float64) float64 {
	if t == 0 {
		return 1
	}
	if t <= -lanczosLobes || t >= lanczosLobes {
		return 0
	}
	return sinc(t) * sinc(t/lanczosLobes)
}

func sinc(x float64) float64 {
	px := math.Pi * x
	return math.Sin(px) / px
}

func toSample(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
