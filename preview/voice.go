package preview

import (
	"encoding/binary"
	"math"
)

const bytesPerFrame = 2 * 2

type voice struct {
	id int

	sample *decodedSample
	pos    float64
	step   float64
	volume [2]float64
}

func (v *voice) Reset() {
	id := v.id
	*v = voice{id: id}
}

func (v *voice) IsActive() bool { return v.sample != nil }

// NextSample returns the linearly interpolated sample value
// and advances the sample position.
func (v *voice) NextSample() float64 {
	if v.sample == nil {
		return 0
	}
	pcm := v.sample.pcm
	i := int(v.pos)
	if i >= len(pcm) {
		if v.sample.loopStart < 0 {
			v.sample = nil
			return 0
		}
		loopLen := float64(len(pcm) - v.sample.loopStart)
		v.pos = float64(v.sample.loopStart) + math.Mod(v.pos-float64(len(pcm)), loopLen)
		i = int(v.pos)
	}

	j := i + 1
	if j >= len(pcm) {
		j = i
		if v.sample.loopStart >= 0 {
			j = v.sample.loopStart
		}
	}
	frac := v.pos - float64(i)
	value := float64(pcm[i])*(1-frac) + float64(pcm[j])*frac

	v.pos += v.step
	return value
}

func clampPCM(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

func putPCM(b []byte, left, right int16) {
	binary.LittleEndian.PutUint16(b[0:], uint16(left))
	binary.LittleEndian.PutUint16(b[2:], uint16(right))
}
