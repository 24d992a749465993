package itspc

import (
	"math"

	"github.com/quasilyte/itspc/engine"
)

// voiceVolume maps the IT volume chain into the engine voice volume.
// v and chanVol are 0-64, sampleGV is 0-64, instGV is 0-128.
func voiceVolume(v, chanVol, sampleGV, instGV int) uint8 {
	x := float64(clamp(v, 0, 64)) / 64 *
		float64(clamp(chanVol, 0, 64)) / 64 *
		float64(clamp(sampleGV, 0, 64)) / 64 *
		float64(clamp(instGV, 0, 128)) / 128
	return uint8(math.Round(255 * math.Sqrt(x)))
}

// globalVolume maps the 0-128 IT global volume.
func globalVolume(g int) uint8 {
	return uint8(math.Round(255 * math.Sqrt(float64(clamp(g, 0, 128))/128)))
}

// engineTempo maps the BPM into the engine timer value.
func engineTempo(bpm int) uint8 {
	return uint8(math.Round(float64(clamp(bpm, minTempo, maxTempo)) * 0.2048))
}

// enginePan maps the 0 (left) - 64 (right) IT panning into the engine 0-20 range.
func enginePan(p int) uint8 {
	return uint8(math.Round(float64(64-clamp(p, 0, 64)) * 20 / 64))
}

const (
	minTempo = 32
	maxTempo = 255

	// The engine note 0 is the IT C-2.
	noteOffset = 24
)

// engineNote converts the IT note number.
// Out of range notes are moved by octaves; the second result reports that.
func engineNote(itNote uint8) (uint8, bool) {
	n := int(itNote) - noteOffset
	shifted := false
	for n < 0 {
		n += 12
		shifted = true
	}
	for n > engine.MaxNote {
		n -= 12
		shifted = true
	}
	return uint8(n), shifted
}

// instrumentTuning computes the 8.8 fixed point pitch multiplier
// for a sample played at c5 Hz and resampled with the given ratio.
func instrumentTuning(c5 int, ratio float64) uint16 {
	v := math.Round(float64(c5) * ratio / 32000 * 256)
	return uint16(clamp(int(v), 1, 0xFFFF))
}

// instrumentEnvelope approximates the IT volume envelope and fade-out
// with the hardware ADSR.
func instrumentEnvelope(sustainLevel int, hasEnvelope, sustainLoop bool, envelopeTicks, fadeOut int) (adsr1, adsr2 uint8) {
	const (
		defaultADSR1 = 0x8F
		defaultADSR2 = 0xE0
	)
	if !hasEnvelope {
		return defaultADSR1, defaultADSR2
	}
	sl := clamp((sustainLevel*8+32)/64-1, 0, 7)
	sr := 0
	switch {
	case sustainLevel == 0 && !sustainLoop:
		// The envelope fades out on its own; longer envelopes decay slower.
		sr = clamp(31-bitLen(envelopeTicks)*3, 1, 31)
	case !sustainLoop && fadeOut > 0:
		sr = clamp(fadeOut/32, 1, 31)
	}
	return defaultADSR1, uint8(sl<<5 | sr)
}
