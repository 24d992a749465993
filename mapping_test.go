package itspc

import (
	"testing"
)

func TestVolumeMapping(t *testing.T) {
	tests := []struct {
		v, chanVol, sampleGV, instGV int
		want                         uint8
	}{
		{64, 64, 64, 128, 255},
		{0, 64, 64, 128, 0},
		{32, 64, 64, 128, 180},
		{64, 64, 64, 64, 180},
		{59, 64, 64, 128, 245},
		{100, 100, 100, 200, 255},
		{64, 0, 64, 128, 0},
	}
	for _, test := range tests {
		have := voiceVolume(test.v, test.chanVol, test.sampleGV, test.instGV)
		if have != test.want {
			t.Errorf("voiceVolume(%d, %d, %d, %d): have %d, want %d",
				test.v, test.chanVol, test.sampleGV, test.instGV, have, test.want)
		}
	}

	for g, want := range map[int]uint8{128: 255, 32: 128, 0: 0, 200: 255} {
		if have := globalVolume(g); have != want {
			t.Errorf("globalVolume(%d): have %d, want %d", g, have, want)
		}
	}
}

func TestTempoMapping(t *testing.T) {
	for bpm, want := range map[int]uint8{125: 26, 100: 20, 150: 31, 10: 7, 300: 52} {
		if have := engineTempo(bpm); have != want {
			t.Errorf("engineTempo(%d): have %d, want %d", bpm, have, want)
		}
	}
}

func TestPanMapping(t *testing.T) {
	for pan, want := range map[int]uint8{0: 20, 32: 10, 64: 0, 44: 6, -5: 20} {
		if have := enginePan(pan); have != want {
			t.Errorf("enginePan(%d): have %d, want %d", pan, have, want)
		}
	}
}

func TestNoteMapping(t *testing.T) {
	tests := []struct {
		note    uint8
		want    uint8
		shifted bool
	}{
		{60, 36, false},
		{24, 0, false},
		{95, 71, false},
		{0, 0, true},
		{12, 0, true},
		{119, 71, true},
		{100, 64, true},
	}
	for _, test := range tests {
		have, shifted := engineNote(test.note)
		if have != test.want || shifted != test.shifted {
			t.Errorf("engineNote(%d): have %d/%v, want %d/%v", test.note, have, shifted, test.want, test.shifted)
		}
	}
}

func TestInstrumentTuning(t *testing.T) {
	tests := []struct {
		c5    int
		ratio float64
		want  uint16
	}{
		{32000, 1, 0x100},
		{8363, 1, 67},
		{8363, 0.5, 33},
		{16000, 2, 0x100},
		{0, 1, 1},
		{10000000, 4, 0xFFFF},
	}
	for _, test := range tests {
		if have := instrumentTuning(test.c5, test.ratio); have != test.want {
			t.Errorf("instrumentTuning(%d, %.2f): have %d, want %d", test.c5, test.ratio, have, test.want)
		}
	}
}

func TestInstrumentEnvelope(t *testing.T) {
	tests := []struct {
		name         string
		sustainLevel int
		hasEnvelope  bool
		sustainLoop  bool
		ticks        int
		fadeOut      int
		adsr2        uint8
	}{
		{"no envelope", 0, false, false, 0, 0, 0xE0},
		{"sustained", 64, true, true, 10, 0, 0xE0},
		{"fade out", 32, true, false, 10, 256, 0x68},
		{"decay to silence", 0, true, false, 100, 0, 0x0A},
	}
	for _, test := range tests {
		adsr1, adsr2 := instrumentEnvelope(test.sustainLevel, test.hasEnvelope, test.sustainLoop, test.ticks, test.fadeOut)
		if adsr1 != 0x8F || adsr2 != test.adsr2 {
			t.Errorf("%s: have %02x %02x, want 8f %02x", test.name, adsr1, adsr2, test.adsr2)
		}
	}
}
