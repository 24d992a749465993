package brr

import (
	"math"
	"testing"
)

func sine(n int, period float64, amplitude float64) []int16 {
	pcm := make([]int16, n)
	for i := range pcm {
		pcm[i] = int16(amplitude * math.Sin(2*math.Pi*float64(i)/period))
	}
	return pcm
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	pcm := sine(160, 32, 12000)
	enc, err := Encode(pcm, EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(enc.Data) != EncodedSize(len(pcm)) {
		t.Fatalf("size: have %d, want %d", len(enc.Data), EncodedSize(len(pcm)))
	}
	decoded, err := Decode(enc.Data)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != len(pcm) {
		t.Fatalf("decoded %d samples, want %d", len(decoded), len(pcm))
	}
	// The first block is limited to filter 0, so it's less precise.
	for i := range pcm {
		limit := 600.0
		if i < SamplesPerBlock {
			limit = 2100
		}
		if diff := math.Abs(float64(pcm[i]) - float64(decoded[i])); diff > limit {
			t.Fatalf("sample %d: have %d, want %d", i, decoded[i], pcm[i])
		}
	}
}

func TestEncodeFlags(t *testing.T) {
	pcm := sine(64, 16, 8000)
	enc, err := Encode(pcm, EncodeOptions{Loop: true, LoopStart: 32})
	if err != nil {
		t.Fatal(err)
	}
	if enc.LoopOffset != 2*BlockSize {
		t.Fatalf("loop offset: have %d", enc.LoopOffset)
	}
	for b := 0; b < 4; b++ {
		header := enc.Data[b*BlockSize]
		filter := (header >> 2) & 3
		if (b == 0 || b == 2) && filter != 0 {
			t.Errorf("block %d: expected filter 0, got %d", b, filter)
		}
		last := b == 3
		if (header&flagEnd != 0) != last || (header&flagLoop != 0) != last {
			t.Errorf("block %d: unexpected flags %02x", b, header&3)
		}
	}

	enc, err = Encode(pcm[:20], EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(enc.Data) != 2*BlockSize || enc.Data[BlockSize]&flagLoop != 0 {
		t.Fatalf("one-shot sample: % x", enc.Data)
	}
	if IsLooped(enc.Data) {
		t.Fatalf("one-shot sample is reported as looped")
	}
	looped, err := Encode(pcm, EncodeOptions{Loop: true})
	if err != nil {
		t.Fatal(err)
	}
	if !IsLooped(looped.Data) {
		t.Fatalf("looped sample is reported as one-shot")
	}
}

func TestEncodeErrors(t *testing.T) {
	pcm := make([]int16, 48)
	tests := []EncodeOptions{
		{Loop: true, LoopStart: 8},
		{Loop: true, LoopStart: 48},
		{Loop: true, LoopStart: -16},
	}
	for _, opts := range tests {
		if _, err := Encode(pcm, opts); err == nil {
			t.Errorf("%+v: expected an error", opts)
		}
	}
	if _, err := Encode(pcm[:40], EncodeOptions{Loop: true}); err == nil {
		t.Errorf("unaligned looped length: expected an error")
	}
	if _, err := Decode(make([]byte, 10)); err == nil {
		t.Errorf("decode: expected a length error")
	}
}

func TestSilence(t *testing.T) {
	enc, err := Encode(make([]int16, 16), EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range enc.Data[1:] {
		if b != 0 {
			t.Fatalf("silence must encode to zero nibbles: % x", enc.Data)
		}
	}
	empty, err := Encode(nil, EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(empty.Data) != BlockSize {
		t.Fatalf("an empty sample still needs a terminating block")
	}
}

func TestTrebleBoost(t *testing.T) {
	flat := make([]int16, 32)
	for i := range flat {
		flat[i] = 1000
	}
	boosted := trebleBoost(flat)
	// The filter has a unity DC gain.
	for i, v := range boosted {
		if v < 995 || v > 1005 {
			t.Fatalf("sample %d: DC level changed to %d", i, v)
		}
	}

	// High frequencies are amplified.
	alternating := make([]int16, 32)
	for i := range alternating {
		alternating[i] = 1000
		if i%2 == 1 {
			alternating[i] = -1000
		}
	}
	boosted = trebleBoost(alternating)
	if boosted[16] <= 1000 {
		t.Fatalf("expected a treble boost, got %d", boosted[16])
	}

	// Treble enhancement still produces valid blocks.
	enc, err := Encode(sine(64, 8, 20000), EncodeOptions{EnhanceTreble: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := (Codec{}).DecodeToPCM16(enc.Data); err != nil {
		t.Fatal(err)
	}
}
