// Package brr implements the bit rate reduction sample format of the S-DSP.
//
// A BRR block is 9 bytes: a header (shift, filter, loop and end flags)
// followed by 16 signed 4-bit residuals, high nibble first.
package brr

import (
	"github.com/pkg/errors"
)

const (
	BlockSize       = 9
	SamplesPerBlock = 16

	flagEnd  = 0x01
	flagLoop = 0x02

	maxShift   = 12
	numFilters = 4
)

type EncodeOptions struct {
	Loop bool

	// LoopStart is a sample index; it must be a multiple of SamplesPerBlock.
	LoopStart int

	// EnhanceTreble applies a pre-filter that compensates
	// the high frequency loss of the DSP gaussian interpolation.
	EnhanceTreble bool
}

type Encoded struct {
	Data []byte

	// LoopOffset is a byte offset of the loop start block inside Data.
	LoopOffset int
}

// EncodedSize returns the BRR size of numSamples samples.
func EncodedSize(numSamples int) int {
	if numSamples <= 0 {
		return BlockSize
	}
	return (numSamples + SamplesPerBlock - 1) / SamplesPerBlock * BlockSize
}

// Encode compresses 16-bit PCM samples.
//
// The input is padded with silence to the block boundary.
// The first block and the loop start block always use filter 0,
// so they can be decoded without the history.
func Encode(pcm []int16, opts EncodeOptions) (Encoded, error) {
	if opts.Loop {
		if opts.LoopStart < 0 || opts.LoopStart >= len(pcm) {
			return Encoded{}, errors.Errorf("loop start %d is out of range [0, %d)", opts.LoopStart, len(pcm))
		}
		if opts.LoopStart%SamplesPerBlock != 0 {
			return Encoded{}, errors.Errorf("loop start %d is not block aligned", opts.LoopStart)
		}
		if len(pcm)%SamplesPerBlock != 0 {
			return Encoded{}, errors.Errorf("looped sample length %d is not block aligned", len(pcm))
		}
	}

	src := pcm
	if opts.EnhanceTreble {
		src = trebleBoost(pcm)
	}
	numBlocks := (len(src) + SamplesPerBlock - 1) / SamplesPerBlock
	if numBlocks == 0 {
		numBlocks = 1
	}

	var enc encoder
	out := make([]byte, 0, numBlocks*BlockSize)
	loopBlock := opts.LoopStart / SamplesPerBlock
	for b := 0; b < numBlocks; b++ {
		var block [SamplesPerBlock]int32
		for i := range block {
			if j := b*SamplesPerBlock + i; j < len(src) {
				block[i] = int32(src[j]) >> 1
			}
		}
		forceFilter0 := b == 0 || (opts.Loop && b == loopBlock)
		var flags uint8
		if b == numBlocks-1 {
			flags |= flagEnd
			if opts.Loop {
				flags |= flagLoop
			}
		}
		out = enc.encodeBlock(out, &block, forceFilter0, flags)
	}

	result := Encoded{Data: out}
	if opts.Loop {
		result.LoopOffset = loopBlock * BlockSize
	}
	return result, nil
}

// Decode expands BRR data into 16-bit PCM samples.
// Decoding stops at the block with the end flag.
func Decode(data []byte) ([]int16, error) {
	if len(data) == 0 || len(data)%BlockSize != 0 {
		return nil, errors.Errorf("data length %d is not a multiple of %d", len(data), BlockSize)
	}
	var dec decoder
	out := make([]int16, 0, len(data)/BlockSize*SamplesPerBlock)
	for offset := 0; offset < len(data); offset += BlockSize {
		var block [SamplesPerBlock]int32
		header := data[offset]
		dec.decodeBlock(&block, data[offset:offset+BlockSize])
		for _, v := range block {
			out = append(out, int16(v<<1))
		}
		if header&flagEnd != 0 {
			break
		}
	}
	return out, nil
}

// IsLooped reports whether the final block of data has the loop flag.
func IsLooped(data []byte) bool {
	for offset := 0; offset+BlockSize <= len(data); offset += BlockSize {
		if data[offset]&flagEnd != 0 {
			return data[offset]&flagLoop != 0
		}
	}
	return false
}

// Codec is a stateless Encode/Decode pair.
type Codec struct{}

func (Codec) EncodePCM16(pcm []int16, opts EncodeOptions) (Encoded, error) {
	return Encode(pcm, opts)
}

func (Codec) DecodeToPCM16(data []byte) ([]int16, error) {
	return Decode(data)
}

// decoder keeps the two previous output samples used by the prediction filters.
// The samples are in the 15-bit DSP domain.
type decoder struct {
	p1, p2 int32
}

func (d *decoder) decodeBlock(dst *[SamplesPerBlock]int32, block []byte) {
	shift := uint(block[0] >> 4)
	filter := int(block[0]>>2) & 0x3
	for i := 0; i < SamplesPerBlock; i++ {
		b := block[1+i/2]
		nibble := int32(b >> 4)
		if i%2 == 1 {
			nibble = int32(b & 0x0F)
		}
		if nibble >= 8 {
			nibble -= 16
		}
		dst[i] = d.next(nibble, shift, filter)
	}
}

// next reconstructs a single sample from the residual nibble.
func (d *decoder) next(nibble int32, shift uint, filter int) int32 {
	var s int32
	if shift <= maxShift {
		s = (nibble << shift) >> 1
	} else {
		s = (nibble >> 3) << 11 // Invalid shifts act like 0 or -2048
	}
	s += predict(filter, d.p1, d.p2)
	s = clamp16(s)
	s = int32(int16(s<<1)) >> 1
	d.p2 = d.p1
	d.p1 = s
	return s
}

func predict(filter int, p1, p2 int32) int32 {
	switch filter {
	case 1:
		return p1 + ((-p1) >> 4)
	case 2:
		return (p1 << 1) + ((-(p1 << 1) - p1) >> 5) - p2 + (p2 >> 4)
	case 3:
		return (p1 << 1) + ((-(p1 + (p1 << 2) + (p1 << 3))) >> 6) - p2 + (((p2 << 1) + p2) >> 4)
	}
	return 0
}

type encoder struct {
	decoder
}

// encodeBlock picks the filter and shift with the lowest squared error.
func (e *encoder) encodeBlock(out []byte, block *[SamplesPerBlock]int32, forceFilter0 bool, flags uint8) []byte {
	bestErr := int64(-1)
	var best [BlockSize]byte
	var bestState decoder

	filters := numFilters
	if forceFilter0 {
		filters = 1
	}
	for filter := 0; filter < filters; filter++ {
		for shift := uint(0); shift <= maxShift; shift++ {
			candidate := e.decoder
			var encoded [BlockSize]byte
			encoded[0] = uint8(shift<<4) | uint8(filter<<2) | flags
			var total int64
			for i, target := range block {
				nibble := candidate.pickNibble(target, shift, filter)
				got := candidate.next(nibble, shift, filter)
				diff := int64(target - got)
				total += diff * diff
				if bestErr >= 0 && total >= bestErr {
					break
				}
				if i%2 == 0 {
					encoded[1+i/2] = uint8(nibble&0x0F) << 4
				} else {
					encoded[1+i/2] |= uint8(nibble & 0x0F)
				}
			}
			if bestErr < 0 || total < bestErr {
				bestErr = total
				best = encoded
				bestState = candidate
			}
		}
	}

	e.decoder = bestState
	return append(out, best[:]...)
}

// pickNibble returns the residual that reconstructs the value closest to target.
func (d *decoder) pickNibble(target int32, shift uint, filter int) int32 {
	prediction := predict(filter, d.p1, d.p2)
	diff := target - prediction
	// (nibble << shift) >> 1 ~= diff
	var nibble int32
	if shift == 0 {
		nibble = diff * 2
	} else {
		scale := int32(1) << (shift - 1)
		if diff >= 0 {
			nibble = (diff + scale/2) / scale
		} else {
			nibble = (diff - scale/2) / scale
		}
	}
	if nibble > 7 {
		nibble = 7
	}
	if nibble < -8 {
		nibble = -8
	}

	// The reconstruction wraps on overflow; check the neighbors too.
	bestNibble := nibble
	bestErr := int64(-1)
	for _, n := range [...]int32{nibble - 1, nibble, nibble + 1} {
		if n < -8 || n > 7 {
			continue
		}
		probe := *d
		got := probe.next(n, shift, filter)
		diff := int64(target - got)
		if diff < 0 {
			diff = -diff
		}
		if bestErr < 0 || diff < bestErr {
			bestErr = diff
			bestNibble = n
		}
	}
	return bestNibble
}

func clamp16(v int32) int32 {
	if v > 0x7FFF {
		return 0x7FFF
	}
	if v < -0x8000 {
		return -0x8000
	}
	return v
}
