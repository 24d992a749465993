// Package sampleconv prepares PCM samples for the sound engine:
// it resamples them and encodes the result with a loop-aware layout.
package sampleconv

import (
	"math"

	"github.com/pkg/errors"

	"github.com/quasilyte/itspc/brr"
)

const (
	MinRatio = 0.10
	MaxRatio = 4.00

	// blockSamples is the encoding granularity.
	blockSamples = brr.SamplesPerBlock
)

// Codec encodes and decodes the engine sample format.
// brr.Codec is the default implementation.
type Codec interface {
	EncodePCM16(pcm []int16, opts brr.EncodeOptions) (brr.Encoded, error)
	DecodeToPCM16(data []byte) ([]int16, error)
}

// ClampRatio limits the resample ratio to [MinRatio, MaxRatio].
// Non-positive and NaN ratios become 1.
func ClampRatio(r float64) float64 {
	if !(r > 0) {
		return 1
	}
	return math.Max(MinRatio, math.Min(MaxRatio, r))
}

// Source is a mono 16-bit sample with an optional forward loop.
type Source struct {
	PCM       []int16
	Loop      bool
	LoopBegin int
	LoopEnd   int
}

func (s *Source) hasLoop() bool {
	return s.Loop && s.LoopBegin >= 0 && s.LoopEnd > s.LoopBegin && s.LoopEnd <= len(s.PCM)
}

// LoopPlan describes the resampled sample layout.
//
// Padding silent samples are prepended so the loop starts at a block boundary;
// the loop length is a multiple of the block size.
type LoopPlan struct {
	// Ratio is the effective output/input ratio.
	// For looped samples it's adjusted to make the loop length block aligned,
	// it always stays in [MinRatio, MaxRatio].
	Ratio float64

	// Unroll is the number of source loop repetitions inside the output loop.
	// It's greater than 1 when the source loop is too short to fit a block.
	Unroll int

	Padding    int
	OutputLen  int // Padding included
	LoopStart  int // Padding included
	LoopLength int
	Looped     bool
}

// PlanLoop computes the output layout for the given resample ratio.
func PlanLoop(src *Source, ratio float64) LoopPlan {
	ratio = ClampRatio(ratio)
	if !src.hasLoop() {
		n := int(math.Round(float64(len(src.PCM)) * ratio))
		if n < 1 {
			n = 1
		}
		return LoopPlan{Ratio: ratio, Unroll: 1, OutputLen: n}
	}

	loopLen := src.LoopEnd - src.LoopBegin
	unroll := 1
	if float64(loopLen)*MaxRatio < blockSamples {
		// Even the max ratio can't stretch the loop to a single block.
		// The output loop holds several source loop periods instead.
		unroll = int(math.Ceil(blockSamples / (float64(loopLen) * MaxRatio)))
	}
	plannedLen := float64(loopLen * unroll)

	minBlocks := int(math.Ceil(plannedLen*MinRatio/blockSamples - 1e-9))
	maxBlocks := int(math.Floor(plannedLen*MaxRatio/blockSamples + 1e-9))
	if minBlocks < 1 {
		minBlocks = 1
	}
	blocks := int(math.Round(plannedLen * ratio / blockSamples))
	blocks = max(minBlocks, min(maxBlocks, blocks))

	outLoopLen := blocks * blockSamples
	effective := float64(outLoopLen) / plannedLen

	start := int(math.Round(float64(src.LoopBegin) * effective))
	padding := (blockSamples - start%blockSamples) % blockSamples
	return LoopPlan{
		Ratio:      effective,
		Unroll:     unroll,
		Padding:    padding,
		OutputLen:  padding + start + outLoopLen,
		LoopStart:  padding + start,
		LoopLength: outLoopLen,
		Looped:     true,
	}
}

// EncodedSize returns the codec output size of the plan.
func (p LoopPlan) EncodedSize() int {
	return brr.EncodedSize(p.OutputLen)
}

type Options struct {
	Ratio         float64
	HighQuality   bool
	EnhanceTreble bool
}

type Result struct {
	Data       []byte
	LoopOffset int
	Plan       LoopPlan
}

// Convert resamples the source according to its loop plan and encodes it.
func Convert(src *Source, opts Options, codec Codec) (*Result, error) {
	if len(src.PCM) == 0 {
		return nil, errors.New("empty sample")
	}
	plan := PlanLoop(src, opts.Ratio)

	body := plan.OutputLen - plan.Padding
	var resampled []int16
	if opts.HighQuality {
		resampled = resampleLanczos(src, body, plan.Ratio)
	} else {
		resampled = resampleLinear(src, body, plan.Ratio)
	}
	pcm := make([]int16, plan.Padding, plan.OutputLen)
	pcm = append(pcm, resampled...)

	encodeOpts := brr.EncodeOptions{
		Loop:          plan.Looped,
		LoopStart:     plan.LoopStart,
		EnhanceTreble: opts.EnhanceTreble,
	}
	encoded, err := codec.EncodePCM16(pcm, encodeOpts)
	if err != nil {
		return nil, errors.Wrap(err, "encode")
	}
	return &Result{Data: encoded.Data, LoopOffset: encoded.LoopOffset, Plan: plan}, nil
}
