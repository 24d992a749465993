package itspc

import (
	"github.com/quasilyte/itspc/sampleconv"
)

// Options configures the module import.
//
// A zero value is a valid config that imports the module with
// the default engine settings.
type Options struct {
	// Ratio is an output/input resample ratio used for all samples.
	// Smaller values save ARAM at the cost of the sound quality.
	//
	// The value is clamped to [0.10, 4.00].
	// A zero value means "no resampling" (a ratio of 1).
	Ratio float64

	// SampleRatios overrides the Ratio for individual samples.
	// The keys are 1-based IT sample numbers, as shown by the trackers.
	SampleRatios map[int]float64

	// HighQuality selects a windowed sinc resampler instead of
	// the linear interpolation.
	HighQuality bool

	// EnhanceTreble applies a pre-emphasis filter before the encoding
	// to compensate the hardware interpolation muffling.
	EnhanceTreble bool

	// DeleteInstruments lists the target project instrument IDs
	// that are removed before the import.
	DeleteInstruments []int

	// DeleteSamples lists the target project sample IDs
	// that are removed before the import (after the instruments).
	DeleteSamples []int

	// EchoVolume is used by the echo enabling commands.
	// A zero value means "use the engine default".
	EchoVolume uint8
}

func (o *Options) sampleRatio(sampleNumber int) float64 {
	if r, ok := o.SampleRatios[sampleNumber]; ok {
		return sampleconv.ClampRatio(r)
	}
	return sampleconv.ClampRatio(o.Ratio)
}
