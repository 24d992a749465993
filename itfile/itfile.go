package itfile

import (
	"fmt"
	"io"
)

// Module is a parsed IT file contents.
// This is a raw module format that is not optimized for anything.
type Module struct {
	Name string

	// Tracker versions as stored in the header (Cwt/v and Cmwt).
	CreatedWith    uint16
	CompatibleWith uint16
	Flags          HeaderFlags
	GlobalVolume   int // 0-128
	MixVolume      int
	InitialSpeed   int // Ticks per row
	InitialTempo   int // BPM
	PanSeparation  int
	ChannelPan     [NumChannels]uint8
	ChannelVolume  [NumChannels]uint8
	Orders         []uint8
	Instruments    []Instrument
	Samples        []Sample
	Patterns       []Pattern

	// Warnings lists per-asset problems that were recovered from.
	Warnings []string
}

const (
	// NumChannels is the fixed width of an IT pattern grid.
	NumChannels = 64

	// OrderSkip is a "+++" separator in the order list.
	OrderSkip = 254
	// OrderEnd is a "---" terminator in the order list.
	OrderEnd = 255
)

type HeaderFlags uint16

func (f HeaderFlags) Stereo() bool { return f&(1<<0) != 0 }

func (f HeaderFlags) UseInstruments() bool { return f&(1<<2) != 0 }

func (f HeaderFlags) LinearSlides() bool { return f&(1<<3) != 0 }

func (f HeaderFlags) OldEffects() bool { return f&(1<<4) != 0 }

// Instrument is an IT instrument header ("IMPI").
type Instrument struct {
	Name string

	// SampleIndex is a 1-based sample number played at middle C.
	// Zero means "no sample".
	SampleIndex int

	FadeOut      int
	GlobalVolume int // 0-128
	DefaultPan   int // -1 if not used

	// VolumeEnvelope is nil when the envelope is disabled.
	VolumeEnvelope []EnvelopeNode
	SustainLoop    bool

	// Placeholder is set for instruments synthesized from a zero header offset.
	Placeholder bool
}

type EnvelopeNode struct {
	Level int // 0-64
	Tick  int
}

// KeyOffReleases reports whether a note-off makes this instrument fall silent.
// Without a volume envelope a note-off keeps the note ringing.
func (inst *Instrument) KeyOffReleases() bool {
	if inst == nil || inst.VolumeEnvelope == nil {
		return false
	}
	return inst.SustainLoop || inst.FadeOut > 0
}

// Sample is an IT sample header ("IMPS") and its decoded PCM data.
type Sample struct {
	Name string

	Length       int
	LoopBegin    int
	LoopEnd      int
	C5Speed      int
	Volume       int // 0-64
	GlobalVolume int // 0-64
	Flags        SampleFlags
	Convert      uint8

	// PCM is always mono 16-bit signed regardless of the source format.
	PCM []int16

	Placeholder bool
}

type SampleFlags uint8

const (
	SampleHasData SampleFlags = 1 << iota
	Sample16Bit
	SampleStereo
	SampleCompressed
	SampleLoop
	SampleSustainLoop
	SamplePingPong
	SamplePingPongSustain
)

func (f SampleFlags) Contains(v SampleFlags) bool {
	return f&v != 0
}

// HasLoop reports whether the sample has a usable forward loop.
func (s *Sample) HasLoop() bool {
	return s.Flags.Contains(SampleLoop) && s.LoopEnd > s.LoopBegin && s.LoopEnd <= len(s.PCM)
}

func (s *Sample) Signed() bool { return s.Convert&(1<<0) != 0 }

// IT215 reports whether the compressed data uses the double delta scheme.
func (s *Sample) IT215() bool { return s.Convert&(1<<2) != 0 }

type Pattern struct {
	// Rows has zero length for patterns with a zero offset.
	Rows []Row
}

type Row [NumChannels]Cell

type Cell struct {
	Mask       CellMask
	Note       uint8
	Instrument uint8
	Volume     uint8
	Command    uint8
	Value      uint8
}

type CellMask uint8

const (
	CellHasNote CellMask = 1 << iota
	CellHasInstrument
	CellHasVolume
	CellHasCommand
)

func (m CellMask) Contains(v CellMask) bool {
	return m&v != 0
}

// IsEmpty reports whether a cell carries no data at all.
func (c Cell) IsEmpty() bool { return c.Mask == 0 }

const (
	// Note values 0-119 are C-0..B-9.
	MaxNote  = 119
	NoteOff  = 255
	NoteCut  = 254
	minFade  = 120 // 120-253 are "note fade", treated like note-off
	noteFade = 253
)

// IsNoteOff reports whether n is a note-off or a note fade.
func IsNoteOff(n uint8) bool {
	return n == NoteOff || (n >= minFade && n <= noteFade)
}

// Parse reads IT file data and decodes it into a module.
//
// A non-nil error is usually a *ParseError object.
func Parse(r io.Reader) (*Module, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	return NewParser(ParserConfig{}).ParseFromBytes(data)
}
