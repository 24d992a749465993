package itdb

import (
	"fmt"

	"github.com/quasilyte/itspc/itfile"
)

type Effect struct {
	Op  EffectOp
	Arg uint8

	// VolumeColumn is set for effects decoded from the volume column.
	// Some of them (like the tone portamento) use different speed semantics.
	VolumeColumn bool
}

type EffectOp int

const (
	EffectNone EffectOp = iota

	// Encoding: effect=A
	// Arg: ticks per row
	EffectSetSpeed

	// Encoding: effect=B
	// Arg: order index
	EffectPositionJump

	// Encoding: effect=C
	// Arg: row index in the next pattern
	EffectPatternBreak

	// Encoding: effect=D [or] volume column a/b/c/d
	// Arg: see DecodeVolumeSlide
	EffectVolumeSlide

	// Encoding: effect=E [or] volume column e
	// Arg: see DecodePortamento
	EffectPortamentoDown

	// Encoding: effect=F [or] volume column f
	EffectPortamentoUp

	// Encoding: effect=G [or] volume column g
	// Arg: slide speed
	EffectTonePortamento

	// Encoding: effect=H [or] volume column h (depth only)
	// Arg: rate (high nibble) and depth (low nibble)
	EffectVibrato

	// Encoding: effect=I
	EffectTremor

	// Encoding: effect=J
	// Arg: semitone offsets
	EffectArpeggio

	// Encoding: effect=K
	// Arg: volume slide, vibrato continues
	EffectVibratoVolumeSlide

	// Encoding: effect=L
	// Arg: volume slide, tone portamento continues
	EffectPortamentoVolumeSlide

	// Encoding: effect=M
	// Arg: channel volume 0-64
	EffectSetChannelVolume

	// Encoding: effect=N
	EffectChannelVolumeSlide

	// Encoding: effect=O
	EffectSampleOffset

	// Encoding: effect=P
	EffectPanSlide

	// Encoding: effect=Q
	EffectRetrigger

	// Encoding: effect=R
	// Arg: rate (high nibble) and depth (low nibble)
	EffectTremolo

	// Encoding: effect=S
	// Arg: sub-command (high nibble) and its value (low nibble)
	EffectSpecial

	// Encoding: effect=T
	// Arg: 0x00-0x0F slide down, 0x10-0x1F slide up, 0x20+ BPM
	EffectTempo

	// Encoding: effect=U
	EffectFineVibrato

	// Encoding: effect=V
	// Arg: global volume 0-128
	EffectSetGlobalVolume

	// Encoding: effect=W
	EffectGlobalVolumeSlide

	// Encoding: effect=X [or] volume column pan (scaled)
	// Arg: pan 0-255
	EffectSetPan

	// Encoding: effect=Y
	EffectPanbrello

	// Encoding: effect=Z
	// Arg: 0 disables the echo, other values enable it
	EffectEcho

	// Encoding: volume column 0-64
	// Arg: volume level
	EffectSetVolume
)

// Special effect sub-commands (high nibble of Sxy).
const (
	SpecialEchoOff      = 0x0 // S00
	SpecialPan          = 0x8
	SpecialNoteCut      = 0xC
	SpecialNoteDelay    = 0xD
	SpecialPatternDelay = 0xE
)

const firstLetter = 'A'

func ConvertEffect(c itfile.Cell) Effect {
	e := Effect{Arg: c.Value}
	if !c.Mask.Contains(itfile.CellHasCommand) || c.Command == 0 || c.Command > 26 {
		return e
	}
	e.Op = EffectOp(c.Command)
	return e
}

// Letter returns the tracker notation of the effect command.
// Effects without a letter (the volume column set) return '?'.
func (e Effect) Letter() byte {
	if e.Op >= EffectSetSpeed && e.Op <= EffectEcho {
		return byte(e.Op-EffectSetSpeed) + firstLetter
	}
	return '?'
}

func (e Effect) String() string {
	if e.Op == EffectNone {
		return "..."
	}
	return fmt.Sprintf("%c%02X", e.Letter(), e.Arg)
}

// Special splits an Sxy argument.
func (e Effect) Special() (sub, value uint8) {
	return e.Arg >> 4, e.Arg & 0x0F
}

var volumeColumnPortamento = [...]uint8{0x00, 0x01, 0x04, 0x08, 0x10, 0x20, 0x40, 0x60, 0x80, 0xFF}

// volumeColumnSlide maps the c/d amount to the Dxy nibble.
// Any non-zero amount is a full speed slide: d01 is D0F.
// A zero amount keeps the remembered slide.
var volumeColumnSlide = [...]uint8{0x0, 0xF, 0xF, 0xF, 0xF, 0xF, 0xF, 0xF, 0xF, 0xF}

// EffectFromVolumeByte decodes the volume column into an effect equivalent.
func EffectFromVolumeByte(v uint8) Effect {
	e := Effect{VolumeColumn: true}

	switch {
	case v <= 64:
		e.Op = EffectSetVolume
		e.Arg = v

	case v <= 74: // a: fine volume up
		e.Op = EffectVolumeSlide
		e.Arg = (v-65)<<4 | 0x0F

	case v <= 84: // b: fine volume down
		e.Op = EffectVolumeSlide
		e.Arg = 0xF0 | (v - 75)

	case v <= 94: // c: volume slide up
		e.Op = EffectVolumeSlide
		e.Arg = volumeColumnSlide[v-85] << 4

	case v <= 104: // d: volume slide down
		e.Op = EffectVolumeSlide
		e.Arg = volumeColumnSlide[v-95]

	case v <= 114: // e: pitch slide down
		e.Op = EffectPortamentoDown
		e.Arg = (v - 105) * 4

	case v <= 124: // f: pitch slide up
		e.Op = EffectPortamentoUp
		e.Arg = (v - 115) * 4

	case v >= 128 && v <= 192:
		e.Op = EffectSetPan
		pan := int(v-128) * 4
		if pan > 255 {
			pan = 255
		}
		e.Arg = uint8(pan)

	case v >= 193 && v <= 202:
		e.Op = EffectTonePortamento
		e.Arg = volumeColumnPortamento[v-193]

	case v >= 203 && v <= 212:
		e.Op = EffectVibrato
		e.Arg = v - 203
	}

	// Zero-argument slides reuse the memory, same as D00.
	// The "a0"/"b0" fine slides are a special case of that.
	if e.Op == EffectVolumeSlide && (e.Arg == 0x0F || e.Arg == 0xF0) {
		e.Arg = 0
	}

	return e
}

type SlideKind int

const (
	SlideRegular SlideKind = iota
	SlideFine
	SlideExtraFine
)

// VolumeSlide is a decoded Dxy-style argument.
// Delta is applied per tick (except the first one) for regular slides,
// and once for the fine ones.
type VolumeSlide struct {
	Delta int
	Kind  SlideKind
}

// DecodeVolumeSlide interprets a non-zero volume slide argument.
// The second result is false for malformed arguments, like D23.
func DecodeVolumeSlide(arg uint8) (VolumeSlide, bool) {
	hi := int(arg >> 4)
	lo := int(arg & 0x0F)
	switch {
	case lo == 0:
		return VolumeSlide{Delta: hi}, true
	case hi == 0:
		return VolumeSlide{Delta: -lo}, true
	case lo == 0x0F:
		return VolumeSlide{Delta: hi, Kind: SlideFine}, true
	case hi == 0x0F:
		return VolumeSlide{Delta: -lo, Kind: SlideFine}, true
	}
	return VolumeSlide{}, false
}

// DecodePortamento interprets a non-zero Exx/Fxx argument.
// The amount is measured in 1/64 semitone units; regular slides
// apply it per tick (except the first one), fine slides apply it once.
func DecodePortamento(arg uint8) (units int, kind SlideKind) {
	switch arg & 0xF0 {
	case 0xF0:
		return int(arg&0x0F) * 4, SlideFine
	case 0xE0:
		return int(arg & 0x0F), SlideExtraFine
	}
	return int(arg) * 4, SlideRegular
}
