package engine

import (
	"fmt"
)

type EventKind uint8

const (
	EventNote EventKind = iota
	EventRest
	EventTie
	EventPercussion
	EventDuration
	EventEnd
	EventVcmd
)

// Byte-level layout of the track data.
const (
	ByteEnd        = 0x00
	MaxDuration    = 0x7F
	byteNoteFirst  = 0x80
	ByteTie        = 0xC8
	ByteRest       = 0xC9
	bytePercussion = 0xCA
	byteVcmdFirst  = 0xE0
	MaxNote        = ByteTie - byteNoteFirst - 1 // 71
	MaxPercussion  = byteVcmdFirst - bytePercussion - 1
	DefaultQV      = 0x7F
	maxVcmdArgs    = 4
)

// Event is a single entry of a track.
//
// Value is interpreted depending on the kind:
// note index for EventNote, instrument index for EventPercussion,
// tick count for EventDuration.
type Event struct {
	// ID is unique within a song and grows in the emission order.
	ID uint64

	Kind  EventKind
	Value uint8

	// QV is the quantization+velocity byte of the EventDuration.
	QV    uint8
	HasQV bool

	Vcmd Vcmd
}

// IsTimed reports whether the event consumes the current duration.
func (e Event) IsTimed() bool {
	switch e.Kind {
	case EventNote, EventRest, EventTie, EventPercussion:
		return true
	}
	return false
}

func (e Event) String() string {
	switch e.Kind {
	case EventNote:
		return fmt.Sprintf("note(%d)", e.Value)
	case EventRest:
		return "rest"
	case EventTie:
		return "tie"
	case EventPercussion:
		return fmt.Sprintf("perc(%d)", e.Value)
	case EventDuration:
		if e.HasQV {
			return fmt.Sprintf("dur(%d, qv=%02x)", e.Value, e.QV)
		}
		return fmt.Sprintf("dur(%d)", e.Value)
	case EventEnd:
		return "end"
	case EventVcmd:
		return e.Vcmd.String()
	}
	return fmt.Sprintf("event(%d)", e.Kind)
}

// EventIDs hands out event identifiers.
// The zero value is ready to use.
type EventIDs struct {
	last uint64
}

func (g *EventIDs) Next() uint64 {
	g.last++
	return g.last
}

// Last returns the most recently allocated identifier.
func (g *EventIDs) Last() uint64 { return g.last }

type VcmdOp uint8

const (
	VcmdInstrument        VcmdOp = 0xE0
	VcmdPan               VcmdOp = 0xE1
	VcmdPanFade           VcmdOp = 0xE2
	VcmdVibratoOn         VcmdOp = 0xE3
	VcmdVibratoOff        VcmdOp = 0xE4
	VcmdGlobalVolume      VcmdOp = 0xE5
	VcmdGlobalVolumeFade  VcmdOp = 0xE6
	VcmdTempo             VcmdOp = 0xE7
	VcmdTempoFade         VcmdOp = 0xE8
	VcmdGlobalTranspose   VcmdOp = 0xE9
	VcmdChannelTranspose  VcmdOp = 0xEA
	VcmdTremoloOn         VcmdOp = 0xEB
	VcmdTremoloOff        VcmdOp = 0xEC
	VcmdVolume            VcmdOp = 0xED
	VcmdVolumeFade        VcmdOp = 0xEE
	VcmdVibratoFade       VcmdOp = 0xF0
	VcmdPitchEnvelopeTo   VcmdOp = 0xF1
	VcmdPitchEnvelopeFrom VcmdOp = 0xF2
	VcmdPitchEnvelopeOff  VcmdOp = 0xF3
	VcmdFineTune          VcmdOp = 0xF4
	VcmdEchoOn            VcmdOp = 0xF5
	VcmdEchoOff           VcmdOp = 0xF6
	VcmdEchoParams        VcmdOp = 0xF7
	VcmdEchoVolumeFade    VcmdOp = 0xF8
	VcmdPitchSlide        VcmdOp = 0xF9
	VcmdPercussionBase    VcmdOp = 0xFA

	// VcmdExtension is a command provided by an engine extension.
	// Its byte code is stored in the Vcmd.ExtID.
	VcmdExtension VcmdOp = 0xFF
)

var vcmdInfoTable = [...]struct {
	name    string
	numArgs int
}{
	VcmdInstrument - byteVcmdFirst:        {"instrument", 1},
	VcmdPan - byteVcmdFirst:               {"pan", 1},
	VcmdPanFade - byteVcmdFirst:           {"pan_fade", 2},
	VcmdVibratoOn - byteVcmdFirst:         {"vibrato_on", 3},
	VcmdVibratoOff - byteVcmdFirst:        {"vibrato_off", 0},
	VcmdGlobalVolume - byteVcmdFirst:      {"global_volume", 1},
	VcmdGlobalVolumeFade - byteVcmdFirst:  {"global_volume_fade", 2},
	VcmdTempo - byteVcmdFirst:             {"tempo", 1},
	VcmdTempoFade - byteVcmdFirst:         {"tempo_fade", 2},
	VcmdGlobalTranspose - byteVcmdFirst:   {"global_transpose", 1},
	VcmdChannelTranspose - byteVcmdFirst:  {"channel_transpose", 1},
	VcmdTremoloOn - byteVcmdFirst:         {"tremolo_on", 3},
	VcmdTremoloOff - byteVcmdFirst:        {"tremolo_off", 0},
	VcmdVolume - byteVcmdFirst:            {"volume", 1},
	VcmdVolumeFade - byteVcmdFirst:        {"volume_fade", 2},
	0xEF - byteVcmdFirst:                  {"call_subroutine", 3},
	VcmdVibratoFade - byteVcmdFirst:       {"vibrato_fade", 1},
	VcmdPitchEnvelopeTo - byteVcmdFirst:   {"pitch_envelope_to", 3},
	VcmdPitchEnvelopeFrom - byteVcmdFirst: {"pitch_envelope_from", 3},
	VcmdPitchEnvelopeOff - byteVcmdFirst:  {"pitch_envelope_off", 0},
	VcmdFineTune - byteVcmdFirst:          {"fine_tune", 1},
	VcmdEchoOn - byteVcmdFirst:            {"echo_on", 3},
	VcmdEchoOff - byteVcmdFirst:           {"echo_off", 0},
	VcmdEchoParams - byteVcmdFirst:        {"echo_params", 3},
	VcmdEchoVolumeFade - byteVcmdFirst:    {"echo_volume_fade", 3},
	VcmdPitchSlide - byteVcmdFirst:        {"pitch_slide", 3},
	VcmdPercussionBase - byteVcmdFirst:    {"percussion_base", 1},
}

// Vcmd is a voice command with its arguments.
type Vcmd struct {
	Op   VcmdOp
	Args [maxVcmdArgs]uint8

	// ExtID and NumExtArgs are only used by VcmdExtension.
	ExtID      uint8
	NumExtArgs uint8
}

func NewVcmd(op VcmdOp, args ...uint8) Vcmd {
	v := Vcmd{Op: op}
	copy(v.Args[:], args)
	return v
}

// NewExtensionVcmd builds a command described by the engine extension.
func NewExtensionVcmd(cmd ExtensionCommand, args ...uint8) Vcmd {
	v := Vcmd{Op: VcmdExtension, ExtID: cmd.ID, NumExtArgs: uint8(cmd.Params)}
	copy(v.Args[:], args)
	return v
}

func (v Vcmd) NumArgs() int {
	if v.Op == VcmdExtension {
		return int(v.NumExtArgs)
	}
	if v.Op < byteVcmdFirst || int(v.Op-byteVcmdFirst) >= len(vcmdInfoTable) {
		return 0
	}
	return vcmdInfoTable[v.Op-byteVcmdFirst].numArgs
}

// Code returns the first byte of the encoded command.
func (v Vcmd) Code() uint8 {
	if v.Op == VcmdExtension {
		return v.ExtID
	}
	return uint8(v.Op)
}

// IsVolume reports whether the command only affects the voice volume.
func (v Vcmd) IsVolume() bool {
	return v.Op == VcmdVolume || v.Op == VcmdVolumeFade
}

func (v Vcmd) String() string {
	name := fmt.Sprintf("ext_%02x", v.ExtID)
	if v.Op != VcmdExtension && v.Op >= byteVcmdFirst && int(v.Op-byteVcmdFirst) < len(vcmdInfoTable) {
		name = vcmdInfoTable[v.Op-byteVcmdFirst].name
	}
	return fmt.Sprintf("%s%v", name, v.Args[:v.NumArgs()])
}
