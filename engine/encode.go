package engine

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	sequenceEntrySize = 2
	sequenceJumpSize  = 4
	patternSize       = NumChannels * 2

	sequenceAlwaysJump = 0x00FF
	maxJumpTimes       = 0x7F
)

// EncodeTrack returns the engine byte form of the track.
//
// Two tracks with equal encodings are interchangeable.
func EncodeTrack(t *Track) ([]byte, error) {
	return appendTrack(nil, t)
}

func appendTrack(buf []byte, t *Track) ([]byte, error) {
	for _, e := range t.Events {
		switch e.Kind {
		case EventNote:
			if e.Value > MaxNote {
				return nil, errors.Errorf("note %d is out of range", e.Value)
			}
			buf = append(buf, byteNoteFirst+e.Value)
		case EventTie:
			buf = append(buf, ByteTie)
		case EventRest:
			buf = append(buf, ByteRest)
		case EventPercussion:
			if e.Value > MaxPercussion {
				return nil, errors.Errorf("percussion %d is out of range", e.Value)
			}
			buf = append(buf, bytePercussion+e.Value)
		case EventDuration:
			if e.Value == 0 || e.Value > MaxDuration {
				return nil, errors.Errorf("duration %d is out of range", e.Value)
			}
			buf = append(buf, e.Value)
			if e.HasQV {
				buf = append(buf, e.QV&0x7F)
			}
		case EventVcmd:
			buf = append(buf, e.Vcmd.Code())
			buf = append(buf, e.Vcmd.Args[:e.Vcmd.NumArgs()]...)
		case EventEnd:
			buf = append(buf, ByteEnd)
		default:
			return nil, errors.Errorf("unexpected event kind %d", e.Kind)
		}
	}
	return buf, nil
}

// EncodeSong serializes the song as it should be placed at the base ARAM address.
//
// The layout is: the sequence, the patterns (8 track pointers each), the track data.
// The encoded size does not depend on the base address.
func EncodeSong(s *Song, base uint16) ([]byte, error) {
	sequenceOffsets := make([]int, len(s.Sequence)+1)
	offset := 0
	for i, entry := range s.Sequence {
		sequenceOffsets[i] = offset
		switch entry.Op {
		case SequenceJumpTimes, SequenceAlwaysJump:
			offset += sequenceJumpSize
		default:
			offset += sequenceEntrySize
		}
	}
	sequenceOffsets[len(s.Sequence)] = offset

	patternsOffset := offset
	tracksOffset := patternsOffset + len(s.Patterns)*patternSize

	trackOffsets := make([]int, len(s.Tracks))
	var trackData []byte
	for i := range s.Tracks {
		trackOffsets[i] = tracksOffset + len(trackData)
		var err error
		trackData, err = appendTrack(trackData, &s.Tracks[i])
		if err != nil {
			return nil, errors.Wrapf(err, "track %d", i)
		}
	}

	size := tracksOffset + len(trackData)
	if int(base)+size > 0x10000 {
		return nil, errors.Errorf("song data (%d bytes) does not fit at $%04X", size, base)
	}
	addr := func(offset int) uint16 {
		return base + uint16(offset)
	}

	out := make([]byte, 0, size)
	for i, entry := range s.Sequence {
		switch entry.Op {
		case SequencePlayPattern:
			if entry.Pattern < 0 || entry.Pattern >= len(s.Patterns) {
				return nil, errors.Errorf("sequence[%d]: pattern %d does not exist", i, entry.Pattern)
			}
			out = binary.LittleEndian.AppendUint16(out, addr(patternsOffset+entry.Pattern*patternSize))
		case SequenceJumpTimes, SequenceAlwaysJump:
			if entry.Target < 0 || entry.Target >= len(s.Sequence) {
				return nil, errors.Errorf("sequence[%d]: jump target %d does not exist", i, entry.Target)
			}
			count := uint16(sequenceAlwaysJump)
			if entry.Op == SequenceJumpTimes {
				if entry.Times < 1 || entry.Times > maxJumpTimes {
					return nil, errors.Errorf("sequence[%d]: jump count %d is out of range", i, entry.Times)
				}
				count = uint16(entry.Times)
			}
			out = binary.LittleEndian.AppendUint16(out, count)
			out = binary.LittleEndian.AppendUint16(out, addr(sequenceOffsets[entry.Target]))
		case SequenceEnd:
			out = binary.LittleEndian.AppendUint16(out, 0)
		default:
			return nil, errors.Errorf("sequence[%d]: unexpected op %d", i, entry.Op)
		}
	}

	for i, p := range s.Patterns {
		for ch, t := range p {
			if t == NoTrack {
				out = binary.LittleEndian.AppendUint16(out, 0)
				continue
			}
			if t < 0 || t >= len(s.Tracks) {
				return nil, errors.Errorf("pattern %d channel %d: track %d does not exist", i, ch, t)
			}
			out = binary.LittleEndian.AppendUint16(out, addr(trackOffsets[t]))
		}
	}

	return append(out, trackData...), nil
}

// EncodedSongSize returns the number of bytes EncodeSong would produce.
func EncodedSongSize(s *Song) (int, error) {
	data, err := EncodeSong(s, 0)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}
