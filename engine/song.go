package engine

// NumChannels is the number of voices of the sound engine.
const NumChannels = 8

// NoTrack marks an unused pattern slot.
const NoTrack = -1

type Track struct {
	Events []Event
}

// Pattern maps every channel to a track index inside the song.
type Pattern [NumChannels]int

// EmptyPattern returns a pattern with all slots unset.
func EmptyPattern() Pattern {
	var p Pattern
	for i := range p {
		p[i] = NoTrack
	}
	return p
}

type SequenceOp uint8

const (
	SequencePlayPattern SequenceOp = iota
	SequenceJumpTimes
	SequenceAlwaysJump
	SequenceEnd
)

// SequenceEntry is a single row of the song sequence.
//
// Pattern is used by SequencePlayPattern.
// Target is a sequence row index used by the jumps.
type SequenceEntry struct {
	Op      SequenceOp
	Pattern int
	Times   int
	Target  int
}

type Song struct {
	Name     string
	Tracks   []Track
	Patterns []Pattern
	Sequence []SequenceEntry

	IDs EventIDs
}

// Clone returns a deep copy of the song.
func (s *Song) Clone() *Song {
	cloned := &Song{
		Name:     s.Name,
		Tracks:   make([]Track, len(s.Tracks)),
		Patterns: append([]Pattern(nil), s.Patterns...),
		Sequence: append([]SequenceEntry(nil), s.Sequence...),
		IDs:      s.IDs,
	}
	for i, t := range s.Tracks {
		cloned.Tracks[i].Events = append([]Event(nil), t.Events...)
	}
	return cloned
}

// UsedInstruments returns the instrument IDs selected by the song tracks
// in the order of their first appearance.
func (s *Song) UsedInstruments() []int {
	var ids []int
	seen := make(map[int]struct{})
	s.WalkVcmds(func(v *Vcmd) {
		if v.Op != VcmdInstrument {
			return
		}
		id := int(v.Args[0])
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	})
	return ids
}

// WalkVcmds calls visit for every voice command of every track.
// The visitor may modify the command in place.
func (s *Song) WalkVcmds(visit func(v *Vcmd)) {
	for i := range s.Tracks {
		events := s.Tracks[i].Events
		for j := range events {
			if events[j].Kind == EventVcmd {
				visit(&events[j].Vcmd)
			}
		}
	}
}

// NumUsedTracks reports how many tracks are referenced by the patterns.
func (s *Song) NumUsedTracks() int {
	used := make(map[int]struct{})
	for _, p := range s.Patterns {
		for _, t := range p {
			if t != NoTrack {
				used[t] = struct{}{}
			}
		}
	}
	return len(used)
}
