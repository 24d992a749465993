package preview

// EventKind is an event tag that should be used to differentiate between different event types.
type EventKind int

const (
	// EventUnknown is a sentinel value.
	// You should never receive an event of this kind.
	EventUnknown EventKind = iota

	// EventNote is emitted every time a channel starts to play some note.
	//
	// Use Event.NoteEventData to get the event data.
	EventNote

	// EventSync tells the application to reset its time counter.
	// It's emitted on every Rewind.
	EventSync
)

// Event holds a single synthesizer event data.
// This object is an argument to the Synthesizer.SetEventHandler function.
type Event struct {
	Kind EventKind

	// Channel is an event channel ID.
	Channel int

	// Time represents the playback offset in seconds.
	Time float64

	value uint64
}

// NoteEventData returns the event data if e.Kind=EventNote.
func (e Event) NoteEventData() Note {
	return Note{
		Note:       uint8(e.value),
		Volume:     uint8(e.value >> 8),
		Pan:        uint8(e.value >> 16),
		Instrument: int(e.value >> 24),
	}
}

func packNoteEvent(n Note) uint64 {
	return uint64(n.Note) | uint64(n.Volume)<<8 | uint64(n.Pan)<<16 | uint64(n.Instrument)<<24
}
