package itspc

import (
	"testing"

	"github.com/quasilyte/itspc/engine"
	"github.com/quasilyte/itspc/internal/ittest"
	"github.com/quasilyte/itspc/itfile"
)

func newTestCompiler(t *testing.T) *songCompiler {
	t.Helper()
	m, err := itfile.NewParser(itfile.ParserConfig{}).ParseFromBytes(newTestModule(1).Bytes())
	if err != nil {
		t.Fatal(err)
	}
	infos := map[int]*instrumentInfo{
		0: {globalVolume: 128, sampleGlobalVolume: 64, sampleVolume: 64, defaultPan: -1},
	}
	return newSongCompiler(m, engine.DefaultDescriptor(), &Options{}, infos, &warningList{})
}

// playingState returns a channel state with a ringing note and
// all parameters in sync with the engine.
func playingState(note int) TrackState {
	st := newTrackState(64, 32)
	st.Instrument = 0
	st.Note = note
	st.emittedVolume = 255
	st.emittedPan = int(enginePan(32))
	return st
}

func checkTimeline(t *testing.T, events []engine.Event, want ...timedEvent) {
	t.Helper()
	have := timeline(events)
	if len(have) != len(want) {
		t.Fatalf("timeline: have %+v, want %+v", have, want)
	}
	for i := range want {
		if have[i] != want[i] {
			t.Fatalf("timeline[%d]: have %+v, want %+v", i, have[i], want[i])
		}
	}
}

func checkVcmds(t *testing.T, events []engine.Event, op engine.VcmdOp, want ...string) {
	t.Helper()
	have := findVcmds(events, op)
	if len(have) != len(want) {
		t.Fatalf("%02x commands: have %v, want %v", uint8(op), have, want)
	}
	for i := range want {
		if have[i].String() != want[i] {
			t.Fatalf("%02x commands[%d]: have %s, want %s", uint8(op), i, have[i], want[i])
		}
	}
}

func TestTranslateNewNote(t *testing.T) {
	c := newTestCompiler(t)
	events, st := c.translateCell(0, ittest.NoteIns(0, 0, 60, 1).Cell, 6, newTrackState(64, 32))

	if have := eventsString(events); have != "instrument[0] volume[255] pan[10] dur(6) note(36)" {
		t.Fatalf("events: %s", have)
	}
	if st.Note != 36 || st.Instrument != 0 {
		t.Fatalf("state: note=%d instrument=%d", st.Note, st.Instrument)
	}

	// Same instrument, same volume: nothing to re-emit.
	events, _ = c.translateCell(0, ittest.NoteIns(0, 0, 62, 1).Cell, 6, st)
	if have := eventsString(events); have != "dur(6) note(38)" {
		t.Fatalf("second note: %s", have)
	}
}

func TestTranslateNoteWithoutInstrument(t *testing.T) {
	c := newTestCompiler(t)
	events, st := c.translateCell(2, ittest.Note(0, 2, 60).Cell, 6, newTrackState(64, 32))
	checkTimeline(t, events, timedEvent{kind: engine.EventRest, ticks: 6})
	if st.playing() {
		t.Fatal("the note should be ignored")
	}
	if len(c.warnings.list) != 1 || c.warnings.list[0] != "channel 3: a note without an instrument is ignored" {
		t.Fatalf("warnings: %q", c.warnings.list)
	}
}

func TestTranslateVolumeSlide(t *testing.T) {
	c := newTestCompiler(t)

	events, st := c.translateCell(0, ittest.Effect(0, 0, 'D', 0x01).Cell, 6, playingState(36))
	checkVcmds(t, events, engine.VcmdVolumeFade, "volume_fade[6 245]")
	checkTimeline(t, events, timedEvent{kind: engine.EventTie, ticks: 6})
	if st.Volume != 59 {
		t.Fatalf("volume: %d", st.Volume)
	}

	// D00 repeats the last slide.
	events, st = c.translateCell(0, ittest.Effect(0, 0, 'D', 0x00).Cell, 6, st)
	checkVcmds(t, events, engine.VcmdVolumeFade, "volume_fade[6 234]")

	// Fine slides are applied once.
	events, st = c.translateCell(0, ittest.Effect(0, 0, 'D', 0xF1).Cell, 6, st)
	checkVcmds(t, events, engine.VcmdVolume, "volume[232]")
	if st.Volume != 53 {
		t.Fatalf("volume after a fine slide: %d", st.Volume)
	}

	// A regular slide does nothing on a single tick row.
	events, _ = c.translateCell(0, ittest.Effect(0, 0, 'D', 0x04).Cell, 1, st)
	checkVcmds(t, events, engine.VcmdVolumeFade)
}

func TestTranslateVolumeColumnSlide(t *testing.T) {
	c := newTestCompiler(t)

	// d1 is a D0F slide.
	cell := itfile.Cell{Mask: itfile.CellHasVolume, Volume: 96}
	events, st := c.translateCell(0, cell, 6, playingState(36))
	if have := findVcmds(events, engine.VcmdVolumeFade); len(have) != 1 {
		t.Fatalf("volume fades: %v", have)
	}
	if st.Volume != 0 || st.LastVolumeSlide != 0x0F {
		t.Fatalf("state: volume=%d last slide=%02X", st.Volume, st.LastVolumeSlide)
	}

	// c1 is a DF0 slide.
	cell = itfile.Cell{Mask: itfile.CellHasVolume, Volume: 86}
	_, st = c.translateCell(0, cell, 6, st)
	if st.Volume != 64 || st.LastVolumeSlide != 0xF0 {
		t.Fatalf("state: volume=%d last slide=%02X", st.Volume, st.LastVolumeSlide)
	}
}

func TestTranslateTempo(t *testing.T) {
	c := newTestCompiler(t)
	st := playingState(36)

	events, st := c.translateCell(0, ittest.Effect(0, 0, 'T', 0x05).Cell, 6, st)
	checkVcmds(t, events, engine.VcmdTempoFade, "tempo_fade[6 20]")
	if c.state.bpm != 100 {
		t.Fatalf("bpm: %d", c.state.bpm)
	}

	events, st = c.translateCell(0, ittest.Effect(0, 0, 'T', 0x15).Cell, 6, st)
	checkVcmds(t, events, engine.VcmdTempoFade, "tempo_fade[6 26]")

	events, st = c.translateCell(0, ittest.Effect(0, 0, 'T', 0x00).Cell, 6, st)
	checkVcmds(t, events, engine.VcmdTempoFade, "tempo_fade[6 31]")

	events, _ = c.translateCell(0, ittest.Effect(0, 0, 'T', 0x80).Cell, 6, st)
	checkVcmds(t, events, engine.VcmdTempo, "tempo[26]")
}

func TestTranslateTonePortamento(t *testing.T) {
	c := newTestCompiler(t)
	cell := ittest.Note(0, 0, 62).With('G', 0x10).Cell

	events, st := c.translateCell(0, cell, 6, playingState(36))
	checkTimeline(t, events, timedEvent{kind: engine.EventTie, ticks: 6})
	checkVcmds(t, events, engine.VcmdPitchSlide, "pitch_slide[0 2 166]")
	if st.Note != 38 {
		t.Fatalf("note: %d", st.Note)
	}

	// G00 uses the memory; the same note doesn't slide.
	events, _ = c.translateCell(0, ittest.Note(0, 0, 62).With('G', 0).Cell, 6, st)
	checkTimeline(t, events, timedEvent{kind: engine.EventTie, ticks: 6})
	checkVcmds(t, events, engine.VcmdPitchSlide)
}

func TestTranslatePortamentoRetriggers(t *testing.T) {
	c := newTestCompiler(t)

	// F04 for 5 ticks is 80 units: one semitone with 16 units left.
	events, st := c.translateCell(0, ittest.Effect(0, 0, 'F', 0x04).Cell, 6, playingState(36))
	checkVcmds(t, events, engine.VcmdPitchSlide, "pitch_slide[0 6 165]")
	if st.Note != 37 || st.PitchRemainder != 16 || !st.ForceRetrigger {
		t.Fatalf("state: note=%d remainder=%d retrigger=%v", st.Note, st.PitchRemainder, st.ForceRetrigger)
	}

	// After a pitch slide, the tone portamento target is played as a new note.
	events, st = c.translateCell(0, ittest.Note(0, 0, 62).With('G', 0x10).Cell, 6, st)
	checkTimeline(t, events, timedEvent{kind: engine.EventNote, value: 38, ticks: 6})
	checkVcmds(t, events, engine.VcmdPitchSlide)
	if st.ForceRetrigger {
		t.Fatal("a played note should clear the retrigger flag")
	}

	events, st = c.translateCell(0, ittest.Effect(0, 0, 'E', 0x08).Cell, 6, st)
	checkVcmds(t, events, engine.VcmdPitchSlide, "pitch_slide[0 6 164]")
	if st.Note != 36 {
		t.Fatalf("note after a slide down: %d", st.Note)
	}

	// Fine slides take a single tick.
	events, _ = c.translateCell(0, ittest.Effect(0, 0, 'F', 0xFF).Cell, 6, playingState(36))
	checkVcmds(t, events, engine.VcmdPitchSlide)
	_, st = c.translateCell(0, ittest.Effect(0, 0, 'F', 0xFF).Cell, 6, playingState(36))
	events, _ = c.translateCell(0, ittest.Effect(0, 0, 'F', 0xF8).Cell, 6, st)
	checkVcmds(t, events, engine.VcmdPitchSlide, "pitch_slide[0 1 165]")
}

func TestTranslateNoteCut(t *testing.T) {
	c := newTestCompiler(t)
	events, st := c.translateCell(0, ittest.Note(0, 0, 60).With('S', 0xC3).Cell, 6, playingState(40))
	checkTimeline(t, events,
		timedEvent{kind: engine.EventNote, value: 36, ticks: 3},
		timedEvent{kind: engine.EventRest, ticks: 3})
	if st.playing() {
		t.Fatal("the note should be cut")
	}

	// SC0 is SC1.
	events, _ = c.translateCell(0, ittest.Effect(0, 0, 'S', 0xC0).Cell, 6, playingState(40))
	checkTimeline(t, events,
		timedEvent{kind: engine.EventTie, ticks: 1},
		timedEvent{kind: engine.EventRest, ticks: 5})

	// A cut after the row end does nothing.
	events, st = c.translateCell(0, ittest.Effect(0, 0, 'S', 0xC9).Cell, 6, playingState(40))
	checkTimeline(t, events, timedEvent{kind: engine.EventTie, ticks: 6})
	if !st.playing() {
		t.Fatal("the note should be kept")
	}
}

func TestTranslateNoteDelay(t *testing.T) {
	c := newTestCompiler(t)
	events, st := c.translateCell(0, ittest.Note(0, 0, 62).With('S', 0xD2).Cell, 6, playingState(36))
	checkTimeline(t, events,
		timedEvent{kind: engine.EventTie, ticks: 2},
		timedEvent{kind: engine.EventNote, value: 38, ticks: 4})
	if st.Note != 38 {
		t.Fatalf("note: %d", st.Note)
	}

	events, _ = c.translateCell(0, ittest.Note(0, 0, 62).With('S', 0xD7).Cell, 6, newTrackState(64, 32))
	checkTimeline(t, events, timedEvent{kind: engine.EventRest, ticks: 6})
}

func TestTranslateNoteDelayPastRow(t *testing.T) {
	c := newTestCompiler(t)
	st := newTrackState(64, 32)
	st.Instrument = 0
	st.ForceRetrigger = true
	st.Vibrato = modulation{On: true, Args: [3]uint8{0, 4, 4}}

	// SD7 on a 6 tick row: C-5 is never played.
	events, st := c.translateCell(0, ittest.Note(0, 0, 60).With('S', 0xD7).Cell, 6, st)
	checkTimeline(t, events, timedEvent{kind: engine.EventRest, ticks: 6})
	checkVcmds(t, events, engine.VcmdVibratoOff)
	if st.Note != -1 || !st.ForceRetrigger || !st.Vibrato.On {
		t.Fatalf("state: note=%d retrigger=%v vibrato=%v", st.Note, st.ForceRetrigger, st.Vibrato.On)
	}

	// The next empty row is still a rest, not a tie.
	events, st = c.translateCell(0, itfile.Cell{}, 6, st)
	checkTimeline(t, events, timedEvent{kind: engine.EventRest, ticks: 6})
	if st.Note != -1 {
		t.Fatalf("note: %d", st.Note)
	}
}

func TestTranslateLongRow(t *testing.T) {
	c := newTestCompiler(t)
	events, _ := c.translateCell(0, ittest.Note(0, 0, 60).Cell, 200, playingState(40))
	checkTimeline(t, events,
		timedEvent{kind: engine.EventNote, value: 36, ticks: 127},
		timedEvent{kind: engine.EventTie, ticks: 73})

	events, _ = c.translateCell(0, ittest.Note(0, 0, itfile.NoteCut).Cell, 200, playingState(40))
	checkTimeline(t, events,
		timedEvent{kind: engine.EventRest, ticks: 127},
		timedEvent{kind: engine.EventRest, ticks: 73})
}

func TestTranslateModulations(t *testing.T) {
	c := newTestCompiler(t)

	events, st := c.translateCell(0, ittest.Effect(0, 0, 'H', 0x46).Cell, 6, playingState(36))
	checkVcmds(t, events, engine.VcmdVibratoOn, "vibrato_on[0 16 96]")

	// The same vibrato is not issued again.
	events, st = c.translateCell(0, ittest.Effect(0, 0, 'H', 0x00).Cell, 6, st)
	checkVcmds(t, events, engine.VcmdVibratoOn)

	// A new note without a vibrato stops it.
	events, st = c.translateCell(0, ittest.Note(0, 0, 60).Cell, 6, st)
	checkVcmds(t, events, engine.VcmdVibratoOff, "vibrato_off[]")
	if st.Vibrato.On {
		t.Fatal("vibrato should be off")
	}

	events, st = c.translateCell(0, ittest.Effect(0, 0, 'U', 0x46).Cell, 6, st)
	checkVcmds(t, events, engine.VcmdVibratoOn, "vibrato_on[0 16 24]")

	events, st = c.translateCell(0, ittest.Effect(0, 0, 'R', 0x21).Cell, 6, st)
	checkVcmds(t, events, engine.VcmdTremoloOn, "tremolo_on[0 8 16]")

	// A running modulation is stopped at the next pattern unless
	// it's present on the last row.
	st.endPattern()
	if !st.PendingBoundaryVibratoOff || st.PendingBoundaryTremoloOff {
		t.Fatalf("pending offs: vibrato=%v tremolo=%v", st.PendingBoundaryVibratoOff, st.PendingBoundaryTremoloOff)
	}
	events = c.boundaryOffs(nil, &st)
	if have := eventsString(events); have != "vibrato_off[]" {
		t.Fatalf("boundary commands: %s", have)
	}
	if st.Vibrato.On || !st.Tremolo.On {
		t.Fatal("only the vibrato should be stopped")
	}
}

func TestTranslateArpeggio(t *testing.T) {
	c := newTestCompiler(t)

	events, st := c.translateCell(0, ittest.Effect(0, 0, 'J', 0x37).Cell, 6, playingState(36))
	if have := eventsString(events); have != "ext_fb[55] dur(6) tie" {
		t.Fatalf("events: %s", have)
	}
	events, st = c.translateCell(0, ittest.Effect(0, 0, 'J', 0x00).Cell, 6, st)
	if have := eventsString(events); have != "dur(6) tie" {
		t.Fatalf("repeated arpeggio: %s", have)
	}
	events, _ = c.translateCell(0, ittest.Note(0, 0, 60).Cell, 6, st)
	if have := eventsString(events); have != "ext_fb[0] dur(6) note(36)" {
		t.Fatalf("arpeggio stop: %s", have)
	}
	if !c.usedExtensions["Arpeggio"] {
		t.Fatal("the arpeggio extension is not marked as used")
	}

	// Without the extension, the effect is dropped.
	c = newTestCompiler(t)
	c.hasArpeggio = false
	events, _ = c.translateCell(0, ittest.Effect(0, 0, 'J', 0x37).Cell, 6, playingState(36))
	if have := eventsString(events); have != "dur(6) tie" {
		t.Fatalf("events without the extension: %s", have)
	}
	if len(c.warnings.list) != 1 {
		t.Fatalf("warnings: %q", c.warnings.list)
	}
}

func TestTranslateEcho(t *testing.T) {
	c := newTestCompiler(t)

	events, _ := c.translateCell(0, ittest.Effect(0, 0, 'Z', 0x01).Cell, 6, playingState(36))
	if have := eventsString(events); have != "echo_params[4 64 0] echo_on[1 32 32] dur(6) tie" {
		t.Fatalf("echo on: %s", have)
	}
	events, _ = c.translateCell(1, ittest.Effect(0, 1, 'Z', 0x01).Cell, 6, playingState(36))
	checkVcmds(t, events, engine.VcmdEchoParams)
	checkVcmds(t, events, engine.VcmdEchoOn, "echo_on[3 32 32]")

	events, _ = c.translateCell(0, ittest.Effect(0, 0, 'Z', 0x00).Cell, 6, playingState(36))
	checkVcmds(t, events, engine.VcmdEchoOn, "echo_on[2 32 32]")
	events, _ = c.translateCell(1, ittest.Effect(0, 1, 'S', 0x00).Cell, 6, playingState(36))
	checkVcmds(t, events, engine.VcmdEchoOff, "echo_off[]")
}

func TestTranslatePanning(t *testing.T) {
	c := newTestCompiler(t)

	events, st := c.translateCell(0, ittest.Effect(0, 0, 'X', 0x00).Cell, 6, playingState(36))
	checkVcmds(t, events, engine.VcmdPan, "pan[20]")

	events, st = c.translateCell(0, ittest.Effect(0, 0, 'S', 0x8F).Cell, 6, st)
	checkVcmds(t, events, engine.VcmdPan, "pan[0]")

	events, _ = c.translateCell(0, ittest.Effect(0, 0, 'P', 0x40).Cell, 6, st)
	checkVcmds(t, events, engine.VcmdPanFade, "pan_fade[6 6]")
}

func TestTranslateUnsupported(t *testing.T) {
	c := newTestCompiler(t)
	cells := []ittest.Cell{
		ittest.Effect(0, 0, 'Q', 0x01),
		ittest.Effect(0, 0, 'O', 0x10),
		ittest.Effect(0, 0, 'Q', 0x02),
		ittest.Effect(0, 0, 'S', 0x11),
	}
	st := playingState(36)
	for _, cell := range cells {
		var events []engine.Event
		events, st = c.translateCell(0, cell.Cell, 6, st)
		checkTimeline(t, events, timedEvent{kind: engine.EventTie, ticks: 6})
	}
	want := []string{
		"effect Q is not supported, dropped",
		"effect O is not supported, dropped",
		"effect S1 is not supported, dropped",
	}
	if len(c.warnings.list) != len(want) {
		t.Fatalf("warnings: %q", c.warnings.list)
	}
	for i := range want {
		if c.warnings.list[i] != want[i] {
			t.Fatalf("warning[%d]: have %q, want %q", i, c.warnings.list[i], want[i])
		}
	}
}
