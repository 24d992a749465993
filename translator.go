package itspc

import (
	"github.com/quasilyte/itspc/engine"
	"github.com/quasilyte/itspc/internal/itdb"
	"github.com/quasilyte/itspc/itfile"
)

// segment is a timed part of a row.
type segment struct {
	kind  engine.EventKind
	value uint8
	ticks int
}

// rowTranslator converts a single pattern cell.
//
// The events are collected in three groups: the commands that
// precede the timed events, the timed events themselves and
// the commands that modify the just played note (pitch slides).
type rowTranslator struct {
	c     *songCompiler
	ch    int
	cell  itfile.Cell
	ticks int
	st    TrackState

	pre  []engine.Event
	segs []segment
	post []engine.Event

	// before is a continuation event kind as it was before the row.
	before engine.EventKind

	tonePorta      bool
	tonePortaTicks int // 0 means "compute from the distance"
	tonePortaSpeed uint8

	pitchUnits int
	pitchFine  bool

	noteCut   int // SCx, -1 if not set
	noteDelay int // SDx, -1 if not set
}

// translateCell converts one cell of the channel.
// The updated channel state is returned.
func (c *songCompiler) translateCell(ch int, cell itfile.Cell, ticks int, st TrackState) ([]engine.Event, TrackState) {
	t := rowTranslator{
		c:         c,
		ch:        ch,
		cell:      cell,
		ticks:     ticks,
		st:        st,
		noteCut:   -1,
		noteDelay: -1,
	}
	t.st.Vibrato.row = false
	t.st.Tremolo.row = false
	t.st.Arpeggio.row = false
	t.before = t.continuation()

	t.applyInstrument()
	if cell.Mask.Contains(itfile.CellHasVolume) {
		t.applyEffect(itdb.EffectFromVolumeByte(cell.Volume))
	}
	t.syncVolume()
	t.applyEffect(itdb.ConvertEffect(cell))
	t.syncVolume()
	t.syncPan()

	t.applyNote()
	t.applyPitchSlide()

	events := t.pre
	for _, seg := range t.splitRow() {
		events = t.appendTimed(events, seg)
	}
	events = append(events, t.post...)
	return events, t.st
}

func (t *rowTranslator) emit(v engine.Vcmd) {
	t.pre = append(t.pre, t.c.vcmdEvent(v))
}

func (t *rowTranslator) emitPost(v engine.Vcmd) {
	t.post = append(t.post, t.c.vcmdEvent(v))
}

func (t *rowTranslator) continuation() engine.EventKind {
	if t.st.playing() {
		return engine.EventTie
	}
	return engine.EventRest
}

func (t *rowTranslator) instrument() *instrumentInfo {
	return t.c.instruments[t.st.Instrument]
}

func (t *rowTranslator) applyInstrument() {
	if !t.cell.Mask.Contains(itfile.CellHasInstrument) || t.cell.Instrument == 0 {
		return
	}
	id := int(t.cell.Instrument) - 1
	info, ok := t.c.instruments[id]
	if !ok {
		t.c.warnings.addf("instrument %d is not imported, its notes use the previous instrument", id+1)
		return
	}
	if id != t.st.Instrument {
		t.emit(engine.NewVcmd(engine.VcmdInstrument, uint8(id)))
		t.st.Instrument = id
	}
	t.st.Volume = info.sampleVolume
	if info.defaultPan != -1 {
		t.st.Pan = info.defaultPan
	}
}

func (t *rowTranslator) applyEffect(e itdb.Effect) {
	st := &t.st
	switch e.Op {
	case itdb.EffectNone:
		// Nothing to do.

	case itdb.EffectSetSpeed, itdb.EffectPositionJump, itdb.EffectPatternBreak:
		// Handled by the row timing.

	case itdb.EffectSetVolume:
		st.Volume = clamp(int(e.Arg), 0, 64)

	case itdb.EffectVolumeSlide:
		t.volumeSlide(e.Arg)

	case itdb.EffectPortamentoDown, itdb.EffectPortamentoUp:
		t.portamento(e)

	case itdb.EffectTonePortamento:
		t.tonePortamento(e)

	case itdb.EffectVibrato:
		if e.VolumeColumn {
			// The volume column only sets the depth.
			t.vibrato(st.LastVibrato&0xF0|e.Arg&0x0F, 16)
		} else {
			t.vibrato(e.Arg, 16)
		}

	case itdb.EffectFineVibrato:
		t.vibrato(e.Arg, 4)

	case itdb.EffectVibratoVolumeSlide:
		t.vibrato(0, 16)
		t.volumeSlide(e.Arg)

	case itdb.EffectPortamentoVolumeSlide:
		t.tonePortamento(itdb.Effect{Op: itdb.EffectTonePortamento})
		t.volumeSlide(e.Arg)

	case itdb.EffectTremolo:
		t.tremolo(e.Arg)

	case itdb.EffectArpeggio:
		t.arpeggio(e.Arg)

	case itdb.EffectSetChannelVolume:
		st.ChannelVolume = clamp(int(e.Arg), 0, 64)

	case itdb.EffectChannelVolumeSlide:
		t.channelVolumeSlide(e.Arg)

	case itdb.EffectSetPan:
		st.Pan = clamp((int(e.Arg)+2)/4, 0, 64)

	case itdb.EffectPanSlide:
		t.panSlide(e.Arg)

	case itdb.EffectTempo:
		t.tempo(e.Arg)

	case itdb.EffectSetGlobalVolume:
		t.c.state.globalVolume = clamp(int(e.Arg), 0, 128)
		t.emit(engine.NewVcmd(engine.VcmdGlobalVolume, globalVolume(t.c.state.globalVolume)))

	case itdb.EffectGlobalVolumeSlide:
		t.globalVolumeSlide(e.Arg)

	case itdb.EffectEcho:
		t.setEcho(e.Arg != 0)

	case itdb.EffectSpecial:
		t.special(e)

	case itdb.EffectTremor, itdb.EffectSampleOffset, itdb.EffectRetrigger, itdb.EffectPanbrello:
		t.c.warnings.addf("effect %c is not supported, dropped", e.Letter())
	}
}

func (t *rowTranslator) special(e itdb.Effect) {
	sub, x := e.Special()
	switch sub {
	case itdb.SpecialEchoOff:
		if x == 0 {
			t.setEcho(false)
			return
		}
	case itdb.SpecialPan:
		t.st.Pan = clamp(int(x)*64/15, 0, 64)
		return
	case itdb.SpecialNoteCut:
		t.noteCut = int(x)
		return
	case itdb.SpecialNoteDelay:
		t.noteDelay = int(x)
		return
	case itdb.SpecialPatternDelay:
		// Handled by the row timing.
		return
	}
	t.c.warnings.addf("effect S%X is not supported, dropped", sub)
}

// syncVolume emits the voice volume if it was changed.
func (t *rowTranslator) syncVolume() {
	v := t.c.mappedVolume(&t.st)
	if int(v) == t.st.emittedVolume {
		return
	}
	t.emit(engine.NewVcmd(engine.VcmdVolume, v))
	t.st.emittedVolume = int(v)
}

// fadeVolume makes the voice volume reach the current state value
// by the end of the row.
func (t *rowTranslator) fadeVolume() {
	v := t.c.mappedVolume(&t.st)
	if int(v) == t.st.emittedVolume {
		return
	}
	t.emit(engine.NewVcmd(engine.VcmdVolumeFade, clampTicks(t.ticks), v))
	t.st.emittedVolume = int(v)
}

func (t *rowTranslator) syncPan() {
	p := enginePan(t.st.Pan)
	if int(p) == t.st.emittedPan {
		return
	}
	t.emit(engine.NewVcmd(engine.VcmdPan, p))
	t.st.emittedPan = int(p)
}

// slideMemory returns the effective slide argument.
// A zero argument reuses the last one.
func slideMemory(arg uint8, last *uint8) uint8 {
	if arg == 0 {
		return *last
	}
	*last = arg
	return arg
}

// nibbleMemory is like slideMemory, but it works for every nibble separately.
func nibbleMemory(arg uint8, last *uint8) uint8 {
	if arg&0xF0 == 0 {
		arg |= *last & 0xF0
	}
	if arg&0x0F == 0 {
		arg |= *last & 0x0F
	}
	*last = arg
	return arg
}

func (t *rowTranslator) decodeSlide(letter byte, arg uint8) (itdb.VolumeSlide, bool) {
	if arg == 0 {
		return itdb.VolumeSlide{}, false
	}
	slide, ok := itdb.DecodeVolumeSlide(arg)
	if !ok {
		t.c.warnings.addf("effect %c%02X has an invalid argument, dropped", letter, arg)
		return itdb.VolumeSlide{}, false
	}
	if slide.Kind == itdb.SlideRegular && t.ticks <= 1 {
		return itdb.VolumeSlide{}, false
	}
	return slide, true
}

func (t *rowTranslator) volumeSlide(arg uint8) {
	slide, ok := t.decodeSlide('D', slideMemory(arg, &t.st.LastVolumeSlide))
	if !ok {
		return
	}
	if slide.Kind != itdb.SlideRegular {
		t.st.Volume = clamp(t.st.Volume+slide.Delta, 0, 64)
		t.syncVolume()
		return
	}
	t.st.Volume = clamp(t.st.Volume+slide.Delta*(t.ticks-1), 0, 64)
	t.fadeVolume()
}

func (t *rowTranslator) channelVolumeSlide(arg uint8) {
	slide, ok := t.decodeSlide('N', slideMemory(arg, &t.st.LastChannelVolumeSlide))
	if !ok {
		return
	}
	if slide.Kind != itdb.SlideRegular {
		t.st.ChannelVolume = clamp(t.st.ChannelVolume+slide.Delta, 0, 64)
		t.syncVolume()
		return
	}
	t.st.ChannelVolume = clamp(t.st.ChannelVolume+slide.Delta*(t.ticks-1), 0, 64)
	t.fadeVolume()
}

func (t *rowTranslator) panSlide(arg uint8) {
	slide, ok := t.decodeSlide('P', slideMemory(arg, &t.st.LastPanSlide))
	if !ok {
		return
	}
	// Px0 moves the sound to the left.
	if slide.Kind != itdb.SlideRegular {
		t.st.Pan = clamp(t.st.Pan-slide.Delta, 0, 64)
		t.syncPan()
		return
	}
	t.st.Pan = clamp(t.st.Pan-slide.Delta*(t.ticks-1), 0, 64)
	p := enginePan(t.st.Pan)
	if int(p) == t.st.emittedPan {
		return
	}
	t.emit(engine.NewVcmd(engine.VcmdPanFade, clampTicks(t.ticks), p))
	t.st.emittedPan = int(p)
}

func (t *rowTranslator) globalVolumeSlide(arg uint8) {
	song := &t.c.state
	slide, ok := t.decodeSlide('W', slideMemory(arg, &song.lastGlobalVolumeSlide))
	if !ok {
		return
	}
	if slide.Kind != itdb.SlideRegular {
		song.globalVolume = clamp(song.globalVolume+slide.Delta, 0, 128)
		t.emit(engine.NewVcmd(engine.VcmdGlobalVolume, globalVolume(song.globalVolume)))
		return
	}
	song.globalVolume = clamp(song.globalVolume+slide.Delta*(t.ticks-1), 0, 128)
	t.emit(engine.NewVcmd(engine.VcmdGlobalVolumeFade, clampTicks(t.ticks), globalVolume(song.globalVolume)))
}

func (t *rowTranslator) tempo(arg uint8) {
	song := &t.c.state
	if arg >= 0x20 {
		song.bpm = int(arg)
		t.emit(engine.NewVcmd(engine.VcmdTempo, engineTempo(song.bpm)))
		return
	}
	arg = slideMemory(arg, &song.lastTempoSlide)
	delta := int(arg & 0x0F)
	if delta == 0 || t.ticks <= 1 {
		return
	}
	if arg>>4 == 0 {
		delta = -delta
	}
	song.bpm = clamp(song.bpm+delta*(t.ticks-1), minTempo, maxTempo)
	t.emit(engine.NewVcmd(engine.VcmdTempoFade, clampTicks(t.ticks), engineTempo(song.bpm)))
}

func (t *rowTranslator) setEcho(on bool) {
	song := &t.c.state
	bit := uint8(1) << t.ch
	mask := song.echoMask &^ bit
	if on {
		mask |= bit
	}
	if mask == song.echoMask {
		return
	}
	song.echoMask = mask
	if mask == 0 {
		t.emit(engine.NewVcmd(engine.VcmdEchoOff))
		return
	}
	echo := t.c.desc.Echo
	if !song.echoConfigured {
		t.emit(engine.NewVcmd(engine.VcmdEchoParams, echo.Delay, echo.Feedback, echo.FIR))
		song.echoConfigured = true
	}
	vol := echo.Volume
	if t.c.opts.EchoVolume != 0 {
		vol = t.c.opts.EchoVolume
	}
	t.emit(engine.NewVcmd(engine.VcmdEchoOn, mask, vol, vol))
}

// modulate turns on a continuous effect unless it's already running
// with the same parameters.
func (t *rowTranslator) modulate(m *modulation, args [3]uint8, on, off engine.Vcmd) {
	m.row = true
	if args[2] == 0 && on.Op != engine.VcmdExtension {
		// Zero depth.
		if m.On {
			t.emit(off)
			m.On = false
		}
		return
	}
	if m.On && m.Args == args {
		return
	}
	m.On = true
	m.Args = args
	t.emit(on)
}

func (t *rowTranslator) vibrato(arg uint8, depthScale uint8) {
	arg = nibbleMemory(arg, &t.st.LastVibrato)
	args := [3]uint8{0, (arg >> 4) * 4, (arg & 0x0F) * depthScale}
	t.modulate(&t.st.Vibrato, args,
		engine.NewVcmd(engine.VcmdVibratoOn, args[:]...),
		engine.NewVcmd(engine.VcmdVibratoOff))
}

func (t *rowTranslator) tremolo(arg uint8) {
	arg = nibbleMemory(arg, &t.st.LastTremolo)
	args := [3]uint8{0, (arg >> 4) * 4, (arg & 0x0F) * 16}
	t.modulate(&t.st.Tremolo, args,
		engine.NewVcmd(engine.VcmdTremoloOn, args[:]...),
		engine.NewVcmd(engine.VcmdTremoloOff))
}

func (t *rowTranslator) arpeggio(arg uint8) {
	if !t.c.hasArpeggio {
		t.c.warnings.addf("effect J needs an arpeggio engine extension, dropped")
		return
	}
	arg = slideMemory(arg, &t.st.LastArpeggio)
	if arg == 0 {
		return
	}
	t.c.usedExtensions[t.c.arpeggioExt] = true
	t.modulate(&t.st.Arpeggio, [3]uint8{arg},
		engine.NewExtensionVcmd(t.c.arpeggio, arg),
		engine.NewExtensionVcmd(t.c.arpeggio, 0))
}

func (t *rowTranslator) portamento(e itdb.Effect) {
	arg := slideMemory(e.Arg, &t.st.LastPortamento)
	if arg == 0 {
		return
	}
	units, kind := itdb.DecodePortamento(arg)
	if kind == itdb.SlideRegular {
		units *= t.ticks - 1
	} else {
		t.pitchFine = true
	}
	if e.Op == itdb.EffectPortamentoDown {
		units = -units
	}
	t.pitchUnits += units
}

func (t *rowTranslator) tonePortamento(e itdb.Effect) {
	t.tonePorta = true
	if e.VolumeColumn {
		t.tonePortaTicks = t.ticks
	}
	t.tonePortaSpeed = slideMemory(e.Arg, &t.st.LastTonePortamento)
}

// applyNote selects the main timed event of the row.
func (t *rowTranslator) applyNote() {
	st := &t.st
	t.segs = []segment{{kind: t.before, ticks: t.ticks}}
	if !t.cell.Mask.Contains(itfile.CellHasNote) {
		return
	}
	if t.noteDelay >= t.ticks {
		// The delayed note is never played: the channel keeps its state.
		return
	}

	n := t.cell.Note
	switch {
	case n == itfile.NoteCut:
		t.segs[0].kind = engine.EventRest
		st.Note = -1
		return
	case itfile.IsNoteOff(n):
		if info := t.instrument(); info != nil && info.keyOffReleases {
			t.segs[0].kind = engine.EventRest
			st.Note = -1
		}
		return
	case n > itfile.MaxNote:
		return
	}

	note, shifted := engineNote(n)
	if shifted {
		t.c.warnings.addf("note %d is out of the engine range, moved by octaves", n)
	}

	if t.tonePorta && st.playing() && !st.ForceRetrigger {
		ticks := t.tonePortaTicks
		if ticks == 0 {
			dist := abs(int(note) - st.Note)
			ticks = 1
			if t.tonePortaSpeed != 0 {
				ticks = ceilDiv(dist*16, int(t.tonePortaSpeed))
			}
		}
		if int(note) != st.Note {
			t.emitPost(engine.NewVcmd(engine.VcmdPitchSlide, 0, clampTicks(ticks), 0x80+note))
		}
		st.Note = int(note)
		st.PitchRemainder = 0
		return
	}

	if st.Instrument == -1 {
		t.c.warnings.addf("channel %d: a note without an instrument is ignored", t.ch+1)
		return
	}

	// A plain note stops the modulations that are not continued on its row.
	if st.Vibrato.On && !st.Vibrato.row {
		t.emit(engine.NewVcmd(engine.VcmdVibratoOff))
		st.Vibrato.On = false
	}
	if st.Tremolo.On && !st.Tremolo.row {
		t.emit(engine.NewVcmd(engine.VcmdTremoloOff))
		st.Tremolo.On = false
	}
	if st.Arpeggio.On && !st.Arpeggio.row {
		t.emit(engine.NewExtensionVcmd(t.c.arpeggio, 0))
		st.Arpeggio.On = false
	}

	t.segs[0] = segment{kind: engine.EventNote, value: note, ticks: t.ticks}
	st.Note = int(note)
	st.PitchRemainder = 0
	st.ForceRetrigger = false
}

// applyPitchSlide turns the accumulated portamento into whole semitone slides.
func (t *rowTranslator) applyPitchSlide() {
	st := &t.st
	if t.pitchUnits == 0 || !st.playing() {
		return
	}
	st.PitchRemainder += t.pitchUnits
	semitones := st.PitchRemainder / 64
	if semitones == 0 {
		return
	}
	st.PitchRemainder -= semitones * 64
	target := clamp(st.Note+semitones, 0, engine.MaxNote)
	if target == st.Note {
		return
	}
	ticks := t.ticks
	if t.pitchFine {
		ticks = 1
	}
	t.emitPost(engine.NewVcmd(engine.VcmdPitchSlide, 0, clampTicks(ticks), 0x80+uint8(target)))
	st.Note = target
	st.ForceRetrigger = true
}

// splitRow applies the note cut and the note delay.
func (t *rowTranslator) splitRow() []segment {
	main := t.segs[0]
	switch {
	case t.noteDelay > 0 && t.cell.Mask.Contains(itfile.CellHasNote):
		if t.noteDelay >= t.ticks {
			return t.segs
		}
		return []segment{
			{kind: t.before, ticks: t.noteDelay},
			{kind: main.kind, value: main.value, ticks: t.ticks - t.noteDelay},
		}

	case t.noteCut != -1:
		at := t.noteCut
		if at == 0 {
			at = 1
		}
		if at >= t.ticks {
			return t.segs
		}
		t.st.Note = -1
		return []segment{
			{kind: main.kind, value: main.value, ticks: at},
			{kind: engine.EventRest, ticks: t.ticks - at},
		}
	}
	return t.segs
}

// appendTimed emits a duration and a timed event.
// Segments longer than the engine limit are continued with ties.
func (t *rowTranslator) appendTimed(events []engine.Event, seg segment) []engine.Event {
	kind, value := seg.kind, seg.value
	for ticks := seg.ticks; ticks > 0; {
		n := ticks
		if n > engine.MaxDuration {
			n = engine.MaxDuration
		}
		events = append(events, t.c.event(engine.EventDuration, uint8(n)), t.c.event(kind, value))
		ticks -= n
		if kind != engine.EventRest {
			kind, value = engine.EventTie, 0
		}
	}
	return events
}
