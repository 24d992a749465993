package itspc

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/quasilyte/itspc/engine"
	"github.com/quasilyte/itspc/itfile"
)

// instrumentInfo is what the translator needs to know about an imported instrument.
type instrumentInfo struct {
	globalVolume       int // 0-128
	sampleGlobalVolume int // 0-64
	sampleVolume       int // 0-64
	defaultPan         int // -1 if not set
	keyOffReleases     bool
}

type songCompiler struct {
	module   *itfile.Module
	desc     *engine.Descriptor
	opts     *Options
	warnings *warningList

	// instruments are keyed by the song instrument IDs.
	instruments map[int]*instrumentInfo

	arpeggio    engine.ExtensionCommand
	arpeggioExt string
	hasArpeggio bool

	usedExtensions map[string]bool

	song   *engine.Song
	state  songState
	states [engine.NumChannels]TrackState

	usedChannels [engine.NumChannels]bool

	// anchors are the tracks of the first played pattern.
	anchors map[int]bool

	// silentStart marks the tracks that begin with a silent voice.
	silentStart map[int]bool
}

type compiledSong struct {
	song           *engine.Song
	loop           int
	usedExtensions []string
}

func newSongCompiler(m *itfile.Module, desc *engine.Descriptor, opts *Options, instruments map[int]*instrumentInfo, warnings *warningList) *songCompiler {
	c := &songCompiler{
		module:         m,
		desc:           desc,
		opts:           opts,
		warnings:       warnings,
		instruments:    instruments,
		usedExtensions: make(map[string]bool),
		song:           &engine.Song{Name: m.Name},
		anchors:        make(map[int]bool),
		silentStart:    make(map[int]bool),
		state: songState{
			bpm:          clamp(m.InitialTempo, minTempo, maxTempo),
			globalVolume: m.GlobalVolume,
		},
	}
	if ext, ok := desc.FindExtension("arpeggio"); ok {
		if cmd, ok := ext.Command("arpeggio"); ok && cmd.Params == 1 {
			c.arpeggio = cmd
			c.arpeggioExt = ext.Name
			c.hasArpeggio = true
		}
	}
	for ch := range c.states {
		pan := int(m.ChannelPan[ch] & 0x7F)
		if pan > 64 {
			pan = 32 // surround
		}
		c.states[ch] = newTrackState(clamp(int(m.ChannelVolume[ch]), 0, 64), pan)
	}
	return c
}

func (c *songCompiler) compile(played []playedPattern, loop int) (*compiledSong, error) {
	c.markUsedChannels(played)

	for i := range played {
		c.translatePattern(i, &played[i])
	}

	for i := range c.song.Tracks {
		c.song.Tracks[i].Events = postProcessTrack(c.song.Tracks[i].Events)
	}
	c.pruneSilentTracks()
	if err := c.dedupTracks(); err != nil {
		return nil, err
	}
	sequencePatterns := c.dedupPatterns()

	for _, p := range sequencePatterns {
		c.song.Sequence = append(c.song.Sequence, engine.SequenceEntry{
			Op:      engine.SequencePlayPattern,
			Pattern: p,
		})
	}
	if loop != -1 {
		c.song.Sequence = append(c.song.Sequence, engine.SequenceEntry{
			Op:     engine.SequenceAlwaysJump,
			Target: loop,
		})
	} else {
		c.song.Sequence = append(c.song.Sequence, engine.SequenceEntry{Op: engine.SequenceEnd})
	}

	result := &compiledSong{song: c.song, loop: loop}
	for name := range c.usedExtensions {
		result.usedExtensions = append(result.usedExtensions, name)
	}
	sort.Strings(result.usedExtensions)
	return result, nil
}

func (c *songCompiler) markUsedChannels(played []playedPattern) {
	c.usedChannels[0] = true
	for _, pp := range played {
		pat := &c.module.Patterns[pp.pattern]
		for _, rowIndex := range pp.timing.rows {
			for ch := 0; ch < engine.NumChannels; ch++ {
				if !pat.Rows[rowIndex][ch].IsEmpty() {
					c.usedChannels[ch] = true
				}
			}
		}
	}
}

func (c *songCompiler) event(kind engine.EventKind, value uint8) engine.Event {
	return engine.Event{ID: c.song.IDs.Next(), Kind: kind, Value: value}
}

func (c *songCompiler) vcmdEvent(v engine.Vcmd) engine.Event {
	return engine.Event{ID: c.song.IDs.Next(), Kind: engine.EventVcmd, Vcmd: v}
}

// translatePattern appends a new song pattern with 8 new tracks.
// The duplicates are removed later.
func (c *songCompiler) translatePattern(index int, pp *playedPattern) {
	pat := &c.module.Patterns[pp.pattern]
	anchor := index == 0

	c.checkExtraChannels(pp)

	var tracks [engine.NumChannels][]engine.Event
	var silent [engine.NumChannels]bool
	for ch := range tracks {
		st := &c.states[ch]
		silent[ch] = !st.playing()
		if anchor && c.usedChannels[ch] {
			tracks[ch] = c.startupCommands(ch, st)
		}
		tracks[ch] = c.boundaryOffs(tracks[ch], st)
	}

	for i, rowIndex := range pp.timing.rows {
		row := &pat.Rows[rowIndex]
		ticks := pp.timing.ticks[i]
		for ch := range tracks {
			var events []engine.Event
			events, c.states[ch] = c.translateCell(ch, row[ch], ticks, c.states[ch])
			tracks[ch] = append(tracks[ch], events...)
		}
	}

	target := engine.EmptyPattern()
	for ch := range tracks {
		c.states[ch].endPattern()
		trackIndex := len(c.song.Tracks)
		events := append(tracks[ch], c.event(engine.EventEnd, 0))
		c.song.Tracks = append(c.song.Tracks, engine.Track{Events: events})
		target[ch] = trackIndex
		if anchor {
			c.anchors[trackIndex] = true
		}
		if silent[ch] {
			c.silentStart[trackIndex] = true
		}
	}
	c.song.Patterns = append(c.song.Patterns, target)
}

func (c *songCompiler) checkExtraChannels(pp *playedPattern) {
	pat := &c.module.Patterns[pp.pattern]
	for _, rowIndex := range pp.timing.rows {
		row := &pat.Rows[rowIndex]
		for ch := engine.NumChannels; ch < len(row); ch++ {
			if !row[ch].IsEmpty() {
				c.warnings.addf("pattern %d: channels above %d are dropped", pp.pattern, engine.NumChannels)
				return
			}
		}
	}
}

// startupCommands initialize the channel at the song start.
// Channel 0 also sets up the song-wide parameters.
func (c *songCompiler) startupCommands(ch int, st *TrackState) []engine.Event {
	var events []engine.Event
	if ch == 0 {
		events = append(events,
			c.vcmdEvent(engine.NewVcmd(engine.VcmdTempo, engineTempo(c.state.bpm))),
			c.vcmdEvent(engine.NewVcmd(engine.VcmdGlobalVolume, globalVolume(c.state.globalVolume))))
	}
	pan := enginePan(st.Pan)
	vol := c.mappedVolume(st)
	events = append(events,
		c.vcmdEvent(engine.NewVcmd(engine.VcmdPan, pan)),
		c.vcmdEvent(engine.NewVcmd(engine.VcmdVolume, vol)))
	st.emittedPan = int(pan)
	st.emittedVolume = int(vol)
	return events
}

func (c *songCompiler) boundaryOffs(events []engine.Event, st *TrackState) []engine.Event {
	if st.PendingBoundaryVibratoOff {
		events = append(events, c.vcmdEvent(engine.NewVcmd(engine.VcmdVibratoOff)))
		st.Vibrato.On = false
		st.PendingBoundaryVibratoOff = false
	}
	if st.PendingBoundaryTremoloOff {
		events = append(events, c.vcmdEvent(engine.NewVcmd(engine.VcmdTremoloOff)))
		st.Tremolo.On = false
		st.PendingBoundaryTremoloOff = false
	}
	if st.PendingBoundaryArpeggioOff {
		events = append(events, c.vcmdEvent(engine.NewExtensionVcmd(c.arpeggio, 0)))
		st.Arpeggio.On = false
		st.PendingBoundaryArpeggioOff = false
	}
	return events
}

// mappedVolume returns the engine voice volume for the current state.
func (c *songCompiler) mappedVolume(st *TrackState) uint8 {
	sampleGV, instGV := 64, 128
	if info, ok := c.instruments[st.Instrument]; ok {
		sampleGV = info.sampleGlobalVolume
		instGV = info.globalVolume
	}
	return voiceVolume(st.Volume, st.ChannelVolume, sampleGV, instGV)
}

// pruneSilentTracks unsets the pattern slots of the tracks that never make a sound.
// Channel 0 drives the pattern length, so it's always kept.
func (c *songCompiler) pruneSilentTracks() {
	for i := range c.song.Patterns {
		p := &c.song.Patterns[i]
		for ch := 1; ch < engine.NumChannels; ch++ {
			t := p[ch]
			if t == engine.NoTrack || !c.silentStart[t] {
				continue
			}
			if isSilentTrack(&c.song.Tracks[t]) {
				p[ch] = engine.NoTrack
			}
		}
	}
}

// dedupTracks makes the patterns share the tracks with identical encodings.
// The setup anchors are never replaced.
func (c *songCompiler) dedupTracks() error {
	tracks := c.song.Tracks
	canonical := make(map[string]int)
	remap := make(map[int]int)
	for i := range c.song.Patterns {
		p := &c.song.Patterns[i]
		for ch, t := range p {
			if t == engine.NoTrack {
				continue
			}
			if c.anchors[t] {
				continue
			}
			data, err := engine.EncodeTrack(&tracks[t])
			if err != nil {
				return errors.Wrapf(err, "pattern %d channel %d", i, ch)
			}
			key := string(data)
			if first, ok := canonical[key]; ok {
				p[ch] = first
				continue
			}
			canonical[key] = t
		}
	}

	// Drop the unreferenced tracks.
	var compacted []engine.Track
	for i := range c.song.Patterns {
		p := &c.song.Patterns[i]
		for ch, t := range p {
			if t == engine.NoTrack {
				continue
			}
			newIndex, ok := remap[t]
			if !ok {
				newIndex = len(compacted)
				remap[t] = newIndex
				compacted = append(compacted, tracks[t])
			}
			p[ch] = newIndex
		}
	}
	c.song.Tracks = compacted
	return nil
}

// dedupPatterns merges the patterns with identical slots.
// It returns the pattern index for every played pattern.
func (c *songCompiler) dedupPatterns() []int {
	played := make([]int, len(c.song.Patterns))
	index := make(map[engine.Pattern]int)
	var patterns []engine.Pattern
	for i, p := range c.song.Patterns {
		if j, ok := index[p]; ok {
			played[i] = j
			continue
		}
		index[p] = len(patterns)
		played[i] = len(patterns)
		patterns = append(patterns, p)
	}
	c.song.Patterns = patterns
	return played
}
