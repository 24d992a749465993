package itspc

// TrackState is a per-channel translation state.
//
// It's created once per channel and passed from one pattern to
// another in the play order: the effect memory and the sound
// parameters outlive the pattern boundaries.
type TrackState struct {
	// Instrument is a selected instrument ID; -1 if none.
	Instrument int

	// Note is the engine note that is ringing now; -1 if the voice is silent.
	Note int

	Volume        int // 0-64
	ChannelVolume int // 0-64
	Pan           int // 0-64

	// Last emitted engine values; -1 means "unknown".
	emittedVolume int
	emittedPan    int

	// Zero-argument effects reuse these.
	LastVolumeSlide        uint8 // D, K, L
	LastChannelVolumeSlide uint8
	LastPanSlide           uint8
	LastPortamento         uint8 // E, F
	LastTonePortamento     uint8
	LastVibrato            uint8
	LastTremolo            uint8
	LastArpeggio           uint8

	// PitchRemainder accumulates the 1/64 semitone slide units
	// until they make a whole semitone.
	PitchRemainder int

	// ForceRetrigger makes the next note attack even if a tone
	// portamento asks to slide into it.
	ForceRetrigger bool

	Vibrato  modulation
	Tremolo  modulation
	Arpeggio modulation

	// Modulations that have to be disabled at the start of the
	// next pattern of this channel.
	PendingBoundaryVibratoOff  bool
	PendingBoundaryTremoloOff  bool
	PendingBoundaryArpeggioOff bool
}

// modulation is a continuous effect state, like a vibrato.
type modulation struct {
	On   bool
	Args [3]uint8

	// row reports whether the last translated row had this effect.
	row bool
}

func newTrackState(chanVol, pan int) TrackState {
	return TrackState{
		Instrument:    -1,
		Note:          -1,
		Volume:        64,
		ChannelVolume: chanVol,
		Pan:           pan,
		emittedVolume: -1,
		emittedPan:    -1,
	}
}

func (st *TrackState) playing() bool { return st.Note != -1 }

// endPattern marks the modulations that should not survive the pattern boundary.
func (st *TrackState) endPattern() {
	if st.Vibrato.On && !st.Vibrato.row {
		st.PendingBoundaryVibratoOff = true
	}
	if st.Tremolo.On && !st.Tremolo.row {
		st.PendingBoundaryTremoloOff = true
	}
	if st.Arpeggio.On && !st.Arpeggio.row {
		st.PendingBoundaryArpeggioOff = true
	}
}

// songState is shared by all channels.
type songState struct {
	bpm          int
	globalVolume int // 0-128

	lastTempoSlide        uint8
	lastGlobalVolumeSlide uint8

	echoMask       uint8
	echoConfigured bool
}
