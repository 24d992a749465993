// Package preview renders project instruments into PCM, so the converted
// samples can be auditioned without the sound engine.
package preview

import (
	"io"
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/quasilyte/itspc/brr"
	"github.com/quasilyte/itspc/project"
)

// dspRate is the S-DSP output rate; a pitch of 0x1000 plays
// a sample at this rate.
const dspRate = 32000

// referenceNote is the engine note that plays an instrument at its tuning.
const referenceNote = 36

// Synthesizer plays individual notes with the project instruments.
//
// The Read() method produces 16-bit little endian stereo PCM bytes;
// this is what ebiten/audio package expects.
//
// It's safe to call PlayNote while another goroutine reads the PCM data.
type Synthesizer struct {
	mu sync.Mutex

	project *project.Project

	samples map[int]*decodedSample

	sampleRate     float64
	framesPerTick  int
	bytesPerTick   int
	framesTotal    int
	framesRemain   int
	bytePos        int // Used to report the current pos via Seek()
	t              float64
	notes          []Note
	channels       []voice
	activeChannels []*voice

	settings settings
}

type settings struct {
	volumeScaling float64
	eventHandler  func(e Event)
}

// Config configures the synthesizer.
type Config struct {
	// NumChannels limits the number of notes played at once.
	// A zero value means 8, the number of DSP voices.
	NumChannels int

	// The sound device sample rate.
	// A zero value will assume a sample rate of 44100.
	SampleRate uint
}

// Note describes a single note to play.
type Note struct {
	// Instrument is a project instrument ID.
	Instrument int

	// Note is an engine note, 36 is C-5 of the source module.
	Note uint8

	// Volume is an engine voice volume in [0, 255].
	Volume uint8

	// Pan is an engine pan value in [0, 20]; 10 is the center
	// and 0 is the rightmost position.
	Pan uint8
}

type decodedSample struct {
	pcm []int16

	// loopStart is -1 for one-shot samples.
	loopStart int
}

// NewSynthesizer creates a synthesizer for the project instruments.
//
// The project should not be modified while it's being used
// by the synthesizer: decoded samples are cached.
func NewSynthesizer(p *project.Project, config Config) *Synthesizer {
	if config.NumChannels <= 0 {
		config.NumChannels = 8
	}
	if config.SampleRate == 0 {
		config.SampleRate = 44100
	}
	s := &Synthesizer{
		project:        p,
		samples:        make(map[int]*decodedSample),
		sampleRate:     float64(config.SampleRate),
		channels:       make([]voice, config.NumChannels),
		activeChannels: make([]*voice, 0, config.NumChannels),
		settings: settings{
			volumeScaling: 0.8,
		},
	}
	// A tick is about 5ms of audio.
	s.framesPerTick = int(config.SampleRate)/200 + 1
	s.bytesPerTick = s.framesPerTick * bytesPerFrame
	for i := range s.channels {
		s.channels[i].id = i
	}
	return s
}

// SetEventHandler installs an event listener to the synthesizer.
//
// f is called on every synthesizer event.
func (s *Synthesizer) SetEventHandler(f func(e Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.eventHandler = f
}

// SetVolume adjusts the global volume scaling.
// The default value is 0.8; a value of 0 disables the sound.
// The value is clamped in [0, 1].
func (s *Synthesizer) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.volumeScaling = math.Max(0, math.Min(v, 1))
}

// BytesPerTick tells how much bytes the synthesizer needs to fit a single tick.
// Read() does nothing with a smaller slice.
func (s *Synthesizer) BytesPerTick() int { return s.bytesPerTick }

// PlayNote plays one or more notes up to the specified duration (in seconds).
// Using 0 for the duration will play it for several seconds.
//
// Notes above the channel limit are ignored.
func (s *Synthesizer) PlayNote(duration float64, notes ...Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(notes) > len(s.channels) {
		notes = notes[:len(s.channels)]
	}
	for _, n := range notes {
		if _, err := s.loadSample(n.Instrument); err != nil {
			return err
		}
	}

	if duration <= 0 {
		duration = 2
	}
	s.framesTotal = int(math.Round(duration * s.sampleRate))
	s.notes = append(s.notes[:0], notes...)
	s.rewind()
	return nil
}

func (s *Synthesizer) loadSample(instrumentID int) (*decodedSample, error) {
	inst, ok := s.project.Instrument(instrumentID)
	if !ok {
		return nil, errors.Errorf("instrument %d does not exist", instrumentID)
	}
	if decoded, ok := s.samples[inst.SampleID]; ok {
		return decoded, nil
	}
	sample, ok := s.project.Sample(inst.SampleID)
	if !ok {
		return nil, errors.Errorf("instrument %d: sample %d does not exist", instrumentID, inst.SampleID)
	}
	pcm, err := brr.Decode(sample.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode sample %d", inst.SampleID)
	}
	decoded := &decodedSample{pcm: pcm, loopStart: -1}
	if brr.IsLooped(sample.Data) {
		decoded.loopStart = sample.LoopOffset / brr.BlockSize * brr.SamplesPerBlock
		if decoded.loopStart >= len(pcm) {
			decoded.loopStart = 0
		}
	}
	s.samples[inst.SampleID] = decoded
	return decoded, nil
}

// Seek partially implements io.Seeker.
//
// You can use it for two things:
//  1. (0, SeekStart) for rewind
//  2. (0, SeekCurrent) to get the byte pos inside the stream
func (s *Synthesizer) Seek(offset int64, whence int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch whence {
	case io.SeekStart:
		if offset == 0 {
			s.syncAndRewind()
			return 0, nil
		}

	case io.SeekCurrent:
		if offset == 0 {
			return int64(s.bytePos), nil
		}
	}

	return 0, errors.New("unsupported Seek call")
}

// Read puts next PCM bytes into provided slice.
//
// Only whole ticks are written, see BytesPerTick().
// When all notes are finished, io.EOF error is returned.
func (s *Synthesizer) Read(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	eof := false

	for len(b) >= s.bytesPerTick {
		if s.framesRemain == 0 {
			eof = true
			break
		}
		n := s.readTick(b[:s.bytesPerTick])
		written += n
		b = b[n:]
	}

	s.bytePos += written
	if eof {
		return written, io.EOF
	}
	return written, nil
}

// Rewind restarts the last played notes.
func (s *Synthesizer) Rewind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncAndRewind()
}

func (s *Synthesizer) syncAndRewind() {
	if s.settings.eventHandler != nil {
		s.settings.eventHandler(Event{
			Kind: EventSync,
			Time: s.t,
		})
	}
	s.rewind()
}

func (s *Synthesizer) rewind() {
	s.framesRemain = s.framesTotal
	s.bytePos = 0
	s.t = 0
	s.activeChannels = s.activeChannels[:0]
	for i := range s.channels {
		s.channels[i].Reset()
	}

	for i, n := range s.notes {
		ch := &s.channels[i]
		inst, _ := s.project.Instrument(n.Instrument)
		sample, err := s.loadSample(n.Instrument)
		if err != nil {
			// The project was modified after PlayNote.
			continue
		}
		ch.sample = sample
		ch.step = notePitch(n.Note, inst.Tuning) / s.sampleRate
		ch.volume = noteVolume(n.Volume, n.Pan)
		s.activeChannels = append(s.activeChannels, ch)

		if s.settings.eventHandler != nil {
			s.settings.eventHandler(Event{
				Kind:    EventNote,
				Channel: ch.id,
				Time:    s.t,
				value:   packNoteEvent(n),
			})
		}
	}
}

func (s *Synthesizer) readTick(b []byte) int {
	frames := s.framesPerTick
	if frames > s.framesRemain {
		frames = s.framesRemain
	}

	// The last frames fade out to avoid a click.
	const rampFrames = 256
	scaling := 0.25 * s.settings.volumeScaling
	for i := 0; i < frames; i++ {
		gain := scaling
		if remain := s.framesRemain - i; remain < rampFrames {
			gain *= float64(remain) / rampFrames
		}
		left := 0.0
		right := 0.0
		for _, ch := range s.activeChannels {
			v := ch.NextSample()
			left += v * ch.volume[0]
			right += v * ch.volume[1]
		}
		putPCM(b[i*bytesPerFrame:], clampPCM(left*gain), clampPCM(right*gain))
	}

	s.framesRemain -= frames
	s.t += float64(frames) / s.sampleRate

	live := s.activeChannels[:0]
	for _, ch := range s.activeChannels {
		if ch.IsActive() {
			live = append(live, ch)
		}
	}
	s.activeChannels = live

	return frames * bytesPerFrame
}

// notePitch returns the sample playback rate in Hz.
func notePitch(note uint8, tuning uint16) float64 {
	return dspRate * float64(tuning) / 256 * math.Pow(2, float64(int(note)-referenceNote)/12)
}

// noteVolume returns the left and right channel gains.
func noteVolume(volume, pan uint8) [2]float64 {
	v := float64(volume) / 255
	v *= v
	p := math.Min(float64(pan), 20) / 20
	return [2]float64{v * math.Sqrt(p), v * math.Sqrt(1-p)}
}
