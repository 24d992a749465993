// Package project models the sound engine memory image: the instruments,
// the samples and the songs placed into the ARAM.
package project

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/pkg/errors"

	"github.com/quasilyte/itspc/aram"
	"github.com/quasilyte/itspc/engine"
)

var (
	ErrNoSuchInstrument    = errors.New("no such instrument")
	ErrNoSuchSample        = errors.New("no such sample")
	ErrSampleInUse         = errors.New("sample is used by an instrument")
	ErrTooManyInstruments  = errors.New("too many instruments")
	ErrTooManySamples      = errors.New("too many samples")
	ErrTooManySongs        = errors.New("too many songs")
	ErrSongIndexOutOfRange = errors.New("song index is out of range")
)

type Instrument struct {
	Name     string
	SampleID int

	ADSR1 uint8
	ADSR2 uint8
	Gain  uint8

	// Tuning is an 8.8 fixed point pitch multiplier.
	Tuning uint16
}

// Entry returns the instrument table record.
// Bytes past the standard 6 are zero.
func (inst *Instrument) Entry(size int) []byte {
	entry := make([]byte, size)
	entry[0] = uint8(inst.SampleID)
	entry[1] = inst.ADSR1
	entry[2] = inst.ADSR2
	entry[3] = inst.Gain
	entry[4] = uint8(inst.Tuning >> 8)
	entry[5] = uint8(inst.Tuning)
	return entry
}

type Sample struct {
	Name       string
	Data       []byte
	LoopOffset int
}

// Hash identifies the sample contents.
func (s *Sample) Hash() uint64 {
	h := fnv.New64a()
	h.Write(s.Data)
	var loop [4]byte
	binary.LittleEndian.PutUint32(loop[:], uint32(s.LoopOffset))
	h.Write(loop[:])
	return h.Sum64()
}

// Project is a complete sound engine memory image description.
//
// Instruments and samples are addressed by their table index.
// Songs are addressed by their song table index.
type Project struct {
	Descriptor *engine.Descriptor

	instruments []*Instrument
	samples     []*Sample
	songs       []*engine.Song

	aram *aram.Allocator
}

// New creates an empty project for the engine.
func New(desc *engine.Descriptor) (*Project, error) {
	p := &Project{
		Descriptor:  desc,
		instruments: make([]*Instrument, desc.MaxInstruments),
		samples:     make([]*Sample, desc.MaxSamples),
		aram:        aram.NewAllocator(),
	}
	for _, r := range desc.Reserved {
		if err := p.aram.Reserve(r.From, r.To, aram.KindReserved, r.Label); err != nil {
			return nil, err
		}
	}
	// The tables are blocked even if they're empty.
	for _, r := range desc.Tables() {
		if err := p.aram.Reserve(r.From, r.To, aram.KindTable, r.Label); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Clone returns a deep copy of the project.
// The descriptor is shared, it's never modified.
func (p *Project) Clone() *Project {
	cloned := &Project{
		Descriptor:  p.Descriptor,
		instruments: make([]*Instrument, len(p.instruments)),
		samples:     make([]*Sample, len(p.samples)),
		songs:       make([]*engine.Song, len(p.songs)),
		aram:        p.aram.Clone(),
	}
	for i, inst := range p.instruments {
		if inst != nil {
			copied := *inst
			cloned.instruments[i] = &copied
		}
	}
	for i, s := range p.samples {
		if s != nil {
			copied := *s
			copied.Data = append([]byte(nil), s.Data...)
			cloned.samples[i] = &copied
		}
	}
	for i, s := range p.songs {
		cloned.songs[i] = s.Clone()
	}
	return cloned
}

func (p *Project) Instrument(id int) (*Instrument, bool) {
	if id < 0 || id >= len(p.instruments) || p.instruments[id] == nil {
		return nil, false
	}
	return p.instruments[id], true
}

func (p *Project) Sample(id int) (*Sample, bool) {
	if id < 0 || id >= len(p.samples) || p.samples[id] == nil {
		return nil, false
	}
	return p.samples[id], true
}

func (p *Project) Song(index int) (*engine.Song, bool) {
	if index < 0 || index >= len(p.songs) {
		return nil, false
	}
	return p.songs[index], true
}

func (p *Project) NumInstruments() int { return countNonNil(p.instruments) }

func (p *Project) NumSamples() int { return countNonNil(p.samples) }

func (p *Project) NumSongs() int { return len(p.songs) }

// InstrumentIDs returns the used instrument IDs in ascending order.
func (p *Project) InstrumentIDs() []int { return nonNilIndexes(p.instruments) }

// SampleIDs returns the used sample IDs in ascending order.
func (p *Project) SampleIDs() []int { return nonNilIndexes(p.samples) }

// FreeBytes reports the amount of the unused ARAM.
func (p *Project) FreeBytes() int { return p.aram.FreeBytes() }

// Regions returns the ARAM usage map.
func (p *Project) Regions() []aram.Region { return p.aram.Regions() }

// SampleRegion returns the ARAM range of the sample data.
func (p *Project) SampleRegion(id int) (aram.Region, bool) {
	return p.aram.Find(aram.KindSample, id)
}

// SongRegion returns the ARAM range of the song data.
func (p *Project) SongRegion(index int) (aram.Region, bool) {
	return p.aram.Find(aram.KindSong, index)
}

// AddInstrument stores the instrument in the lowest free slot.
func (p *Project) AddInstrument(inst Instrument) (int, error) {
	if _, ok := p.Sample(inst.SampleID); !ok {
		return 0, errors.Wrapf(ErrNoSuchSample, "instrument %q: sample %d", inst.Name, inst.SampleID)
	}
	id := firstNil(p.instruments)
	if id == -1 {
		return 0, errors.WithStack(ErrTooManyInstruments)
	}
	p.instruments[id] = &inst
	return id, nil
}

// SetInstrument overwrites an existing instrument.
func (p *Project) SetInstrument(id int, inst Instrument) error {
	if _, ok := p.Instrument(id); !ok {
		return errors.Wrapf(ErrNoSuchInstrument, "instrument %d", id)
	}
	if _, ok := p.Sample(inst.SampleID); !ok {
		return errors.Wrapf(ErrNoSuchSample, "instrument %d: sample %d", id, inst.SampleID)
	}
	p.instruments[id] = &inst
	return nil
}

func (p *Project) DeleteInstrument(id int) error {
	if _, ok := p.Instrument(id); !ok {
		return errors.Wrapf(ErrNoSuchInstrument, "delete instrument %d", id)
	}
	p.instruments[id] = nil
	return nil
}

// AddSample places the sample data into the ARAM.
func (p *Project) AddSample(s Sample) (int, error) {
	id := firstNil(p.samples)
	if id == -1 {
		return 0, errors.WithStack(ErrTooManySamples)
	}
	if err := p.placeSample(id, &s, nil); err != nil {
		return 0, err
	}
	return id, nil
}

// ReplaceSample overwrites the sample data.
// The new data may be placed over the old data range.
func (p *Project) ReplaceSample(id int, s Sample) error {
	if _, ok := p.Sample(id); !ok {
		return errors.Wrapf(ErrNoSuchSample, "replace sample %d", id)
	}
	old, _ := p.aram.Find(aram.KindSample, id)
	return p.placeSample(id, &s, &old)
}

func (p *Project) placeSample(id int, s *Sample, replacing *aram.Region) error {
	if len(s.Data) == 0 {
		return errors.Errorf("sample %q has no data", s.Name)
	}
	_, err := p.aram.Allocate(aram.AllocRequest{
		Size:      len(s.Data),
		Kind:      aram.KindSample,
		ObjectID:  id,
		Label:     fmt.Sprintf("sample %d %s", id, s.Name),
		Replacing: replacing,
	})
	if err != nil {
		return err
	}
	p.samples[id] = s
	return nil
}

// DeleteSample frees the sample and its ARAM.
// A sample that is still used by an instrument can't be deleted.
func (p *Project) DeleteSample(id int) error {
	if _, ok := p.Sample(id); !ok {
		return errors.Wrapf(ErrNoSuchSample, "delete sample %d", id)
	}
	for instID, inst := range p.instruments {
		if inst != nil && inst.SampleID == id {
			return errors.Wrapf(ErrSampleInUse, "delete sample %d: instrument %d", id, instID)
		}
	}
	p.aram.Release(aram.KindSample, id)
	p.samples[id] = nil
	return nil
}

// FindSample returns the ID of a sample with identical contents.
func (p *Project) FindSample(hash uint64) (int, bool) {
	for id, s := range p.samples {
		if s != nil && s.Hash() == hash {
			return id, true
		}
	}
	return 0, false
}

// SetSong stores the song at the given song table index.
// An index equal to the number of songs appends a new song.
func (p *Project) SetSong(index int, s *engine.Song) error {
	if index < 0 || index > len(p.songs) {
		return errors.Wrapf(ErrSongIndexOutOfRange, "song %d (have %d)", index, len(p.songs))
	}
	if index == len(p.songs) && index >= p.Descriptor.MaxSongs {
		return errors.WithStack(ErrTooManySongs)
	}
	size, err := engine.EncodedSongSize(s)
	if err != nil {
		return errors.Wrapf(err, "song %d", index)
	}
	var replacing *aram.Region
	if old, ok := p.aram.Find(aram.KindSong, index); ok {
		replacing = &old
	}
	_, err = p.aram.Allocate(aram.AllocRequest{
		Size:      size,
		Kind:      aram.KindSong,
		ObjectID:  index,
		Label:     fmt.Sprintf("song %d %s", index, s.Name),
		Replacing: replacing,
	})
	if err != nil {
		return err
	}
	if index == len(p.songs) {
		p.songs = append(p.songs, s)
	} else {
		p.songs[index] = s
	}
	return nil
}

// Build renders the 64KB ARAM image.
//
// Reserved ranges (like the engine code) are left zeroed.
func (p *Project) Build() ([]byte, error) {
	image := make([]byte, aram.Size)
	desc := p.Descriptor

	for i := range p.songs {
		r, ok := p.aram.Find(aram.KindSong, i)
		if !ok {
			return nil, errors.Errorf("song %d is not allocated", i)
		}
		data, err := engine.EncodeSong(p.songs[i], uint16(r.From))
		if err != nil {
			return nil, errors.Wrapf(err, "encode song %d", i)
		}
		if len(data) != r.Size() {
			return nil, errors.Errorf("song %d: encoded size %d does not match the allocation %d", i, len(data), r.Size())
		}
		copy(image[r.From:], data)
		binary.LittleEndian.PutUint16(image[desc.SongTable+i*2:], uint16(r.From))
	}

	for id, inst := range p.instruments {
		if inst == nil {
			continue
		}
		copy(image[desc.InstrumentTable+id*desc.InstrumentEntrySize:], inst.Entry(desc.InstrumentEntrySize))
	}

	for id, s := range p.samples {
		if s == nil {
			continue
		}
		r, ok := p.aram.Find(aram.KindSample, id)
		if !ok {
			return nil, errors.Errorf("sample %d is not allocated", id)
		}
		copy(image[r.From:], s.Data)
		dir := desc.SampleDirectory + id*4
		binary.LittleEndian.PutUint16(image[dir:], uint16(r.From))
		binary.LittleEndian.PutUint16(image[dir+2:], uint16(r.From+s.LoopOffset))
	}

	return image, nil
}

func countNonNil[T any](list []*T) int {
	n := 0
	for _, x := range list {
		if x != nil {
			n++
		}
	}
	return n
}

func nonNilIndexes[T any](list []*T) []int {
	var indexes []int
	for i, x := range list {
		if x != nil {
			indexes = append(indexes, i)
		}
	}
	return indexes
}

func firstNil[T any](list []*T) int {
	for i, x := range list {
		if x == nil {
			return i
		}
	}
	return -1
}
