package project

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/quasilyte/itspc/engine"
)

// SongBundle is a song with all assets it depends on.
//
// Instrument IDs inside the song events and the IDs of the bundle
// instruments share one ID space; the same goes for the samples.
type SongBundle struct {
	Song        *engine.Song
	Instruments []BundleInstrument
	Samples     []BundleSample
}

type BundleInstrument struct {
	ID int
	Instrument
}

type BundleSample struct {
	ID int
	Sample
}

func (b *SongBundle) instrument(id int) (*BundleInstrument, bool) {
	for i := range b.Instruments {
		if b.Instruments[i].ID == id {
			return &b.Instruments[i], true
		}
	}
	return nil, false
}

func (b *SongBundle) sample(id int) (*BundleSample, bool) {
	for i := range b.Samples {
		if b.Samples[i].ID == id {
			return &b.Samples[i], true
		}
	}
	return nil, false
}

// ExtractSong collects the song and the assets it uses.
// The bundle doesn't share any memory with the project.
func (p *Project) ExtractSong(index int) (*SongBundle, error) {
	song, ok := p.Song(index)
	if !ok {
		return nil, errors.Wrapf(ErrSongIndexOutOfRange, "extract song %d", index)
	}
	bundle := &SongBundle{Song: song.Clone()}
	seenSamples := make(map[int]bool)
	instIDs := song.UsedInstruments()
	sort.Ints(instIDs)
	for _, id := range instIDs {
		inst, ok := p.Instrument(id)
		if !ok {
			return nil, errors.Wrapf(ErrNoSuchInstrument, "song %d uses instrument %d", index, id)
		}
		bundle.Instruments = append(bundle.Instruments, BundleInstrument{ID: id, Instrument: *inst})
		if seenSamples[inst.SampleID] {
			continue
		}
		seenSamples[inst.SampleID] = true
		s, ok := p.Sample(inst.SampleID)
		if !ok {
			return nil, errors.Wrapf(ErrNoSuchSample, "instrument %d uses sample %d", id, inst.SampleID)
		}
		copied := *s
		copied.Data = append([]byte(nil), s.Data...)
		bundle.Samples = append(bundle.Samples, BundleSample{ID: inst.SampleID, Sample: copied})
	}
	sort.Slice(bundle.Samples, func(i, j int) bool {
		return bundle.Samples[i].ID < bundle.Samples[j].ID
	})
	return bundle, nil
}

type InstrumentAction int

const (
	// InstrumentCopy adds the bundle instrument to the target project.
	InstrumentCopy InstrumentAction = iota

	// InstrumentMapToExisting makes the song use a target project instrument.
	InstrumentMapToExisting
)

type SampleAction int

const (
	// SampleAllocateNew places the sample data into the target ARAM.
	// An identical target sample is reused instead.
	SampleAllocateNew SampleAction = iota

	// SampleReuseExisting points the copied instrument to a target sample.
	SampleReuseExisting

	// SampleReplace overwrites the target sample data.
	SampleReplace
)

// InstrumentMapping tells PortSong what to do with one bundle instrument.
// Instruments without a mapping are copied with a new sample.
type InstrumentMapping struct {
	SourceID int
	Action   InstrumentAction

	// TargetID is used by InstrumentMapToExisting.
	TargetID int

	SampleAction SampleAction

	// TargetSampleID is used by SampleReuseExisting and SampleReplace.
	TargetSampleID int
}

type SongPortRequest struct {
	Bundle *SongBundle

	// TargetIndex is the destination song table index.
	// -1 (or the current number of songs) appends the song.
	TargetIndex int

	Mappings []InstrumentMapping
}

type SongPortResult struct {
	SongIndex int

	// InstrumentMap maps the bundle instrument IDs to the target IDs.
	InstrumentMap map[int]int

	// SampleMap maps the bundle sample IDs to the target IDs.
	SampleMap map[int]int

	NewInstruments    int
	MappedInstruments int
	NewSamples        int
	ReusedSamples     int
	ReplacedSamples   int
}

type songPorter struct {
	target *Project
	bundle *SongBundle
	result *SongPortResult
}

// PortSong inserts the bundle song into a copy of the target project.
//
// The target project is never modified: on success, the new project is returned.
func PortSong(target *Project, req SongPortRequest) (*Project, *SongPortResult, error) {
	if req.Bundle == nil || req.Bundle.Song == nil {
		return nil, nil, errors.New("port song: empty bundle")
	}
	index := req.TargetIndex
	if index == -1 {
		index = target.NumSongs()
	}
	if index < 0 || index > target.NumSongs() {
		return nil, nil, errors.Wrapf(ErrSongIndexOutOfRange, "port song to %d (have %d songs)", req.TargetIndex, target.NumSongs())
	}

	porter := &songPorter{
		target: target.Clone(),
		bundle: req.Bundle,
		result: &SongPortResult{
			SongIndex:     index,
			InstrumentMap: make(map[int]int),
			SampleMap:     make(map[int]int),
		},
	}

	mappings := make(map[int]InstrumentMapping, len(req.Mappings))
	for _, m := range req.Mappings {
		if _, ok := req.Bundle.instrument(m.SourceID); !ok {
			return nil, nil, errors.Wrapf(ErrNoSuchInstrument, "mapping for bundle instrument %d", m.SourceID)
		}
		mappings[m.SourceID] = m
	}

	for i := range req.Bundle.Instruments {
		inst := &req.Bundle.Instruments[i]
		m, ok := mappings[inst.ID]
		if !ok {
			m = InstrumentMapping{SourceID: inst.ID, Action: InstrumentCopy, SampleAction: SampleAllocateNew}
		}
		if err := porter.portInstrument(inst, m); err != nil {
			return nil, nil, err
		}
	}

	song, err := porter.rewriteSong()
	if err != nil {
		return nil, nil, err
	}
	if err := porter.target.SetSong(index, song); err != nil {
		return nil, nil, errors.Wrap(err, "place song")
	}
	return porter.target, porter.result, nil
}

func (porter *songPorter) portInstrument(inst *BundleInstrument, m InstrumentMapping) error {
	switch m.Action {
	case InstrumentMapToExisting:
		if _, ok := porter.target.Instrument(m.TargetID); !ok {
			return errors.Wrapf(ErrNoSuchInstrument, "map instrument %d to %d", inst.ID, m.TargetID)
		}
		porter.result.InstrumentMap[inst.ID] = m.TargetID
		porter.result.MappedInstruments++
		return nil

	case InstrumentCopy:
		sampleID, err := porter.portSample(inst, m)
		if err != nil {
			return err
		}
		copied := inst.Instrument
		copied.SampleID = sampleID
		id, err := porter.target.AddInstrument(copied)
		if err != nil {
			return errors.Wrapf(err, "copy instrument %d", inst.ID)
		}
		porter.result.InstrumentMap[inst.ID] = id
		porter.result.NewInstruments++
		return nil

	default:
		return errors.Errorf("instrument %d: unexpected action %d", inst.ID, m.Action)
	}
}

func (porter *songPorter) portSample(inst *BundleInstrument, m InstrumentMapping) (int, error) {
	src, ok := porter.bundle.sample(inst.SampleID)
	if !ok {
		return 0, errors.Wrapf(ErrNoSuchSample, "instrument %d uses bundle sample %d", inst.ID, inst.SampleID)
	}

	switch m.SampleAction {
	case SampleReuseExisting:
		if _, ok := porter.target.Sample(m.TargetSampleID); !ok {
			return 0, errors.Wrapf(ErrNoSuchSample, "instrument %d: reuse sample %d", inst.ID, m.TargetSampleID)
		}
		porter.result.SampleMap[src.ID] = m.TargetSampleID
		porter.result.ReusedSamples++
		return m.TargetSampleID, nil

	case SampleReplace:
		if err := porter.target.ReplaceSample(m.TargetSampleID, src.Sample); err != nil {
			return 0, errors.Wrapf(err, "instrument %d", inst.ID)
		}
		porter.result.SampleMap[src.ID] = m.TargetSampleID
		porter.result.ReplacedSamples++
		return m.TargetSampleID, nil

	case SampleAllocateNew:
		// Several instruments may share one bundle sample.
		if id, ok := porter.result.SampleMap[src.ID]; ok {
			return id, nil
		}
		if id, ok := porter.target.FindSample(src.Hash()); ok {
			porter.result.SampleMap[src.ID] = id
			porter.result.ReusedSamples++
			return id, nil
		}
		id, err := porter.target.AddSample(src.Sample)
		if err != nil {
			return 0, errors.Wrapf(err, "sample %d %q", src.ID, src.Name)
		}
		porter.result.SampleMap[src.ID] = id
		porter.result.NewSamples++
		return id, nil

	default:
		return 0, errors.Errorf("instrument %d: unexpected sample action %d", inst.ID, m.SampleAction)
	}
}

func (porter *songPorter) rewriteSong() (*engine.Song, error) {
	song := porter.bundle.Song.Clone()
	var err error
	song.WalkVcmds(func(v *engine.Vcmd) {
		if v.Op != engine.VcmdInstrument || err != nil {
			return
		}
		id, ok := porter.result.InstrumentMap[int(v.Args[0])]
		if !ok {
			err = errors.Wrapf(ErrNoSuchInstrument, "song uses bundle instrument %d", v.Args[0])
			return
		}
		v.Args[0] = uint8(id)
	})
	return song, err
}
