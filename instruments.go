package itspc

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/quasilyte/itspc/brr"
	"github.com/quasilyte/itspc/engine"
	"github.com/quasilyte/itspc/itfile"
	"github.com/quasilyte/itspc/project"
	"github.com/quasilyte/itspc/sampleconv"
)

// importedSample is an IT sample that will be converted into the engine format.
type importedSample struct {
	// index is a 0-based IT sample index.
	index int

	name   string
	source sampleconv.Source
	ratio  float64
	plan   sampleconv.LoopPlan
}

// importedInstrument is an engine instrument built from the IT data.
// In the sample mode, every used sample becomes an instrument.
type importedInstrument struct {
	// id is a song instrument ID (a 0-based IT instrument or sample index).
	id int

	name   string
	sample *importedSample
	info   *instrumentInfo

	adsr1  uint8
	adsr2  uint8
	tuning uint16
}

type instrumentSet struct {
	instruments []*importedInstrument
	samples     []*importedSample
	infos       map[int]*instrumentInfo
}

// usedInstrumentIDs returns the sorted instrument IDs referenced by the played rows.
func usedInstrumentIDs(m *itfile.Module, played []playedPattern) []int {
	seen := make(map[int]bool)
	for _, pp := range played {
		pat := &m.Patterns[pp.pattern]
		for _, rowIndex := range pp.timing.rows {
			row := &pat.Rows[rowIndex]
			for ch := 0; ch < engine.NumChannels; ch++ {
				cell := row[ch]
				if cell.Mask.Contains(itfile.CellHasInstrument) && cell.Instrument != 0 {
					seen[int(cell.Instrument)-1] = true
				}
			}
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// collectInstruments selects the instruments and samples to import.
//
// The assets that don't fit into the free target slots are dropped
// in the ID order with a warning.
func collectInstruments(m *itfile.Module, played []playedPattern, target *project.Project, opts *Options, warnings *warningList) *instrumentSet {
	set := &instrumentSet{infos: make(map[int]*instrumentInfo)}
	freeInstruments := target.Descriptor.MaxInstruments - target.NumInstruments()
	freeSamples := target.Descriptor.MaxSamples - target.NumSamples()
	samples := make(map[int]*importedSample)

	for _, id := range usedInstrumentIDs(m, played) {
		var inst *itfile.Instrument
		sampleIndex := id
		if m.Flags.UseInstruments() {
			if id >= len(m.Instruments) {
				warnings.addf("instrument %d does not exist, dropped", id+1)
				continue
			}
			inst = &m.Instruments[id]
			sampleIndex = inst.SampleIndex - 1
			if sampleIndex < 0 || sampleIndex >= len(m.Samples) {
				warnings.addf("instrument %d has no sample, dropped", id+1)
				continue
			}
		} else if sampleIndex >= len(m.Samples) {
			warnings.addf("sample %d does not exist, dropped", id+1)
			continue
		}
		s := &m.Samples[sampleIndex]
		if len(s.PCM) == 0 {
			warnings.addf("sample %d has no data, dropped", sampleIndex+1)
			continue
		}

		if len(set.instruments) == freeInstruments {
			warnings.addf("too many instruments: instrument %d dropped", id+1)
			continue
		}
		sample, ok := samples[sampleIndex]
		if !ok {
			if len(set.samples) == freeSamples {
				warnings.addf("too many samples: sample %d dropped", sampleIndex+1)
				continue
			}
			sample = newImportedSample(sampleIndex, s, opts, warnings)
			samples[sampleIndex] = sample
			set.samples = append(set.samples, sample)
		}

		imported := newImportedInstrument(id, inst, s, sample)
		set.instruments = append(set.instruments, imported)
		set.infos[id] = imported.info
	}

	sort.Slice(set.samples, func(i, j int) bool {
		return set.samples[i].index < set.samples[j].index
	})
	return set
}

func newImportedSample(index int, s *itfile.Sample, opts *Options, warnings *warningList) *importedSample {
	sample := &importedSample{
		index: index,
		name:  s.Name,
		source: sampleconv.Source{
			PCM:       s.PCM,
			Loop:      s.HasLoop(),
			LoopBegin: s.LoopBegin,
			LoopEnd:   s.LoopEnd,
		},
		ratio: opts.sampleRatio(index + 1),
	}
	sample.plan = sampleconv.PlanLoop(&sample.source, sample.ratio)
	if sample.plan.Unroll > 1 {
		warnings.addf("sample %d: the loop is too short, unrolled %d times", index+1, sample.plan.Unroll)
	}
	return sample
}

// newImportedInstrument builds an instrument; inst is nil in the sample mode.
func newImportedInstrument(id int, inst *itfile.Instrument, s *itfile.Sample, sample *importedSample) *importedInstrument {
	info := &instrumentInfo{
		globalVolume:       128,
		sampleGlobalVolume: s.GlobalVolume,
		sampleVolume:       s.Volume,
		defaultPan:         -1,
	}
	imported := &importedInstrument{
		id:     id,
		name:   s.Name,
		sample: sample,
		info:   info,
		tuning: instrumentTuning(s.C5Speed, sample.plan.Ratio),
	}
	imported.adsr1, imported.adsr2 = instrumentEnvelope(0, false, false, 0, 0)
	if inst == nil {
		return imported
	}

	imported.name = inst.Name
	info.globalVolume = inst.GlobalVolume
	info.defaultPan = inst.DefaultPan
	info.keyOffReleases = inst.KeyOffReleases()
	if env := inst.VolumeEnvelope; len(env) != 0 {
		last := env[len(env)-1]
		imported.adsr1, imported.adsr2 = instrumentEnvelope(last.Level, true, inst.SustainLoop, last.Tick, inst.FadeOut)
	}
	return imported
}

// encodedSampleBytes is a sum of the estimated converted sample sizes.
func (set *instrumentSet) encodedSampleBytes() int {
	total := 0
	for _, s := range set.samples {
		total += s.plan.EncodedSize()
	}
	return total
}

// bundle converts the samples and packs everything into a song bundle.
//
// The bundle instruments use the song instrument IDs,
// the bundle samples use the IT sample indexes.
func (set *instrumentSet) bundle(song *engine.Song, opts *Options) (*project.SongBundle, error) {
	b := &project.SongBundle{Song: song}
	for _, s := range set.samples {
		converted, err := sampleconv.Convert(&s.source, sampleconv.Options{
			Ratio:         s.ratio,
			HighQuality:   opts.HighQuality,
			EnhanceTreble: opts.EnhanceTreble,
		}, brr.Codec{})
		if err != nil {
			return nil, errors.Wrapf(err, "convert sample %d", s.index+1)
		}
		b.Samples = append(b.Samples, project.BundleSample{
			ID: s.index,
			Sample: project.Sample{
				Name:       s.name,
				Data:       converted.Data,
				LoopOffset: converted.LoopOffset,
			},
		})
	}
	for _, inst := range set.instruments {
		b.Instruments = append(b.Instruments, project.BundleInstrument{
			ID: inst.id,
			Instrument: project.Instrument{
				Name:     inst.name,
				SampleID: inst.sample.index,
				ADSR1:    inst.adsr1,
				ADSR2:    inst.adsr2,
				Tuning:   inst.tuning,
			},
		})
	}
	return b, nil
}
