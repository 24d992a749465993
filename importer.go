package itspc

import (
	"github.com/pkg/errors"

	"github.com/quasilyte/itspc/engine"
	"github.com/quasilyte/itspc/itfile"
	"github.com/quasilyte/itspc/project"
)

// ErrSongIndexOutOfRange is returned for the target song indexes
// that are neither -1 nor in [0, NumSongs].
var ErrSongIndexOutOfRange = project.ErrSongIndexOutOfRange

// Preview is an Analyze report.
type Preview struct {
	Name string

	Patterns    int
	Tracks      int
	Instruments int
	Samples     int

	// SongSize is the encoded song size in bytes.
	SongSize int

	// SampleBytes is the estimated size of all converted samples.
	SampleBytes int

	// FreeBytes is the target free ARAM after the requested deletions.
	FreeBytes int

	// Headroom is FreeBytes minus the song and the sample sizes.
	// A negative value means that the import will fail.
	Headroom int

	SampleEstimates []SampleEstimate

	// Extensions lists the engine extensions the song needs.
	Extensions []string

	Warnings []string

	// LoopOrder is an order list index the song loops to; -1 if it doesn't loop.
	LoopOrder int
}

// SampleEstimate describes the planned conversion of one IT sample.
type SampleEstimate struct {
	// Sample is a 1-based IT sample number.
	Sample int
	Name   string

	Ratio        float64
	InputLength  int
	OutputLength int
	Size         int
	Looped       bool
}

// Result is an Import report.
type Result struct {
	SongIndex int

	Patterns    int
	Tracks      int
	Instruments int
	Samples     int

	// NewSamples and ReusedSamples split the Samples:
	// a reused sample had an identical copy in the target project.
	NewSamples    int
	ReusedSamples int

	// InstrumentMap maps the IT instrument numbers (1-based) to the target IDs.
	// In the sample mode, the keys are the IT sample numbers.
	InstrumentMap map[int]int

	EnabledExtensions []string

	Warnings []string

	FreeBytes int
}

// importJob is a shared part of Analyze and Import.
type importJob struct {
	opts     *Options
	module   *itfile.Module
	target   *project.Project
	warnings warningList
	played   []playedPattern
	set      *instrumentSet
	compiled *compiledSong
}

// Analyze runs the import without producing a new project.
//
// The base project is never modified.
func Analyze(base *project.Project, data []byte, songIndex int, opts *Options) (*Preview, error) {
	job, err := prepareImport(base, data, songIndex, opts)
	if err != nil {
		return nil, err
	}

	song := job.compiled.song
	songSize, err := engine.EncodedSongSize(song)
	if err != nil {
		return nil, errors.Wrap(err, "encode song")
	}
	p := &Preview{
		Name:        job.module.Name,
		Patterns:    len(song.Patterns),
		Tracks:      len(song.Tracks),
		Instruments: len(job.set.instruments),
		Samples:     len(job.set.samples),
		SongSize:    songSize,
		SampleBytes: job.set.encodedSampleBytes(),
		FreeBytes:   job.target.FreeBytes(),
		Extensions:  job.compiled.usedExtensions,
		LoopOrder:   job.loopOrder(),
	}
	p.Headroom = p.FreeBytes - p.SongSize - p.SampleBytes
	for _, s := range job.set.samples {
		p.SampleEstimates = append(p.SampleEstimates, SampleEstimate{
			Sample:       s.index + 1,
			Name:         s.name,
			Ratio:        s.plan.Ratio,
			InputLength:  len(s.source.PCM),
			OutputLength: s.plan.OutputLen,
			Size:         s.plan.EncodedSize(),
			Looped:       s.plan.Looped,
		})
	}
	if p.Headroom < 0 {
		job.warnings.addf("not enough free ARAM: %d bytes are missing", -p.Headroom)
	}
	p.Warnings = job.warnings.list
	return p, nil
}

// Import converts the IT module data and puts the song into a copy of the base project.
//
// The base project is never modified: on success, the new project is returned.
// songIndex -1 appends the song.
func Import(base *project.Project, data []byte, songIndex int, opts *Options) (*project.Project, *Result, error) {
	job, err := prepareImport(base, data, songIndex, opts)
	if err != nil {
		return nil, nil, err
	}

	bundle, err := job.set.bundle(job.compiled.song, job.opts)
	if err != nil {
		return nil, nil, err
	}
	imported, portResult, err := project.PortSong(job.target, project.SongPortRequest{
		Bundle:      bundle,
		TargetIndex: songIndex,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "import song")
	}

	song := job.compiled.song
	result := &Result{
		SongIndex:         portResult.SongIndex,
		Patterns:          len(song.Patterns),
		Tracks:            len(song.Tracks),
		Instruments:       portResult.NewInstruments + portResult.MappedInstruments,
		Samples:           len(bundle.Samples),
		NewSamples:        portResult.NewSamples,
		ReusedSamples:     portResult.ReusedSamples,
		InstrumentMap:     make(map[int]int, len(portResult.InstrumentMap)),
		EnabledExtensions: job.compiled.usedExtensions,
		Warnings:          job.warnings.list,
		FreeBytes:         imported.FreeBytes(),
	}
	for id, targetID := range portResult.InstrumentMap {
		result.InstrumentMap[id+1] = targetID
	}
	return imported, result, nil
}

func prepareImport(base *project.Project, data []byte, songIndex int, opts *Options) (*importJob, error) {
	if opts == nil {
		opts = &Options{}
	}
	if songIndex < -1 || songIndex > base.NumSongs() {
		return nil, errors.Wrapf(ErrSongIndexOutOfRange, "song index %d (have %d songs)", songIndex, base.NumSongs())
	}

	m, err := itfile.NewParser(itfile.ParserConfig{NeedStrings: true}).ParseFromBytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse module")
	}

	job := &importJob{
		opts:   opts,
		module: m,
		target: base.Clone(),
	}
	job.warnings.add(m.Warnings)

	for _, id := range opts.DeleteInstruments {
		if err := job.target.DeleteInstrument(id); err != nil {
			return nil, errors.Wrapf(err, "delete instrument %d", id)
		}
	}
	for _, id := range opts.DeleteSamples {
		if err := job.target.DeleteSample(id); err != nil {
			return nil, errors.Wrapf(err, "delete sample %d", id)
		}
	}

	played, loop := walkOrders(m, &job.warnings)
	if len(played) == 0 {
		return nil, errors.New("module has no playable patterns")
	}
	job.played = played

	job.set = collectInstruments(m, played, job.target, opts, &job.warnings)

	compiler := newSongCompiler(m, job.target.Descriptor, opts, job.set.infos, &job.warnings)
	job.compiled, err = compiler.compile(played, loop)
	if err != nil {
		return nil, errors.Wrap(err, "compile song")
	}
	return job, nil
}

func (job *importJob) loopOrder() int {
	if job.compiled.loop == -1 {
		return -1
	}
	return job.played[job.compiled.loop].order
}
