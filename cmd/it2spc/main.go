package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"

	"github.com/quasilyte/itspc"
	"github.com/quasilyte/itspc/engine"
	"github.com/quasilyte/itspc/project"
)

// This CLI tool converts IT modules into the sound engine ARAM images.
//
//	it2spc analyze [flags] song.it
//	it2spc import [flags] -o out.bin song1.it [song2.it...]

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	var err error
	switch cmd := os.Args[1]; cmd {
	case "analyze":
		err = analyzeMain(os.Args[2:])
	case "import":
		err = importMain(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: it2spc <analyze|import> [flags] module.it...")
	fmt.Fprintln(os.Stderr, "run it2spc <command> -h to see the command flags")
}

type arguments struct {
	enginePath        string
	ratio             float64
	sampleRatios      string
	highQuality       bool
	enhanceTreble     bool
	songIndex         int
	deleteInstruments string
	deleteSamples     string
	echoVolume        uint
	verbose           bool

	// Import-only flags.
	output string
	wavDir string
}

func newFlagSet(name string, args *arguments) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&args.enginePath, "engine", "", "engine descriptor YAML file; the built-in layout is used by default")
	fs.Float64Var(&args.ratio, "ratio", 1, "sample resampling ratio, in [0.1, 4.0]")
	fs.StringVar(&args.sampleRatios, "sample-ratio", "", "per-sample ratio overrides, like 3=0.5,4=0.75")
	fs.BoolVar(&args.highQuality, "hq", false, "use the windowed sinc resampler")
	fs.BoolVar(&args.enhanceTreble, "treble", false, "apply the treble enhancement filter")
	fs.IntVar(&args.songIndex, "song", -1, "target song index; -1 appends a new song")
	fs.StringVar(&args.deleteInstruments, "delete-instruments", "", "comma-separated instrument IDs to remove before the import")
	fs.StringVar(&args.deleteSamples, "delete-samples", "", "comma-separated sample IDs to remove before the import")
	fs.UintVar(&args.echoVolume, "echo-volume", 0, "echo volume for the echo commands; 0 uses the engine default")
	fs.BoolVar(&args.verbose, "v", false, "enable debug logs")
	return fs
}

func (args *arguments) options() (*itspc.Options, error) {
	if args.echoVolume > 0xFF {
		return nil, errors.Errorf("echo volume %d is out of range", args.echoVolume)
	}
	opts := &itspc.Options{
		Ratio:         args.ratio,
		HighQuality:   args.highQuality,
		EnhanceTreble: args.enhanceTreble,
		EchoVolume:    uint8(args.echoVolume),
	}
	var err error
	opts.SampleRatios, err = parseSampleRatios(args.sampleRatios)
	if err != nil {
		return nil, errors.Wrap(err, "-sample-ratio")
	}
	opts.DeleteInstruments, err = parseIDList(args.deleteInstruments)
	if err != nil {
		return nil, errors.Wrap(err, "-delete-instruments")
	}
	opts.DeleteSamples, err = parseIDList(args.deleteSamples)
	if err != nil {
		return nil, errors.Wrap(err, "-delete-samples")
	}
	return opts, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadDescriptor(path string) (*engine.Descriptor, error) {
	if path == "" {
		return engine.DefaultDescriptor(), nil
	}
	path, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	desc, err := engine.LoadDescriptor(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return desc, nil
}

func newBaseProject(args *arguments) (*project.Project, error) {
	desc, err := loadDescriptor(args.enginePath)
	if err != nil {
		return nil, err
	}
	return project.New(desc)
}

func readModule(path string) ([]byte, error) {
	path, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func analyzeMain(argv []string) error {
	var args arguments
	fs := newFlagSet("analyze", &args)
	if err := fs.Parse(argv); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("analyze expects exactly 1 module argument")
	}
	logger := newLogger(args.verbose)

	opts, err := args.options()
	if err != nil {
		return err
	}
	base, err := newBaseProject(&args)
	if err != nil {
		return err
	}
	data, err := readModule(fs.Arg(0))
	if err != nil {
		return err
	}
	logger.Debug("analyzing module", "path", fs.Arg(0), "size", len(data))

	preview, err := itspc.Analyze(base, data, args.songIndex, opts)
	if err != nil {
		return err
	}
	fmt.Print(renderPreview(fs.Arg(0), preview))
	if preview.Headroom < 0 {
		return errors.Errorf("the song doesn't fit: %d bytes are missing", -preview.Headroom)
	}
	return nil
}

func importMain(argv []string) error {
	var args arguments
	fs := newFlagSet("import", &args)
	fs.StringVar(&args.output, "o", "", "output ARAM image path")
	fs.StringVar(&args.wavDir, "wav-dir", "", "a directory to write the decoded project samples to")
	if err := fs.Parse(argv); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("import expects at least 1 module argument")
	}
	if args.output == "" {
		return errors.New("the -o flag is required")
	}
	logger := newLogger(args.verbose)

	opts, err := args.options()
	if err != nil {
		return err
	}
	p, err := newBaseProject(&args)
	if err != nil {
		return err
	}

	// The song index and deletions are applied to the first module only;
	// the other modules are appended as new songs.
	songIndex := args.songIndex
	for _, filename := range fs.Args() {
		data, err := readModule(filename)
		if err != nil {
			return err
		}
		logger.Debug("importing module", "path", filename, "size", len(data), "song", songIndex)
		imported, result, err := itspc.Import(p, data, songIndex, opts)
		if err != nil {
			return errors.Wrap(err, filename)
		}
		for _, w := range result.Warnings {
			logger.Warn(w, "module", filename)
		}
		fmt.Print(renderResult(filename, result))
		p = imported
		songIndex = -1
		opts = &itspc.Options{
			Ratio:         opts.Ratio,
			SampleRatios:  opts.SampleRatios,
			HighQuality:   opts.HighQuality,
			EnhanceTreble: opts.EnhanceTreble,
			EchoVolume:    opts.EchoVolume,
		}
	}

	image, err := p.Build()
	if err != nil {
		return errors.Wrap(err, "build ARAM image")
	}
	output, err := expandPath(args.output)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, image, 0o644); err != nil {
		return err
	}
	logger.Info("wrote ARAM image", "path", output, "songs", p.NumSongs(), "free", p.FreeBytes())

	if args.wavDir != "" {
		dir, err := expandPath(args.wavDir)
		if err != nil {
			return err
		}
		n, err := dumpSamples(p, dir)
		if err != nil {
			return errors.Wrap(err, "dump samples")
		}
		logger.Info("wrote decoded samples", "dir", dir, "count", n)
	}
	return nil
}

func expandPath(path string) (string, error) {
	p, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	return os.ExpandEnv(p), nil
}

// parseSampleRatios parses "3=0.5,4=0.75" lists.
func parseSampleRatios(s string) (map[int]float64, error) {
	if s == "" {
		return nil, nil
	}
	ratios := make(map[int]float64)
	for _, part := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, errors.Errorf("%q: expected sample=ratio", part)
		}
		sample, err := strconv.Atoi(key)
		if err != nil || sample < 1 {
			return nil, errors.Errorf("%q: bad sample number", part)
		}
		ratio, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, errors.Errorf("%q: bad ratio", part)
		}
		ratios[sample] = ratio
	}
	return ratios, nil
}

func parseIDList(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var ids []int
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || id < 0 {
			return nil, errors.Errorf("%q: bad ID", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
