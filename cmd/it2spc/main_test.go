package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/go-audio/wav"

	"github.com/quasilyte/itspc"
	"github.com/quasilyte/itspc/brr"
	"github.com/quasilyte/itspc/engine"
	"github.com/quasilyte/itspc/project"
)

func TestParseSampleRatios(t *testing.T) {
	tests := []struct {
		input string
		want  map[int]float64
		err   bool
	}{
		{input: "", want: nil},
		{input: "3=0.5", want: map[int]float64{3: 0.5}},
		{input: "3=0.5, 4=0.75", want: map[int]float64{3: 0.5, 4: 0.75}},
		{input: "3", err: true},
		{input: "0=0.5", err: true},
		{input: "x=0.5", err: true},
		{input: "3=fast", err: true},
	}
	for _, test := range tests {
		have, err := parseSampleRatios(test.input)
		if (err != nil) != test.err {
			t.Errorf("parseSampleRatios(%q): unexpected error state: %v", test.input, err)
			continue
		}
		if !test.err && !reflect.DeepEqual(have, test.want) {
			t.Errorf("parseSampleRatios(%q): have %v, want %v", test.input, have, test.want)
		}
	}
}

func TestParseIDList(t *testing.T) {
	have, err := parseIDList("1, 2,10")
	if err != nil || !reflect.DeepEqual(have, []int{1, 2, 10}) {
		t.Fatalf("have %v, %v", have, err)
	}
	if _, err := parseIDList("1,-2"); err == nil {
		t.Fatalf("negative IDs must be rejected")
	}
	if ids, err := parseIDList(""); ids != nil || err != nil {
		t.Fatalf("empty list: have %v, %v", ids, err)
	}
}

func TestArgumentsOptions(t *testing.T) {
	args := arguments{
		ratio:             0.5,
		sampleRatios:      "2=1.5",
		deleteInstruments: "0,1",
		echoVolume:        40,
	}
	opts, err := args.options()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Ratio != 0.5 || opts.SampleRatios[2] != 1.5 || len(opts.DeleteInstruments) != 2 || opts.EchoVolume != 40 {
		t.Fatalf("unexpected options: %+v", opts)
	}

	args.echoVolume = 300
	if _, err := args.options(); err == nil {
		t.Fatalf("expected an echo volume error")
	}
}

func TestSampleFilename(t *testing.T) {
	tests := map[string]string{
		"":             "05.wav",
		"kick drum.1":  "05_kick_drum_1.wav",
		"  bass/lead ": "05_basslead.wav",
	}
	for name, want := range tests {
		if have := sampleFilename(5, name); have != want {
			t.Errorf("sampleFilename(%q): have %q, want %q", name, have, want)
		}
	}
}

func TestDumpSamples(t *testing.T) {
	p, err := project.New(engine.DefaultDescriptor())
	if err != nil {
		t.Fatal(err)
	}
	pcm := make([]int16, 48)
	for i := range pcm {
		pcm[i] = int16(i * 100)
	}
	enc, err := brr.Encode(pcm, brr.EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.AddSample(project.Sample{Name: "ramp", Data: enc.Data}); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	n, err := dumpSamples(p, dir)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("have %d files, want 1", n)
	}

	f, err := os.Open(filepath.Join(dir, "00_ramp.wav"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if dec.SampleRate != dspSampleRate || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Fatalf("unexpected format: %d Hz, %d channels, %d bits", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	if len(buf.Data) != len(pcm) {
		t.Fatalf("have %d samples, want %d", len(buf.Data), len(pcm))
	}
}

func TestRenderResult(t *testing.T) {
	res := renderResult("a.it", &itspc.Result{
		SongIndex:     0,
		InstrumentMap: map[int]int{2: 3, 1: 0},
		Warnings:      []string{"effect Q is not supported"},
	})
	if !strings.Contains(res, "warning: effect Q is not supported") {
		t.Fatalf("the report misses a warning:\n%s", res)
	}
	if !strings.Contains(res, "1->0 2->3") {
		t.Fatalf("the report misses the instrument map:\n%s", res)
	}
}
