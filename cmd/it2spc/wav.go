package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	"github.com/quasilyte/itspc/brr"
	"github.com/quasilyte/itspc/project"
)

// dspSampleRate is the rate the samples are played at with a 1.0 pitch.
const dspSampleRate = 32000

// dumpSamples writes every project sample as a 16-bit mono WAV file.
// These are the samples exactly as the hardware decodes them.
func dumpSamples(p *project.Project, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	n := 0
	for _, id := range p.SampleIDs() {
		s, _ := p.Sample(id)
		pcm, err := brr.Decode(s.Data)
		if err != nil {
			return n, errors.Wrapf(err, "sample %d", id)
		}
		filename := filepath.Join(dir, sampleFilename(id, s.Name))
		if err := writeWav(filename, pcm); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func sampleFilename(id int, name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ' || r == '.':
			return '_'
		default:
			return -1
		}
	}, strings.TrimSpace(name))
	if name == "" {
		return fmt.Sprintf("%02d.wav", id)
	}
	return fmt.Sprintf("%02d_%s.wav", id, name)
}

func writeWav(filename string, pcm []int16) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, dspSampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  dspSampleRate,
		},
		Data:           make([]int, len(pcm)),
		SourceBitDepth: 16,
	}
	for i, v := range pcm {
		buf.Data[i] = int(v)
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}
