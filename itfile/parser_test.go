package itfile_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/quasilyte/itspc/internal/ittest"
	"github.com/quasilyte/itspc/itfile"
)

func parse(t *testing.T, m *ittest.Module) *itfile.Module {
	t.Helper()
	parsed, err := itfile.NewParser(itfile.ParserConfig{NeedStrings: true}).ParseFromBytes(m.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	return parsed
}

func TestParseHeader(t *testing.T) {
	m := parse(t, &ittest.Module{
		Name:           "demo",
		Speed:          4,
		Tempo:          150,
		GlobalVolume:   100,
		UseInstruments: true,
		ChannelPan:     map[int]uint8{1: 0, 2: 64},
		Orders:         []uint8{0, itfile.OrderSkip, 0, itfile.OrderEnd},
		Patterns:       []ittest.Pattern{{NumRows: 4}},
	})

	if m.Name != "demo" {
		t.Errorf("name: got %q", m.Name)
	}
	if m.InitialSpeed != 4 || m.InitialTempo != 150 || m.GlobalVolume != 100 {
		t.Errorf("speed/tempo/gv: got %d/%d/%d", m.InitialSpeed, m.InitialTempo, m.GlobalVolume)
	}
	if !m.Flags.UseInstruments() {
		t.Errorf("expected instrument mode")
	}
	if m.ChannelPan[0] != 32 || m.ChannelPan[1] != 0 || m.ChannelPan[2] != 64 {
		t.Errorf("channel pans: got %v", m.ChannelPan[:3])
	}
	if len(m.Orders) != 4 || m.Orders[1] != itfile.OrderSkip {
		t.Errorf("orders: got %v", m.Orders)
	}
}

func TestParseFatalErrors(t *testing.T) {
	valid := (&ittest.Module{
		Orders:   []uint8{0},
		Patterns: []ittest.Pattern{{NumRows: 2, Cells: []ittest.Cell{ittest.Note(0, 0, 60)}}},
	}).Bytes()

	badMagic := append([]byte(nil), valid...)
	copy(badMagic, "XXXX")

	corruptPattern := append([]byte(nil), valid...)
	// The pattern is the last object; make its packed length exceed the file.
	patOffset := int(corruptPattern[0xC0+1]) | int(corruptPattern[0xC0+2])<<8
	corruptPattern[patOffset] = 0xFF
	corruptPattern[patOffset+1] = 0xFF

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "truncated header"},
		{"short header", valid[:0x80], "truncated header"},
		{"bad magic", badMagic, "bad signature"},
		{"truncated tables", valid[:0xC0+2], "truncated offset tables"},
		{"corrupt packed length", corruptPattern, "corrupt packed length"},
	}

	for _, test := range tests {
		_, err := itfile.NewParser(itfile.ParserConfig{}).ParseFromBytes(test.data)
		if err == nil {
			t.Fatalf("%s: expected an error", test.name)
		}
		var parseErr *itfile.ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("%s: expected *ParseError, got %T", test.name, err)
		}
		if !strings.Contains(err.Error(), test.want) {
			t.Fatalf("%s: error %q doesn't mention %q", test.name, err, test.want)
		}
	}
}

func TestParsePatternCells(t *testing.T) {
	m := parse(t, &ittest.Module{
		Orders: []uint8{0, 1},
		Patterns: []ittest.Pattern{
			{
				NumRows: 3,
				Cells: []ittest.Cell{
					ittest.NoteIns(0, 0, 60, 1).WithVolume(32),
					ittest.Effect(1, 3, 'D', 0x01),
					ittest.Note(2, 0, itfile.NoteOff),
				},
			},
			{ZeroOffset: true},
		},
	})

	pat := m.Patterns[0]
	if len(pat.Rows) != 3 {
		t.Fatalf("rows: got %d", len(pat.Rows))
	}
	c := pat.Rows[0][0]
	if c.Note != 60 || c.Instrument != 1 || c.Volume != 32 || c.Mask.Contains(itfile.CellHasCommand) {
		t.Errorf("row 0: got %+v", c)
	}
	c = pat.Rows[1][3]
	if c.Command != 4 || c.Value != 1 || c.Mask != itfile.CellHasCommand {
		t.Errorf("row 1: got %+v", c)
	}
	if !itfile.IsNoteOff(pat.Rows[2][0].Note) {
		t.Errorf("row 2: expected a note-off")
	}
	if !pat.Rows[1][0].IsEmpty() {
		t.Errorf("row 1 channel 0 should be empty")
	}
	if len(m.Patterns[1].Rows) != 0 {
		t.Errorf("zero offset pattern should have no rows")
	}
}

func TestParsePatternReuseMask(t *testing.T) {
	// Hand-packed: the second row reuses the note and the command of the first one.
	packed := []byte{
		0x81, 0x09, 60, 4, 0x01, // ch0: mask=note+command, C-5 D01
		0x00,
		0x81, 0x90, // ch0: mask=last note+last command
		0x00,
	}
	base := (&ittest.Module{Orders: []uint8{0}, Patterns: []ittest.Pattern{{NumRows: 2}}}).Bytes()
	patOffset := int(base[0xC0+1]) | int(base[0xC0+2])<<8
	data := append([]byte(nil), base[:patOffset]...)
	data = append(data, uint8(len(packed)), 0, 2, 0, 0, 0, 0, 0)
	data = append(data, packed...)

	m, err := itfile.NewParser(itfile.ParserConfig{}).ParseFromBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	c := m.Patterns[0].Rows[1][0]
	if c.Note != 60 || c.Command != 4 || c.Value != 1 {
		t.Fatalf("reused cell: got %+v", c)
	}
}

func TestParseSamples(t *testing.T) {
	pcm := []int16{0, 0x1000, 0x2000, -0x1000, 0, 0x100, 0x200, 0x300}
	m := parse(t, &ittest.Module{
		Orders: []uint8{0},
		Samples: []ittest.Sample{
			{PCM: pcm, Is16: true, Loop: true, LoopBegin: 2, LoopEnd: 8, C5Speed: 16000, Volume: 48},
			{PCM: []int16{0x100, 0x7F00, -0x8000}},
			{PCM: pcm, ZeroPointer: true, Loop: true, LoopBegin: 0, LoopEnd: 4},
		},
		Patterns: []ittest.Pattern{{NumRows: 1}},
	})

	s := m.Samples[0]
	if s.C5Speed != 16000 || s.Volume != 48 || !s.HasLoop() || s.LoopBegin != 2 || s.LoopEnd != 8 {
		t.Errorf("sample 0 header: got %+v", s)
	}
	for i, v := range pcm {
		if s.PCM[i] != v {
			t.Fatalf("sample 0 pcm[%d]: got %d, want %d", i, s.PCM[i], v)
		}
	}

	s = m.Samples[1]
	want8 := []int16{0x100, 0x7F00, -0x8000}
	for i, v := range want8 {
		if s.PCM[i] != v {
			t.Fatalf("sample 1 pcm[%d]: got %d, want %d", i, s.PCM[i], v)
		}
	}

	s = m.Samples[2]
	if !s.Placeholder || len(s.PCM) != 16 || s.HasLoop() {
		t.Errorf("zero pointer sample should be a 16-sample placeholder without a loop: %+v", s)
	}
}

func TestParseTruncatedSampleData(t *testing.T) {
	data := (&ittest.Module{
		Orders:   []uint8{0},
		Samples:  []ittest.Sample{{PCM: []int16{0x100, 0x200, 0x300, 0x400}, Is16: true}},
		Patterns: []ittest.Pattern{{NumRows: 1}},
	}).Bytes()
	// Cut the last sample and a half.
	data = data[:len(data)-3]

	m, err := itfile.NewParser(itfile.ParserConfig{}).ParseFromBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	s := m.Samples[0]
	if len(s.PCM) != 4 || s.PCM[0] != 0x100 || s.PCM[2] != 0 || s.PCM[3] != 0 {
		t.Fatalf("expected zero padding, got %v", s.PCM)
	}
	if len(m.Warnings) != 1 || !strings.Contains(m.Warnings[0], "truncated") {
		t.Fatalf("expected a truncation warning, got %q", m.Warnings)
	}
}

func TestParsePlaceholderInstrument(t *testing.T) {
	m := parse(t, &ittest.Module{
		UseInstruments: true,
		Orders:         []uint8{0},
		Instruments: []ittest.Instrument{
			{Sample: 1, FadeOut: 256, Envelope: []itfile.EnvelopeNode{{Level: 64, Tick: 0}, {Level: 0, Tick: 10}}, SustainLoop: true},
			{Sample: 1},
		},
		ZeroInstruments: []int{1},
		Samples:         []ittest.Sample{{PCM: make([]int16, 32)}},
		Patterns:        []ittest.Pattern{{NumRows: 1}},
	})

	inst := m.Instruments[0]
	if inst.SampleIndex != 1 || inst.FadeOut != 256 || len(inst.VolumeEnvelope) != 2 || !inst.KeyOffReleases() {
		t.Errorf("instrument 0: got %+v", inst)
	}
	inst = m.Instruments[1]
	if !inst.Placeholder || inst.SampleIndex != 2 || inst.GlobalVolume != 128 || inst.KeyOffReleases() {
		t.Errorf("instrument 1 should be a neutral placeholder: got %+v", inst)
	}
	if len(m.Warnings) != 1 || !strings.HasPrefix(m.Warnings[0], "instrument[1]") {
		t.Errorf("expected a placeholder warning, got %q", m.Warnings)
	}
}

func TestParseCompressedSample(t *testing.T) {
	var w ittest.BitWriter
	w.Write(1000, 17)
	w.Write(0xFE0C, 17) // -500
	m := parse(t, &ittest.Module{
		Orders: []uint8{0},
		Samples: []ittest.Sample{
			{Is16: true, Compressed: w.Block(), Length: 2},
		},
		Patterns: []ittest.Pattern{{NumRows: 1}},
	})
	s := m.Samples[0]
	if len(s.PCM) != 2 || s.PCM[0] != 1000 || s.PCM[1] != 500 {
		t.Fatalf("decoded pcm: got %v", s.PCM)
	}
	if len(m.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %q", m.Warnings)
	}
}
