// Package ittest builds IT module files for tests.
//
// The produced files are minimal but valid: every cell is stored with an
// explicit mask, samples are stored uncompressed unless Compressed data is given.
package ittest

import (
	"encoding/binary"

	"github.com/quasilyte/itspc/itfile"
)

type Module struct {
	Name           string
	Speed          int
	Tempo          int
	GlobalVolume   int
	UseInstruments bool
	ChannelPan     map[int]uint8
	ChannelVolume  map[int]uint8

	Orders      []uint8
	Instruments []Instrument
	Samples     []Sample
	Patterns    []Pattern

	// ZeroInstruments lists instrument indexes written with a zero offset.
	ZeroInstruments []int
}

type Instrument struct {
	Sample       int // 1-based
	FadeOut      int
	GlobalVolume int
	Envelope     []itfile.EnvelopeNode
	SustainLoop  bool
}

type Sample struct {
	PCM       []int16
	Is16      bool
	Loop      bool
	LoopBegin int
	LoopEnd   int
	C5Speed   int
	Volume    int

	// Compressed replaces the sample data with a raw compressed payload.
	// Length must be set in this case.
	Compressed []byte
	Length     int
	IT215      bool

	// ZeroPointer stores the sample with a zero data pointer.
	ZeroPointer bool
}

type Pattern struct {
	NumRows int
	Cells   []Cell

	// ZeroOffset stores the pattern with a zero offset.
	ZeroOffset bool
}

type Cell struct {
	Row     int
	Channel int
	itfile.Cell
}

// Note returns a cell that only has a note.
func Note(row, ch int, note uint8) Cell {
	return Cell{Row: row, Channel: ch, Cell: itfile.Cell{Mask: itfile.CellHasNote, Note: note}}
}

// NoteIns returns a cell with a note and an instrument.
func NoteIns(row, ch int, note, ins uint8) Cell {
	return Cell{Row: row, Channel: ch, Cell: itfile.Cell{
		Mask:       itfile.CellHasNote | itfile.CellHasInstrument,
		Note:       note,
		Instrument: ins,
	}}
}

// Effect returns a cell that only has an effect.
// The command is given as a letter, like 'D'.
func Effect(row, ch int, letter byte, value uint8) Cell {
	return Cell{Row: row, Channel: ch, Cell: itfile.Cell{
		Mask:    itfile.CellHasCommand,
		Command: letter - 'A' + 1,
		Value:   value,
	}}
}

// With adds an effect to the cell.
func (c Cell) With(letter byte, value uint8) Cell {
	c.Mask |= itfile.CellHasCommand
	c.Command = letter - 'A' + 1
	c.Value = value
	return c
}

// WithVolume adds a volume column value to the cell.
func (c Cell) WithVolume(v uint8) Cell {
	c.Mask |= itfile.CellHasVolume
	c.Volume = v
	return c
}

// WithInstrument adds an instrument to the cell.
func (c Cell) WithInstrument(ins uint8) Cell {
	c.Mask |= itfile.CellHasInstrument
	c.Instrument = ins
	return c
}

type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

func (w *writer) str(s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	w.buf = append(w.buf, b...)
}

func (w *writer) putU32(offset int, v uint32) {
	binary.LittleEndian.PutUint32(w.buf[offset:], v)
}

func (w *writer) putU16(offset int, v uint16) {
	binary.LittleEndian.PutUint16(w.buf[offset:], v)
}

// Bytes serializes the module.
func (m *Module) Bytes() []byte {
	w := &writer{}
	w.str("IMPM", 4)
	w.str(m.Name, 26)
	w.u16(0x1004)
	w.u16(uint16(len(m.Orders)))
	w.u16(uint16(len(m.Instruments)))
	w.u16(uint16(len(m.Samples)))
	w.u16(uint16(len(m.Patterns)))
	w.u16(0x0214)
	w.u16(0x0214)
	flags := uint16(1 | 1<<3)
	if m.UseInstruments {
		flags |= 1 << 2
	}
	w.u16(flags)
	w.u16(0)
	w.u8(uint8(orDefault(m.GlobalVolume, 128)))
	w.u8(48)
	w.u8(uint8(orDefault(m.Speed, 6)))
	w.u8(uint8(orDefault(m.Tempo, 125)))
	w.u8(128)
	w.u8(0)
	w.u16(0)
	w.u32(0)
	w.u32(0)
	for ch := 0; ch < itfile.NumChannels; ch++ {
		pan, ok := m.ChannelPan[ch]
		if !ok {
			pan = 32
		}
		w.u8(pan)
	}
	for ch := 0; ch < itfile.NumChannels; ch++ {
		vol, ok := m.ChannelVolume[ch]
		if !ok {
			vol = 64
		}
		w.u8(vol)
	}
	w.buf = append(w.buf, m.Orders...)

	insTable := len(w.buf)
	w.buf = append(w.buf, make([]byte, 4*len(m.Instruments))...)
	smpTable := len(w.buf)
	w.buf = append(w.buf, make([]byte, 4*len(m.Samples))...)
	patTable := len(w.buf)
	w.buf = append(w.buf, make([]byte, 4*len(m.Patterns))...)

	zeroIns := make(map[int]bool)
	for _, i := range m.ZeroInstruments {
		zeroIns[i] = true
	}
	for i, inst := range m.Instruments {
		if zeroIns[i] {
			continue
		}
		w.putU32(insTable+4*i, uint32(len(w.buf)))
		m.writeInstrument(w, inst)
	}

	pointerFields := make([]int, len(m.Samples))
	for i, s := range m.Samples {
		w.putU32(smpTable+4*i, uint32(len(w.buf)))
		pointerFields[i] = m.writeSampleHeader(w, s)
	}

	for i, pat := range m.Patterns {
		if pat.ZeroOffset {
			continue
		}
		w.putU32(patTable+4*i, uint32(len(w.buf)))
		writePattern(w, pat)
	}

	for i, s := range m.Samples {
		if s.ZeroPointer {
			continue
		}
		w.putU32(pointerFields[i], uint32(len(w.buf)))
		if s.Compressed != nil {
			w.buf = append(w.buf, s.Compressed...)
			continue
		}
		for _, v := range s.PCM {
			if s.Is16 {
				w.u16(uint16(v))
			} else {
				w.u8(uint8(v >> 8))
			}
		}
	}

	return w.buf
}

func (m *Module) writeInstrument(w *writer, inst Instrument) {
	start := len(w.buf)
	w.buf = append(w.buf, make([]byte, 0x22A)...)
	copy(w.buf[start:], "IMPI")
	w.putU16(start+0x14, uint16(inst.FadeOut))
	w.buf[start+0x18] = uint8(orDefault(inst.GlobalVolume, 128))
	w.buf[start+0x19] = 0x80
	for note := 0; note < 120; note++ {
		w.buf[start+0x40+note*2] = uint8(note)
		w.buf[start+0x40+note*2+1] = uint8(inst.Sample)
	}
	env := start + 0x130
	if len(inst.Envelope) != 0 {
		flags := uint8(1)
		if inst.SustainLoop {
			flags |= 1 << 2
		}
		w.buf[env] = flags
		w.buf[env+1] = uint8(len(inst.Envelope))
		for i, node := range inst.Envelope {
			w.buf[env+6+i*3] = uint8(node.Level)
			w.putU16(env+6+i*3+1, uint16(node.Tick))
		}
	}
}

// writeSampleHeader returns the offset of the data pointer field.
func (m *Module) writeSampleHeader(w *writer, s Sample) int {
	start := len(w.buf)
	w.buf = append(w.buf, make([]byte, 0x50)...)
	copy(w.buf[start:], "IMPS")
	w.buf[start+0x11] = 64
	flags := uint8(1)
	if s.Is16 {
		flags |= 1 << 1
	}
	if s.Compressed != nil {
		flags |= 1 << 3
	}
	if s.Loop {
		flags |= 1 << 4
	}
	w.buf[start+0x12] = flags
	w.buf[start+0x13] = uint8(orDefault(s.Volume, 64))
	convert := uint8(1)
	if s.IT215 {
		convert |= 1 << 2
	}
	w.buf[start+0x2E] = convert
	length := len(s.PCM)
	if s.Compressed != nil {
		length = s.Length
	}
	w.putU32(start+0x30, uint32(length))
	w.putU32(start+0x34, uint32(s.LoopBegin))
	w.putU32(start+0x38, uint32(s.LoopEnd))
	w.putU32(start+0x3C, uint32(orDefault(s.C5Speed, 8363)))
	return start + 0x48
}

func writePattern(w *writer, pat Pattern) {
	var packed []byte
	for row := 0; row < pat.NumRows; row++ {
		for _, c := range pat.Cells {
			if c.Row != row || c.Mask == 0 {
				continue
			}
			var mask uint8
			var payload []byte
			if c.Mask.Contains(itfile.CellHasNote) {
				mask |= 0x01
				payload = append(payload, c.Note)
			}
			if c.Mask.Contains(itfile.CellHasInstrument) {
				mask |= 0x02
				payload = append(payload, c.Instrument)
			}
			if c.Mask.Contains(itfile.CellHasVolume) {
				mask |= 0x04
				payload = append(payload, c.Volume)
			}
			if c.Mask.Contains(itfile.CellHasCommand) {
				mask |= 0x08
				payload = append(payload, c.Command, c.Value)
			}
			packed = append(packed, uint8(c.Channel+1)|0x80, mask)
			packed = append(packed, payload...)
		}
		packed = append(packed, 0)
	}
	w.u16(uint16(len(packed)))
	w.u16(uint16(pat.NumRows))
	w.u32(0)
	w.buf = append(w.buf, packed...)
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// BitWriter produces little-endian bit streams used by the compressed samples.
type BitWriter struct {
	buf    []byte
	bitPos uint
}

func (b *BitWriter) Write(v uint32, width uint) {
	for i := uint(0); i < width; i++ {
		if b.bitPos == 0 {
			b.buf = append(b.buf, 0)
		}
		if v&(1<<i) != 0 {
			b.buf[len(b.buf)-1] |= 1 << b.bitPos
		}
		b.bitPos = (b.bitPos + 1) % 8
	}
}

// Block returns the stream prefixed with its 16-bit byte count.
func (b *BitWriter) Block() []byte {
	out := binary.LittleEndian.AppendUint16(nil, uint16(len(b.buf)))
	return append(out, b.buf...)
}
