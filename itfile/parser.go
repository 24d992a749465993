package itfile

import (
	"fmt"
	"strings"
)

// ParserConfig configures the IT parsing.
type ParserConfig struct {
	// NeedStrings makes the parser read the module, instrument and sample names.
	// They're not needed for playback-related tasks, so they're skipped by default.
	NeedStrings bool
}

// Parser decodes IT modules.
// A single parser can be reused to parse several modules, one at a time.
type Parser struct {
	config ParserConfig

	r Reader

	// Offset is the position of the field being read; used for error reporting.
	offset int

	module *Module

	rows arena[Row]

	warnings map[string]struct{}

	// These fields below are needed for better error reporting.
	stage      string
	stageIndex int
}

func NewParser(config ParserConfig) *Parser {
	return &Parser{
		config:   config,
		warnings: make(map[string]struct{}),
	}
}

const (
	headerSize           = 0xC0
	instrumentHeaderSize = 0x22A
	oldInstrumentSize    = 0x220
	sampleHeaderSize     = 0x50
	patternHeaderSize    = 8

	placeholderSampleLen = 16

	// Enough for four 64-row patterns.
	rowArenaBlockSize = 256

	// Cmwt values below this use the pre-2.00 instrument layout.
	newInstrumentFormat = 0x200
)

// ParseFromBytes decodes the IT file data.
//
// A non-nil error is a *ParseError object.
func (p *Parser) ParseFromBytes(data []byte) (m *Module, err error) {
	p.r = NewReader(data)
	p.offset = 0
	p.module = &Module{}
	p.rows.Reset(rowArenaBlockSize)
	for k := range p.warnings {
		delete(p.warnings, k)
	}

	defer func() {
		rv := recover()
		if rv == nil {
			return
		}
		if panicErr, ok := rv.(*ParseError); ok {
			m = nil
			err = panicErr
			return
		}
		panic(rv)
	}()

	p.parseModule()

	return p.module, nil
}

func (p *Parser) startStage(name string) {
	p.stage = name
	p.stageIndex = -1
}

func (p *Parser) formatStage() string {
	if p.stageIndex < 0 {
		return p.stage
	}
	return fmt.Sprintf("%s[%d]", p.stage, p.stageIndex)
}

func (p *Parser) errorf(format string, args ...any) *ParseError {
	return &ParseError{
		Stage:   p.formatStage(),
		Message: fmt.Sprintf(format, args...),
		Offset:  p.offset,
	}
}

func (p *Parser) warnf(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if tag := p.formatStage(); tag != "" {
		text = tag + ": " + text
	}
	if _, ok := p.warnings[text]; ok {
		return
	}
	p.warnings[text] = struct{}{}
	p.module.Warnings = append(p.module.Warnings, text)
}

func (p *Parser) byteAt(offset int, what string) uint8 {
	p.offset = offset
	v, ok := p.r.U8(offset)
	if !ok {
		panic(p.errorf("unexpected EOF while reading %s", what))
	}
	return v
}

func (p *Parser) wordAt(offset int, what string) uint16 {
	p.offset = offset
	v, ok := p.r.U16(offset)
	if !ok {
		panic(p.errorf("unexpected EOF while reading %s", what))
	}
	return v
}

func (p *Parser) dwordAt(offset int, what string) uint32 {
	p.offset = offset
	v, ok := p.r.U32(offset)
	if !ok {
		panic(p.errorf("unexpected EOF while reading %s", what))
	}
	return v
}

func (p *Parser) optionalStringAt(offset, l int) string {
	if !p.config.NeedStrings {
		return ""
	}
	s, _ := p.r.String(offset, l)
	return s
}

func (p *Parser) parseModule() {
	p.startStage("header")
	p.offset = 0
	if !p.r.InBounds(0, headerSize) {
		panic(p.errorf("truncated header: %d bytes, need %d", p.r.Len(), headerSize))
	}
	if magic, _ := p.r.Bytes(0, 4); string(magic) != "IMPM" {
		panic(p.errorf("bad signature %q, expected \"IMPM\"", magic))
	}

	m := p.module
	m.Name = p.optionalStringAt(0x04, 26)
	numOrders := int(p.wordAt(0x20, "order count"))
	numInstruments := int(p.wordAt(0x22, "instrument count"))
	numSamples := int(p.wordAt(0x24, "sample count"))
	numPatterns := int(p.wordAt(0x26, "pattern count"))
	m.CreatedWith = p.wordAt(0x28, "tracker version")
	m.CompatibleWith = p.wordAt(0x2A, "compatible version")
	m.Flags = HeaderFlags(p.wordAt(0x2C, "flags"))
	m.GlobalVolume = clampInt(int(p.byteAt(0x30, "global volume")), 0, 128)
	m.MixVolume = int(p.byteAt(0x31, "mix volume"))
	m.InitialSpeed = int(p.byteAt(0x32, "initial speed"))
	m.InitialTempo = int(p.byteAt(0x33, "initial tempo"))
	m.PanSeparation = int(p.byteAt(0x34, "pan separation"))
	pans, _ := p.r.Bytes(0x40, NumChannels)
	copy(m.ChannelPan[:], pans)
	vols, _ := p.r.Bytes(0x80, NumChannels)
	copy(m.ChannelVolume[:], vols)

	if m.InitialSpeed == 0 {
		m.InitialSpeed = 6
	}
	if m.InitialTempo < 32 {
		m.InitialTempo = 125
	}

	p.startStage("offset tables")
	tablesSize := numOrders + 4*(numInstruments+numSamples+numPatterns)
	p.offset = headerSize
	if !p.r.InBounds(headerSize, tablesSize) {
		panic(p.errorf("truncated offset tables: need %d bytes", tablesSize))
	}
	orders, _ := p.r.Bytes(headerSize, numOrders)
	m.Orders = append([]uint8(nil), orders...)

	offsetTable := func(base, n int) []int {
		offsets := make([]int, n)
		for i := range offsets {
			offsets[i] = int(p.dwordAt(base+4*i, "offset table entry"))
		}
		return offsets
	}
	insBase := headerSize + numOrders
	smpBase := insBase + 4*numInstruments
	patBase := smpBase + 4*numSamples
	instOffsets := offsetTable(insBase, numInstruments)
	sampleOffsets := offsetTable(smpBase, numSamples)
	patternOffsets := offsetTable(patBase, numPatterns)

	p.startStage("instrument")
	m.Instruments = make([]Instrument, numInstruments)
	for i, offset := range instOffsets {
		p.stageIndex = i
		m.Instruments[i] = p.parseInstrument(i, offset)
	}

	p.startStage("sample")
	m.Samples = make([]Sample, numSamples)
	for i, offset := range sampleOffsets {
		p.stageIndex = i
		m.Samples[i] = p.parseSample(offset)
	}

	p.startStage("pattern")
	m.Patterns = make([]Pattern, numPatterns)
	for i, offset := range patternOffsets {
		p.stageIndex = i
		m.Patterns[i] = p.parsePattern(offset)
	}
}

func placeholderInstrument(index int) Instrument {
	return Instrument{
		SampleIndex:  index + 1,
		GlobalVolume: 128,
		DefaultPan:   -1,
		Placeholder:  true,
	}
}

func (p *Parser) parseInstrument(index, offset int) Instrument {
	if offset == 0 {
		p.warnf("zero header offset, using a placeholder")
		return placeholderInstrument(index)
	}
	size := instrumentHeaderSize
	if p.module.CompatibleWith < newInstrumentFormat {
		size = oldInstrumentSize
	}
	if !p.r.InBounds(offset, size) {
		p.warnf("header at %d is out of range, using a placeholder", offset)
		return placeholderInstrument(index)
	}
	if magic, _ := p.r.Bytes(offset, 4); string(magic) != "IMPI" {
		p.warnf("bad signature %q, using a placeholder", magic)
		return placeholderInstrument(index)
	}

	inst := Instrument{
		Name:         p.optionalStringAt(offset+0x20, 26),
		GlobalVolume: 128,
		DefaultPan:   -1,
	}
	inst.SampleIndex = p.keyboardSample(offset + 0x40)

	if size == oldInstrumentSize {
		p.parseOldInstrument(&inst, offset)
		return inst
	}

	inst.FadeOut = int(p.wordAt(offset+0x14, "fade-out"))
	inst.GlobalVolume = clampInt(int(p.byteAt(offset+0x18, "global volume")), 0, 128)
	if pan := p.byteAt(offset+0x19, "default pan"); pan&0x80 == 0 {
		inst.DefaultPan = clampInt(int(pan), 0, 64)
	}

	envOffset := offset + 0x130
	flags := p.byteAt(envOffset, "volume envelope flags")
	numNodes := int(p.byteAt(envOffset+1, "volume envelope node count"))
	if flags&1 != 0 && numNodes > 0 {
		numNodes = clampInt(numNodes, 0, 25)
		inst.VolumeEnvelope = make([]EnvelopeNode, numNodes)
		for i := range inst.VolumeEnvelope {
			nodeOffset := envOffset + 6 + i*3
			inst.VolumeEnvelope[i] = EnvelopeNode{
				Level: clampInt(int(p.byteAt(nodeOffset, "envelope level")), 0, 64),
				Tick:  int(p.wordAt(nodeOffset+1, "envelope tick")),
			}
		}
		inst.SustainLoop = flags&(1<<2) != 0
	}

	return inst
}

func (p *Parser) parseOldInstrument(inst *Instrument, offset int) {
	flags := p.byteAt(offset+0x10, "envelope flags")
	inst.SustainLoop = flags&(1<<2) != 0
	inst.FadeOut = int(p.wordAt(offset+0x18, "fade-out")) * 2
	if flags&1 == 0 {
		inst.SustainLoop = false
		return
	}
	for i := 0; i < 25; i++ {
		nodeOffset := offset + 0x1F8 + i*2
		tick := p.byteAt(nodeOffset, "envelope tick")
		if tick == 0xFF {
			break
		}
		inst.VolumeEnvelope = append(inst.VolumeEnvelope, EnvelopeNode{
			Level: clampInt(int(p.byteAt(nodeOffset+1, "envelope level")), 0, 64),
			Tick:  int(tick),
		})
	}
	if len(inst.VolumeEnvelope) == 0 {
		inst.SustainLoop = false
	}
}

// keyboardSample picks the sample that plays at C-5.
// If it's not mapped, the first mapped sample is used instead.
func (p *Parser) keyboardSample(offset int) int {
	const middleC = 60
	if s := p.byteAt(offset+middleC*2+1, "keyboard table"); s != 0 {
		return int(s)
	}
	for i := 0; i < 120; i++ {
		if s := p.byteAt(offset+i*2+1, "keyboard table"); s != 0 {
			return int(s)
		}
	}
	return 0
}

func placeholderSample() Sample {
	return Sample{
		PCM:          make([]int16, placeholderSampleLen),
		Length:       placeholderSampleLen,
		C5Speed:      8363,
		Volume:       64,
		GlobalVolume: 64,
		Placeholder:  true,
	}
}

func (p *Parser) parseSample(offset int) Sample {
	if offset == 0 {
		p.warnf("zero header offset, using a silent placeholder")
		return placeholderSample()
	}
	p.offset = offset
	if !p.r.InBounds(offset, sampleHeaderSize) {
		panic(p.errorf("sample header at %d is out of range", offset))
	}
	if magic, _ := p.r.Bytes(offset, 4); string(magic) != "IMPS" {
		p.warnf("bad signature %q, using a silent placeholder", magic)
		return placeholderSample()
	}

	s := Sample{
		Name:         p.optionalStringAt(offset+0x14, 26),
		GlobalVolume: clampInt(int(p.byteAt(offset+0x11, "global volume")), 0, 64),
		Flags:        SampleFlags(p.byteAt(offset+0x12, "flags")),
		Volume:       clampInt(int(p.byteAt(offset+0x13, "default volume")), 0, 64),
		Convert:      p.byteAt(offset+0x2E, "convert flags"),
		Length:       int(p.dwordAt(offset+0x30, "length")),
		LoopBegin:    int(p.dwordAt(offset+0x34, "loop begin")),
		LoopEnd:      int(p.dwordAt(offset+0x38, "loop end")),
		C5Speed:      int(p.dwordAt(offset+0x3C, "C5 speed")),
	}
	pointer := int(p.dwordAt(offset+0x48, "sample pointer"))

	if s.C5Speed == 0 {
		s.C5Speed = 8363
	}
	if s.Length == 0 || pointer == 0 || !s.Flags.Contains(SampleHasData) {
		return placeholderLike(s)
	}
	if pointer >= p.r.Len() {
		p.warnf("sample pointer %d is out of range, using silence", pointer)
		return placeholderLike(s)
	}

	s.PCM = p.decodeSampleData(&s, pointer)

	if s.LoopEnd > s.Length {
		s.LoopEnd = s.Length
	}
	if !s.HasLoop() {
		s.Flags &^= SampleLoop | SamplePingPong
	}
	return s
}

// placeholderLike keeps the header metadata of s, but drops its data and loop.
func placeholderLike(s Sample) Sample {
	ph := placeholderSample()
	ph.Name = s.Name
	ph.C5Speed = s.C5Speed
	ph.Volume = s.Volume
	ph.GlobalVolume = s.GlobalVolume
	return ph
}

func (p *Parser) decodeSampleData(s *Sample, pointer int) []int16 {
	numChannels := 1
	if s.Flags.Contains(SampleStereo) {
		numChannels = 2
	}
	is16 := s.Flags.Contains(Sample16Bit)

	channels := make([][]int16, numChannels)
	data := p.r.Tail(pointer)
	if s.Flags.Contains(SampleCompressed) {
		for ch := range channels {
			pcm, consumed, truncated := decompressSamples(data, s.Length, is16, s.IT215())
			if truncated {
				p.warnf("compressed data is truncated, padding with silence")
			}
			channels[ch] = pcm
			data = data[consumed:]
		}
	} else {
		bytesPerSample := 1
		if is16 {
			bytesPerSample = 2
		}
		for ch := range channels {
			pcm, consumed := p.decodeRawSamples(data, s, bytesPerSample)
			channels[ch] = pcm
			data = data[consumed:]
		}
	}

	if numChannels == 1 {
		return channels[0]
	}
	mixed := make([]int16, s.Length)
	for i := range mixed {
		mixed[i] = int16((int32(channels[0][i]) + int32(channels[1][i])) / 2)
	}
	return mixed
}

func (p *Parser) decodeRawSamples(data []byte, s *Sample, bytesPerSample int) ([]int16, int) {
	pcm := make([]int16, s.Length)
	available := len(data) / bytesPerSample
	if available < s.Length {
		p.warnf("sample data is truncated (%d of %d samples), padding with silence", available, s.Length)
	} else {
		available = s.Length
	}

	signed := s.Signed()
	delta := s.IT215() // For uncompressed samples this bit means "delta values"
	var acc int32
	for i := 0; i < available; i++ {
		var v int32
		if bytesPerSample == 2 {
			u := uint16(data[2*i]) | uint16(data[2*i+1])<<8
			if signed {
				v = int32(int16(u))
			} else {
				v = int32(u) - 0x8000
			}
		} else {
			b := data[i]
			if signed {
				v = int32(int8(b))
			} else {
				v = int32(b) - 0x80
			}
			v <<= 8
		}
		if delta {
			acc = wrap(acc+v, 16)
			v = acc
		}
		pcm[i] = int16(v)
	}
	return pcm, available * bytesPerSample
}

func (p *Parser) parsePattern(offset int) Pattern {
	var pat Pattern
	if offset == 0 {
		return pat
	}

	packedLen := int(p.wordAt(offset, "packed length"))
	numRows := int(p.wordAt(offset+2, "row count"))
	dataOffset := offset + patternHeaderSize
	p.offset = dataOffset
	packed, ok := p.r.Bytes(dataOffset, packedLen)
	if !ok {
		panic(p.errorf("corrupt packed length %d, only %d bytes left", packedLen, len(p.r.Tail(dataOffset))))
	}

	var (
		masks [NumChannels]uint8
		last  [NumChannels]Cell
	)
	pat.Rows = p.rows.MakeSlice(numRows)
	pos := 0
	next := func(what string) uint8 {
		if pos >= len(packed) {
			p.offset = dataOffset + pos
			panic(p.errorf("unexpected end of packed data while reading %s", what))
		}
		b := packed[pos]
		pos++
		return b
	}

	for row := 0; row < numRows; row++ {
		for {
			channelVar := next("channel marker")
			if channelVar == 0 {
				break
			}
			ch := int(channelVar-1) & (NumChannels - 1)
			if channelVar&0x80 != 0 {
				masks[ch] = next("channel mask")
			}
			mask := masks[ch]
			cell := &pat.Rows[row][ch]

			if mask&0x01 != 0 {
				last[ch].Note = next("note")
				cell.Note = last[ch].Note
				cell.Mask |= CellHasNote
			}
			if mask&0x02 != 0 {
				last[ch].Instrument = next("instrument")
				cell.Instrument = last[ch].Instrument
				cell.Mask |= CellHasInstrument
			}
			if mask&0x04 != 0 {
				last[ch].Volume = next("volume")
				cell.Volume = last[ch].Volume
				cell.Mask |= CellHasVolume
			}
			if mask&0x08 != 0 {
				last[ch].Command = next("command")
				last[ch].Value = next("command value")
				cell.Command = last[ch].Command
				cell.Value = last[ch].Value
				cell.Mask |= CellHasCommand
			}
			if mask&0x10 != 0 {
				cell.Note = last[ch].Note
				cell.Mask |= CellHasNote
			}
			if mask&0x20 != 0 {
				cell.Instrument = last[ch].Instrument
				cell.Mask |= CellHasInstrument
			}
			if mask&0x40 != 0 {
				cell.Volume = last[ch].Volume
				cell.Mask |= CellHasVolume
			}
			if mask&0x80 != 0 {
				cell.Command = last[ch].Command
				cell.Value = last[ch].Value
				cell.Mask |= CellHasCommand
			}
		}
	}

	return pat
}

// String returns a short human-readable summary of the module.
func (m *Module) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q: %d orders, %d patterns, %d instruments, %d samples",
		m.Name, len(m.Orders), len(m.Patterns), len(m.Instruments), len(m.Samples))
	return b.String()
}
