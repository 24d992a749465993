package itfile

// IT214/IT215 sample compression.
//
// The data is a sequence of blocks, each prefixed by a 16-bit byte count.
// Inside a block, deltas are stored in a little-endian bit stream with
// an adaptive symbol width. 8-bit samples start at width 9, 16-bit ones at 17.
// IT215 files integrate the deltas twice.

const (
	blockSamples8  = 0x8000
	blockSamples16 = 0x4000
)

type bitReader struct {
	data   []byte
	pos    int
	bitPos uint
}

func (b *bitReader) read(n uint) (uint32, bool) {
	var v uint32
	for i := uint(0); i < n; i++ {
		if b.pos >= len(b.data) {
			return 0, false
		}
		bit := (b.data[b.pos] >> b.bitPos) & 1
		v |= uint32(bit) << i
		b.bitPos++
		if b.bitPos == 8 {
			b.bitPos = 0
			b.pos++
		}
	}
	return v, true
}

type depthParams struct {
	startWidth  uint
	blockLen    int
	bits        uint   // Sample bit depth (8 or 16)
	escapeBand  uint32 // Size of the method 2 escape band
	escapeShift uint32 // All-ones value of the sample depth
}

var (
	depth8 = depthParams{
		startWidth:  9,
		blockLen:    blockSamples8,
		bits:        8,
		escapeBand:  8,
		escapeShift: 0xFF,
	}
	depth16 = depthParams{
		startWidth:  17,
		blockLen:    blockSamples16,
		bits:        16,
		escapeBand:  16,
		escapeShift: 0xFFFF,
	}
)

// decompressSamples decodes count samples from data.
// The decoded values are scaled to 16 bits.
//
// The second result is the number of input bytes consumed.
// If the stream ends early, the output is zero-padded to count
// and truncated is set.
func decompressSamples(data []byte, count int, is16, it215 bool) (out []int16, consumed int, truncated bool) {
	params := depth8
	if is16 {
		params = depth16
	}
	out = make([]int16, count)

	offset := 0
	written := 0
	for written < count {
		if offset+2 > len(data) {
			return out, offset, true
		}
		blockBytes := int(data[offset]) | int(data[offset+1])<<8
		offset += 2
		blockEnd := offset + blockBytes
		if blockEnd > len(data) {
			truncated = true
			blockEnd = len(data)
		}

		n := params.blockLen
		if count-written < n {
			n = count - written
		}
		decoded, ok := decompressBlock(data[offset:blockEnd], out[written:written+n], params, it215)
		written += decoded
		offset = blockEnd
		if !ok || truncated {
			return out, offset, true
		}
	}
	return out, offset, false
}

// decompressBlock fills dst from a single compressed block.
// It returns the number of samples decoded and false if the
// block ended (or became invalid) before dst was filled.
func decompressBlock(block []byte, dst []int16, params depthParams, it215 bool) (int, bool) {
	br := bitReader{data: block}
	width := params.startWidth
	var d1, d2 int32

	i := 0
	for i < len(dst) {
		if width == 0 || width > params.startWidth {
			return i, false
		}
		v, ok := br.read(width)
		if !ok {
			return i, false
		}

		switch {
		case width < 7:
			// Method 1: a single escape value followed by a 3-bit width.
			if v == 1<<(width-1) {
				w, ok := br.read(3)
				if !ok {
					return i, false
				}
				width = nextWidth(uint(w)+1, width)
				continue
			}

		case width < params.startWidth:
			// Method 2: escape values occupy a band right below the top value.
			border := (params.escapeShift >> (params.startWidth - width)) - params.escapeBand/2
			if v > border && v <= border+params.escapeBand {
				width = nextWidth(uint(v-border), width)
				continue
			}

		default:
			// Method 3: the top bit selects a width change.
			if v&(1<<params.bits) != 0 {
				width = uint((v + 1) & 0xFF)
				continue
			}
		}

		delta := signExtend(v, width, params.bits)
		d1 += delta
		d1 = wrap(d1, params.bits)
		d2 += d1
		d2 = wrap(d2, params.bits)
		sample := d1
		if it215 {
			sample = d2
		}
		if params.bits == 8 {
			sample <<= 8
		}
		dst[i] = int16(sample)
		i++
	}
	return i, true
}

func nextWidth(v, width uint) uint {
	if v < width {
		return v
	}
	return v + 1
}

// signExtend interprets the low width bits of v as a signed value of the
// given sample depth. Widths above the depth are truncated to it.
func signExtend(v uint32, width, bits uint) int32 {
	if width < bits {
		shift := 32 - width
		return int32(v<<shift) >> shift
	}
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

func wrap(v int32, bits uint) int32 {
	shift := 32 - bits
	return (v << shift) >> shift
}
