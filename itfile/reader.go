package itfile

import (
	"encoding/binary"
)

// Reader provides bounds-checked little-endian access to a byte buffer.
//
// Every accessor reports whether the requested field was fully inside
// the buffer; a field that is out of range yields a zero value.
type Reader struct {
	data []byte
}

func NewReader(data []byte) Reader {
	return Reader{data: data}
}

func (r Reader) Len() int { return len(r.data) }

// InBounds reports whether [offset, offset+n) lies inside the buffer.
func (r Reader) InBounds(offset, n int) bool {
	if offset < 0 || n < 0 {
		return false
	}
	return offset <= len(r.data) && n <= len(r.data)-offset
}

func (r Reader) U8(offset int) (uint8, bool) {
	if !r.InBounds(offset, 1) {
		return 0, false
	}
	return r.data[offset], true
}

func (r Reader) U16(offset int) (uint16, bool) {
	if !r.InBounds(offset, 2) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(r.data[offset:]), true
}

func (r Reader) U32(offset int) (uint32, bool) {
	if !r.InBounds(offset, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(r.data[offset:]), true
}

// Bytes returns a subslice of the buffer without copying.
func (r Reader) Bytes(offset, n int) ([]byte, bool) {
	if !r.InBounds(offset, n) {
		return nil, false
	}
	return r.data[offset : offset+n], true
}

// Tail returns everything from offset to the end of the buffer.
// An out of range offset yields an empty slice.
func (r Reader) Tail(offset int) []byte {
	if offset < 0 || offset >= len(r.data) {
		return nil
	}
	return r.data[offset:]
}

// String reads a fixed-size NUL-padded string.
func (r Reader) String(offset, n int) (string, bool) {
	b, ok := r.Bytes(offset, n)
	if !ok {
		return "", false
	}
	return convertCstring(b), true
}
