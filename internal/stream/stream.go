// Package stream provides a read-only view of the raw bytes a document
// was loaded from.
package stream

import "encoding/binary"

// Stream wraps the raw binary image of a document.
type Stream struct {
	data []byte
}

// New creates a stream over the given bytes. The slice is borrowed, not
// copied.
func New(data []byte) *Stream {
	return &Stream{data: data}
}

// Size returns the number of bytes in the stream.
func (s *Stream) Size() uint64 {
	return uint64(len(s.data))
}

// Bytes returns the underlying bytes. Callers must not modify them.
func (s *Stream) Bytes() []byte {
	return s.data
}

// Read returns n bytes starting at the given stream offset.
func (s *Stream) Read(offset uint64, n int) ([]byte, bool) {
	if n < 0 || offset > s.Size() || uint64(n) > s.Size()-offset {
		return nil, false
	}
	return s.data[offset : offset+uint64(n)], true
}

// ReadUint32LE reads a little endian 32 bit word at the given offset.
func (s *Stream) ReadUint32LE(offset uint64) (uint32, bool) {
	b, ok := s.Read(offset, 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}
