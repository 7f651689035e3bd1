// Package box is an in-memory big-endian ISO-BMFF writer built around a
// begin/end bracket: BeginBox records a placeholder length, EndBox walks
// back and patches it once the box's true size is known. It is used only
// to build the moov tree; mdat payload bytes go straight to the ByteSink
// and never pass through a Builder.
package box

import "encoding/binary"

// Builder accumulates bytes for a nested box tree in memory.
type Builder struct {
	buf []byte
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Bytes returns the accumulated buffer.
func (b *Builder) Bytes() []byte {
	return b.buf
}

// Len returns the number of bytes written so far.
func (b *Builder) Len() int {
	return len(b.buf)
}

// BeginBox emits a placeholder 32-bit length of 0 followed by the 4-byte
// fourcc, and returns the offset EndBox needs to back-patch the length.
func (b *Builder) BeginBox(fourcc string) int {
	start := len(b.buf)
	b.buf = append(b.buf, 0, 0, 0, 0)
	b.buf = append(b.buf, fourcc...)
	return start
}

// EndBox back-patches the 32-bit length at start to the number of bytes
// written since BeginBox returned start.
func (b *Builder) EndBox(start int) {
	size := uint32(len(b.buf) - start)
	binary.BigEndian.PutUint32(b.buf[start:start+4], size)
}

// U8 appends a single byte.
func (b *Builder) U8(v uint8) *Builder {
	b.buf = append(b.buf, v)
	return b
}

// U16 appends a big-endian uint16.
func (b *Builder) U16(v uint16) *Builder {
	b.buf = append(b.buf, byte(v>>8), byte(v))
	return b
}

// U24 appends a big-endian 24-bit value (the low 3 bytes of v).
func (b *Builder) U24(v uint32) *Builder {
	b.buf = append(b.buf, byte(v>>16), byte(v>>8), byte(v))
	return b
}

// U32 appends a big-endian uint32.
func (b *Builder) U32(v uint32) *Builder {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
	return b
}

// U64 appends a big-endian uint64.
func (b *Builder) U64(v uint64) *Builder {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
	return b
}

// Tag appends a literal 4-byte tag such as a fourcc or brand.
func (b *Builder) Tag(s string) *Builder {
	b.buf = append(b.buf, s...)
	return b
}

// Raw appends an arbitrary byte slice verbatim.
func (b *Builder) Raw(p []byte) *Builder {
	b.buf = append(b.buf, p...)
	return b
}

// Zero appends n zero bytes, used for reserved fields and padding.
func (b *Builder) Zero(n int) *Builder {
	for i := 0; i < n; i++ {
		b.buf = append(b.buf, 0)
	}
	return b
}

// FullBoxHeader appends the version/flags word common to ISO-BMFF "full
// boxes" (mvhd, tkhd, mdhd, hdlr, stsd, ...).
func (b *Builder) FullBoxHeader(version uint8, flags uint32) *Builder {
	b.U8(version)
	b.U24(flags)
	return b
}
