package ceras

import (
	"encoding/binary"
	"math"
)

// ByteBuffer is the PrimitiveIO collaborator: a growable write buffer
// / bounded read cursor over a byte slice. Like the teacher's
// ByteBuffer, overrun and malicious-length conditions are reported by
// panicking with an *Error; the top-level Serializer recovers these
// at the Marshal/Unmarshal boundary so the hot path never has to
// thread an error return through every primitive read.
type ByteBuffer struct {
	data   []byte
	offset int
}

// NewByteBuffer wraps data for reading, or starts a fresh write
// buffer when data is nil.
func NewByteBuffer(data []byte) *ByteBuffer {
	return &ByteBuffer{data: data}
}

// Bytes returns the buffer's full backing slice (for writers, the
// bytes written so far).
func (b *ByteBuffer) Bytes() []byte { return b.data }

// Offset returns the current read/write cursor.
func (b *ByteBuffer) Offset() int { return b.offset }

// SetOffset repositions the cursor, used by SchemaFormatter to
// rewind and patch a member's size prefix.
func (b *ByteBuffer) SetOffset(off int) { b.offset = off }

// Remaining returns the number of unread bytes.
func (b *ByteBuffer) Remaining() int { return len(b.data) - b.offset }

func (b *ByteBuffer) requireRemaining(n int) {
	if n < 0 || b.Remaining() < n {
		panic(newError(EndOfStream, "need %d bytes, have %d", n, b.Remaining()))
	}
}

func (b *ByteBuffer) grow(n int) {
	need := b.offset + n
	if need <= len(b.data) {
		return
	}
	grown := make([]byte, need)
	copy(grown, b.data)
	b.data = grown
}

// WriteByte_ writes a single byte and advances the cursor.
func (b *ByteBuffer) WriteByte_(v uint8) {
	b.grow(1)
	b.data[b.offset] = v
	b.offset++
}

// ReadByte_ reads a single byte and advances the cursor.
func (b *ByteBuffer) ReadByte_() uint8 {
	b.requireRemaining(1)
	v := b.data[b.offset]
	b.offset++
	return v
}

// WriteBool writes a boolean as one byte.
func (b *ByteBuffer) WriteBool(v bool) {
	if v {
		b.WriteByte_(1)
	} else {
		b.WriteByte_(0)
	}
}

// ReadBool reads a boolean written by WriteBool.
func (b *ByteBuffer) ReadBool() bool { return b.ReadByte_() != 0 }

// WriteInt16 writes a fixed-width little-endian signed 16-bit value.
// This is the member size-prefix width (spec §4.4, §6.1).
func (b *ByteBuffer) WriteInt16(v int16) {
	b.grow(2)
	binary.LittleEndian.PutUint16(b.data[b.offset:], uint16(v))
	b.offset += 2
}

// ReadInt16 reads a value written by WriteInt16.
func (b *ByteBuffer) ReadInt16() int16 {
	b.requireRemaining(2)
	v := int16(binary.LittleEndian.Uint16(b.data[b.offset:]))
	b.offset += 2
	return v
}

// WriteInt32 writes a fixed-width little-endian signed 32-bit value.
func (b *ByteBuffer) WriteInt32(v int32) {
	b.grow(4)
	binary.LittleEndian.PutUint32(b.data[b.offset:], uint32(v))
	b.offset += 4
}

// ReadInt32 reads a value written by WriteInt32.
func (b *ByteBuffer) ReadInt32() int32 {
	b.requireRemaining(4)
	v := int32(binary.LittleEndian.Uint32(b.data[b.offset:]))
	b.offset += 4
	return v
}

// WriteInt64 writes a fixed-width little-endian signed 64-bit value.
func (b *ByteBuffer) WriteInt64(v int64) {
	b.grow(8)
	binary.LittleEndian.PutUint64(b.data[b.offset:], uint64(v))
	b.offset += 8
}

// ReadInt64 reads a value written by WriteInt64.
func (b *ByteBuffer) ReadInt64() int64 {
	b.requireRemaining(8)
	v := int64(binary.LittleEndian.Uint64(b.data[b.offset:]))
	b.offset += 8
	return v
}

// WriteFloat32/WriteFloat64 and their Read counterparts reinterpret
// the IEEE-754 bit pattern through the fixed-width int writers above.
func (b *ByteBuffer) WriteFloat32(v float32) { b.WriteInt32(int32(math.Float32bits(v))) }
func (b *ByteBuffer) ReadFloat32() float32   { return math.Float32frombits(uint32(b.ReadInt32())) }
func (b *ByteBuffer) WriteFloat64(v float64) { b.WriteInt64(int64(math.Float64bits(v))) }
func (b *ByteBuffer) ReadFloat64() float64   { return math.Float64frombits(uint64(b.ReadInt64())) }

// WriteVarUint32 writes v as a LEB128 variable-width unsigned integer.
func (b *ByteBuffer) WriteVarUint32(v uint32) {
	for v >= 0x80 {
		b.WriteByte_(byte(v) | 0x80)
		v >>= 7
	}
	b.WriteByte_(byte(v))
}

// ReadVarUint32 reads a value written by WriteVarUint32.
func (b *ByteBuffer) ReadVarUint32() uint32 {
	var result uint32
	var shift uint
	for {
		c := b.ReadByte_()
		result |= uint32(c&0x7f) << shift
		if c&0x80 == 0 {
			return result
		}
		shift += 7
		if shift >= 35 {
			panic(newError(MaliciousInput, "varuint32 overflow"))
		}
	}
}

// WriteVarInt32 zigzag-encodes v and writes it as a varuint32.
func (b *ByteBuffer) WriteVarInt32(v int32) {
	b.WriteVarUint32(uint32((v << 1) ^ (v >> 31)))
}

// ReadVarInt32 reads a value written by WriteVarInt32.
func (b *ByteBuffer) ReadVarInt32() int32 {
	u := b.ReadVarUint32()
	return int32(u>>1) ^ -int32(u&1)
}

// WriteBinary writes a length-prefixed byte slice. maxLen, if
// non-zero, bounds the length accepted on the symmetric read path;
// writers are never bounded.
func (b *ByteBuffer) WriteBinary(v []byte) {
	b.WriteVarUint32(uint32(len(v)))
	b.grow(len(v))
	copy(b.data[b.offset:], v)
	b.offset += len(v)
}

// ReadBinary reads a length-prefixed byte slice written by
// WriteBinary, rejecting a declared length over maxLen (0 = no
// limit) before allocating, per spec §4.5.
func (b *ByteBuffer) ReadBinary(maxLen uint32) []byte {
	n := b.ReadVarUint32()
	if maxLen != 0 && n > maxLen {
		panic(newError(MaliciousInput, "binary length %d exceeds limit %d", n, maxLen))
	}
	b.requireRemaining(int(n))
	out := make([]byte, n)
	copy(out, b.data[b.offset:b.offset+int(n)])
	b.offset += int(n)
	return out
}

// WriteString writes a length-prefixed UTF-8 string.
func (b *ByteBuffer) WriteString(s string) {
	b.WriteBinary([]byte(s))
}

// ReadString reads a string written by WriteString, rejecting a
// declared length over maxLen (0 = no limit).
func (b *ByteBuffer) ReadString(maxLen uint32) string {
	return string(b.ReadBinary(maxLen))
}
