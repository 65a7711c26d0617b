package botmaster

import (
	"encoding/binary"
	"math"
)

// Writer builds little-endian wire payloads for RPCs and sync packets.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty payload writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated payload.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) U8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

func (w *Writer) U16(v uint16) *Writer {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
	return w
}

func (w *Writer) U32(v uint32) *Writer {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

func (w *Writer) I32(v int32) *Writer {
	return w.U32(uint32(v))
}

func (w *Writer) F32(v float64) *Writer {
	return w.U32(math.Float32bits(float32(v)))
}

func (w *Writer) Vec3(v Vec3) *Writer {
	return w.F32(v.X).F32(v.Y).F32(v.Z)
}

func (w *Writer) Raw(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// String8 writes a u8 length prefix followed by the raw bytes.
func (w *Writer) String8(s string) *Writer {
	if len(s) > 0xFF {
		s = s[:0xFF]
	}
	return w.U8(uint8(len(s))).Raw([]byte(s))
}

// String16 writes a u16 length prefix followed by the raw bytes.
func (w *Writer) String16(s string) *Writer {
	if len(s) > 0xFFFF {
		s = s[:0xFFFF]
	}
	return w.U16(uint16(len(s))).Raw([]byte(s))
}

// String32 writes a u32 length prefix followed by the raw bytes.
func (w *Writer) String32(s string) *Writer {
	return w.U32(uint32(len(s))).Raw([]byte(s))
}

// Reader consumes little-endian wire payloads. Short reads do not error;
// they yield zero values and mark the reader truncated, mirroring how the
// game protocol treats malformed payloads as best-effort.
type Reader struct {
	buf       []byte
	off       int
	truncated bool
}

// NewReader wraps a payload.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Truncated reports whether any read ran past the end of the payload.
func (r *Reader) Truncated() bool {
	return r.truncated
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

func (r *Reader) take(n int) []byte {
	if r.off+n > len(r.buf) {
		r.truncated = true
		r.off = len(r.buf)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) U8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) U16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) U32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) I32() int32 {
	return int32(r.U32())
}

func (r *Reader) F32() float64 {
	return float64(math.Float32frombits(r.U32()))
}

func (r *Reader) Vec3() Vec3 {
	return Vec3{r.F32(), r.F32(), r.F32()}
}

func (r *Reader) Bytes(n int) []byte {
	b := r.take(n)
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// String8 reads a u8 length prefix followed by the raw bytes.
func (r *Reader) String8() []byte {
	return r.Bytes(int(r.U8()))
}

// String16 reads a u16 length prefix followed by the raw bytes.
func (r *Reader) String16() []byte {
	return r.Bytes(int(r.U16()))
}

// String32 reads a u32 length prefix followed by the raw bytes.
func (r *Reader) String32() []byte {
	return r.Bytes(int(r.U32()))
}

// Skip discards n bytes.
func (r *Reader) Skip(n int) {
	r.take(n)
}
