// Package wire implements the little-endian binary primitives the engine's
// snapshot formats are built from: one append/read function per value kind,
// composed by callers into whole records. This mirrors jsonenc's per-
// primitive-encoder shape (there: JSON number/string fragments; here: fixed-
// width integers and length-prefixed blobs), since the wire format here is a
// fixed binary layout rather than JSON text.
package wire

import (
	"encoding/binary"
	"errors"

	"github.com/joeycumines/factorial/fixedpoint"
)

// ErrTruncated is returned by Reader methods when fewer bytes remain than
// the value being read requires.
var ErrTruncated = errors.New("wire: truncated data")

// Writer appends values to a growing byte buffer in little-endian order.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) WriteUint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
}

func (w *Writer) WriteUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) WriteUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) WriteInt64(v int64) { w.WriteUint64(uint64(v)) }

// WriteFixed64 writes a Fixed64's raw bit pattern, for cross-platform
// determinism.
func (w *Writer) WriteFixed64(v fixedpoint.Fixed64) { w.WriteInt64(v.Bits()) }

// WriteBlob writes a uint32 length prefix followed by b's raw bytes.
func (w *Writer) WriteBlob(b []byte) {
	w.WriteUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteString writes a length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) { w.WriteBlob([]byte(s)) }

// Reader consumes values from a byte buffer in little-endian order. Once a
// read fails (insufficient bytes), every subsequent read is a no-op
// returning the zero value; callers check Err once after a sequence of
// reads instead of after every call.
type Reader struct {
	buf []byte
	err error
}

// NewReader wraps b for sequential reads. b is not copied; callers must not
// mutate it while reading.
func NewReader(b []byte) *Reader { return &Reader{buf: b} }

// Err returns the first error encountered, if any.
func (r *Reader) Err() error { return r.err }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf) < n {
		r.err = ErrTruncated
		return nil
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out
}

func (r *Reader) ReadUint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) ReadBool() bool { return r.ReadUint8() != 0 }

func (r *Reader) ReadUint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) ReadUint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) ReadInt64() int64 { return int64(r.ReadUint64()) }

func (r *Reader) ReadFixed64() fixedpoint.Fixed64 { return fixedpoint.FromBits(r.ReadInt64()) }

// ReadBlob reads a uint32 length prefix followed by that many raw bytes.
func (r *Reader) ReadBlob() []byte {
	n := r.ReadUint32()
	if r.err != nil {
		return nil
	}
	b := r.take(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (r *Reader) ReadString() string { return string(r.ReadBlob()) }
