// Package stream implements the sequential byte cursor shared by the register,
// object and contract codecs. Fixed width integers up to 64 bits are
// little-endian, wide integers are big-endian and lengths use the compact size
// encoding.
package stream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/btcsuite/btcd/wire"

	"github.com/xuperchain/xregister/lib/wideint"
)

var (
	ErrTruncated = errors.New("stream: unexpected end of data")
	ErrMalformed = errors.New("stream: malformed length prefix")
)

// protocol version handed to the wire helpers, the encodings used here do not
// depend on it
const pver = 0

// Reader reads values from a byte slice. The first failure is sticky: every
// later read returns a zero value and Err reports the original failure.
type Reader struct {
	data []byte
	pos  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) Err() error { return r.err }

func (r *Reader) Pos() int { return r.pos }

func (r *Reader) Len() int { return len(r.data) - r.pos }

func (r *Reader) EOF() bool { return r.pos >= len(r.data) }

// Peek returns the next byte without consuming it.
func (r *Reader) Peek() (uint8, bool) {
	if r.err != nil || r.EOF() {
		return 0, false
	}
	return r.data[r.pos], true
}

// Rest returns the unread bytes and moves the cursor to the end.
func (r *Reader) Rest() []byte {
	if r.err != nil {
		return nil
	}
	b := r.data[r.pos:]
	r.pos = len(r.data)
	return b
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if r.EOF() {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

// Bytes reads exactly n bytes. The result aliases the underlying buffer.
func (r *Reader) Bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > r.Len() {
		r.err = ErrTruncated
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *Reader) U8() uint8 {
	b := r.Bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) U16() uint16 {
	b := r.Bytes(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) U32() uint32 {
	b := r.Bytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) U64() uint64 {
	b := r.Bytes(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) U256() wideint.U256 {
	var u wideint.U256
	copy(u[:], r.Bytes(wideint.Size256))
	return u
}

func (r *Reader) U512() wideint.U512 {
	var u wideint.U512
	copy(u[:], r.Bytes(wideint.Size512))
	return u
}

func (r *Reader) U1024() wideint.U1024 {
	var u wideint.U1024
	copy(u[:], r.Bytes(wideint.Size1024))
	return u
}

// CompactSize reads a canonical compact size integer.
func (r *Reader) CompactSize() uint64 {
	if r.err != nil {
		return 0
	}
	br := bytes.NewReader(r.data[r.pos:])
	v, err := wire.ReadVarInt(br, pver)
	if err != nil {
		r.err = classify(err)
		return 0
	}
	r.pos = len(r.data) - br.Len()
	return v
}

// VarBytes reads a compact size length followed by that many bytes.
func (r *Reader) VarBytes() []byte {
	n := r.CompactSize()
	if r.err != nil {
		return nil
	}
	if n > uint64(r.Len()) {
		r.err = ErrTruncated
		return nil
	}
	return r.Bytes(int(n))
}

func (r *Reader) VarString() string {
	return string(r.VarBytes())
}

func classify(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return ErrMalformed
}

// Writer accumulates encoded values. Writes to the in-memory buffer never fail.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) Len() int { return w.buf.Len() }

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *Writer) Raw(b []byte) *Writer {
	w.buf.Write(b)
	return w
}

func (w *Writer) U8(v uint8) *Writer {
	w.buf.WriteByte(v)
	return w
}

func (w *Writer) U16(v uint16) *Writer {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
	return w
}

func (w *Writer) U32(v uint32) *Writer {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
	return w
}

func (w *Writer) U64(v uint64) *Writer {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
	return w
}

func (w *Writer) U256(v wideint.U256) *Writer { return w.Raw(v[:]) }

func (w *Writer) U512(v wideint.U512) *Writer { return w.Raw(v[:]) }

func (w *Writer) U1024(v wideint.U1024) *Writer { return w.Raw(v[:]) }

func (w *Writer) CompactSize(v uint64) *Writer {
	_ = wire.WriteVarInt(&w.buf, pver, v)
	return w
}

func (w *Writer) VarBytes(b []byte) *Writer {
	_ = wire.WriteVarBytes(&w.buf, pver, b)
	return w
}

func (w *Writer) VarString(s string) *Writer {
	_ = wire.WriteVarString(&w.buf, pver, s)
	return w
}

// CompactSizeLen returns the encoded size of a compact size integer.
func CompactSizeLen(v uint64) int {
	return wire.VarIntSerializeSize(v)
}
