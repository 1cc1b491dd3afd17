package register

import (
	"bytes"
	"io"

	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/lib/crypto/hash"
	"github.com/xuperchain/xregister/lib/stream"
)

// register state types
const (
	StateReserved uint8 = 0x00
	StateReadonly uint8 = 0x01
	StateAppend   uint8 = 0x02
	StateRaw      uint8 = 0x03
	StateObject   uint8 = 0x04
	StateSystem   uint8 = 0x05
)

const (
	StateVersion = 1
	// MaxRegisterSize bounds the payload of any user register.
	MaxRegisterSize = 1024
)

// State is the base register record. The payload is accessed through a
// sequential cursor.
type State struct {
	Version  uint8
	Type     uint8
	Owner    Address
	Created  uint64
	Modified uint64
	Checksum uint64

	data   []byte
	cursor int
}

func NewState(typ uint8) *State {
	return &State{Version: StateVersion, Type: typ}
}

func ValidStateType(typ uint8) bool {
	switch typ {
	case StateReadonly, StateAppend, StateRaw, StateObject, StateSystem:
		return true
	}
	return false
}

// SetState replaces the payload and rewinds the cursor.
func (s *State) SetState(data []byte) {
	s.data = append(s.data[:0:0], data...)
	s.cursor = 0
}

// Append extends the payload.
func (s *State) Append(data []byte) {
	s.data = append(s.data, data...)
}

func (s *State) ClearState() {
	s.data = nil
	s.cursor = 0
}

// Data returns the payload. Callers must not modify it.
func (s *State) Data() []byte { return s.data }

func (s *State) Size() int { return len(s.data) }

// End reports whether the cursor reached the end of the payload.
func (s *State) End() bool { return s.cursor >= len(s.data) }

// Rewind moves the cursor to the start of the payload.
func (s *State) Rewind() { s.cursor = 0 }

// Read implements io.Reader over the payload cursor.
func (s *State) Read(p []byte) (int, error) {
	if s.End() {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.cursor:])
	s.cursor += n
	return n, nil
}

// Write implements io.Writer by appending to the payload.
func (s *State) Write(p []byte) (int, error) {
	s.data = append(s.data, p...)
	return len(p), nil
}

// IsPruned reports a record whose payload was dropped but metadata kept.
func (s *State) IsPruned() bool {
	return len(s.data) == 0 && (s.Created != 0 || !s.Owner.IsZero())
}

func (s *State) encode(w *stream.Writer) {
	w.U8(s.Version).U8(s.Type).U256(s.Owner.U256()).
		U64(s.Created).U64(s.Modified).VarBytes(s.data)
}

// GetHash is the identity of the record, the checksum excluded.
func (s *State) GetHash() uint64 {
	w := stream.NewWriter()
	s.encode(w)
	return hash.Hash64(w.Bytes())
}

// SetChecksum must follow every payload mutation before the state is stored.
func (s *State) SetChecksum() {
	s.Checksum = s.GetHash()
}

func (s *State) IsValid() bool {
	return s.Checksum == s.GetHash()
}

// Serialize returns the full record including the checksum.
func (s *State) Serialize() []byte {
	w := stream.NewWriter()
	s.encode(w)
	w.U64(s.Checksum)
	return w.Bytes()
}

// Equal compares the full serialized records.
func (s *State) Equal(o *State) bool {
	if s == nil || o == nil {
		return s == o
	}
	return bytes.Equal(s.Serialize(), o.Serialize())
}

func (s *State) Clone() *State {
	c := *s
	c.data = append([]byte(nil), s.data...)
	c.cursor = 0
	return &c
}

// DecodeState reads a full record from r.
func DecodeState(r *stream.Reader) (*State, error) {
	s := &State{}
	s.Version = r.U8()
	s.Type = r.U8()
	s.Owner = Address(r.U256())
	s.Created = r.U64()
	s.Modified = r.U64()
	s.data = append([]byte(nil), r.VarBytes()...)
	s.Checksum = r.U64()
	if r.Err() != nil {
		return nil, xerror.ErrTruncated.Wrap(r.Err())
	}
	return s, nil
}

// ParseState decodes a serialized record, rejecting trailing bytes.
func ParseState(raw []byte) (*State, error) {
	r := stream.NewReader(raw)
	s, err := DecodeState(r)
	if err != nil {
		return nil, err
	}
	if !r.EOF() {
		return nil, xerror.ErrTruncated.More("%d trailing bytes", r.Len())
	}
	return s, nil
}
