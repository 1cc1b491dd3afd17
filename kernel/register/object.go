package register

import (
	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/lib/stream"
	"github.com/xuperchain/xregister/lib/wideint"
)

type field struct {
	name    string
	typ     FieldType
	mutable bool
	// value bytes in the payload, length prefix excluded
	begin int
	end   int
}

// FieldInfo describes one parsed field.
type FieldInfo struct {
	Name    string
	Type    FieldType
	Mutable bool
}

// Object is the parsed view of an OBJECT register. Writes go straight to the
// underlying payload; the caller must SetChecksum before storing the state.
type Object struct {
	*State

	fields map[string]*field
	order  []*field
}

// ParseObject walks the payload of an OBJECT state once and indexes its fields.
func ParseObject(s *State) (*Object, error) {
	if s == nil || s.Type != StateObject {
		return nil, xerror.ErrRegisterType.More("not an object register")
	}

	o := &Object{State: s, fields: make(map[string]*field)}
	r := stream.NewReader(s.data)
	for !r.EOF() {
		f := &field{name: r.VarString()}
		tag := r.U8()
		if tag == FieldMutable {
			f.mutable = true
			tag = r.U8()
		}
		if r.Err() != nil {
			return nil, xerror.ErrTruncated.Wrap(r.Err())
		}
		if f.name == "" {
			return nil, xerror.ErrInvalidOperand.More("empty field name")
		}
		if _, ok := o.fields[f.name]; ok {
			return nil, xerror.ErrDuplicateField.More("%s", f.name)
		}

		f.typ = FieldType(tag)
		width := f.typ.Width()
		switch {
		case width < 0:
			return nil, xerror.ErrUnknownFieldType.More("%s: %#x", f.name, tag)
		case width == 0:
			n := r.CompactSize()
			if r.Err() == nil && n > uint64(r.Len()) {
				return nil, xerror.ErrTruncated.More("%s", f.name)
			}
			f.begin = r.Pos()
			r.Bytes(int(n))
		default:
			f.begin = r.Pos()
			r.Bytes(width)
		}
		if r.Err() != nil {
			return nil, xerror.ErrTruncated.Wrap(r.Err())
		}
		f.end = r.Pos()

		o.fields[f.name] = f
		o.order = append(o.order, f)
	}
	return o, nil
}

// MustParseObject panics if s does not parse.
func MustParseObject(s *State) *Object {
	o, err := ParseObject(s)
	if err != nil {
		panic(err)
	}
	return o
}

func (o *Object) Fields() []FieldInfo {
	out := make([]FieldInfo, 0, len(o.order))
	for _, f := range o.order {
		out = append(out, FieldInfo{f.name, f.typ, f.mutable})
	}
	return out
}

func (o *Object) Has(name string) bool {
	_, ok := o.fields[name]
	return ok
}

// FieldType returns the stored type of name.
func (o *Object) FieldType(name string) (FieldType, bool) {
	f, ok := o.fields[name]
	if !ok {
		return 0, false
	}
	return f.typ, true
}

// Read returns the current value of name. String values lose their null
// padding, byte values keep it.
func (o *Object) Read(name string) (Value, error) {
	f, ok := o.fields[name]
	if !ok {
		return Value{}, xerror.ErrFieldNotFound.More("%s", name)
	}
	raw := append([]byte(nil), o.data[f.begin:f.end]...)
	v := Value{Type: f.typ, raw: raw}
	if f.typ == TypeString {
		v.raw = []byte(v.Text())
	}
	return v, nil
}

// ReadAs fails unless the stored type is typ.
func (o *Object) ReadAs(name string, typ FieldType) (Value, error) {
	v, err := o.Read(name)
	if err != nil {
		return Value{}, err
	}
	if v.Type != typ {
		return Value{}, xerror.ErrFieldTypeMismatch.More("%s is %s, want %s", name, v.Type, typ)
	}
	return v, nil
}

func (o *Object) ReadU8(name string) (uint8, error) {
	v, err := o.ReadAs(name, TypeUint8)
	if err != nil {
		return 0, err
	}
	return v.raw[0], nil
}

func (o *Object) ReadU64(name string) (uint64, error) {
	v, err := o.ReadAs(name, TypeUint64)
	if err != nil {
		return 0, err
	}
	n, _ := v.Uint64()
	return n, nil
}

func (o *Object) ReadU256(name string) (wideint.U256, error) {
	v, err := o.ReadAs(name, TypeUint256)
	if err != nil {
		return wideint.U256{}, err
	}
	u, _ := v.Uint256()
	return u, nil
}

func (o *Object) ReadString(name string) (string, error) {
	v, err := o.ReadAs(name, TypeString)
	if err != nil {
		return "", err
	}
	return string(v.raw), nil
}

func (o *Object) ReadBytes(name string) ([]byte, error) {
	v, err := o.ReadAs(name, TypeBytes)
	if err != nil {
		return nil, err
	}
	return v.raw, nil
}

// ReadInteger reads an integer field of any width that fits 256 bits.
func (o *Object) ReadInteger(name string) (wideint.U256, error) {
	v, err := o.Read(name)
	if err != nil {
		return wideint.U256{}, err
	}
	if !v.Type.IsInteger() {
		return wideint.U256{}, xerror.ErrFieldTypeMismatch.More("%s is %s", name, v.Type)
	}
	u, ok := v.Uint256()
	if !ok {
		return wideint.U256{}, xerror.ErrOverflow.More("%s", name)
	}
	return u, nil
}

// Write replaces the value of a mutable field in place. Strings and bytes may
// shrink, never grow; the freed space is null padded.
func (o *Object) Write(name string, v Value) error {
	f, ok := o.fields[name]
	if !ok {
		return xerror.ErrFieldNotFound.More("%s", name)
	}
	if !f.mutable {
		return xerror.ErrFieldImmutable.More("%s", name)
	}
	if v.Type != f.typ {
		return xerror.ErrFieldTypeMismatch.More("%s is %s, got %s", name, f.typ, v.Type)
	}
	size := f.end - f.begin
	if len(v.raw) > size {
		return xerror.ErrFieldSize.More("%s: %d > %d", name, len(v.raw), size)
	}
	dst := o.data[f.begin:f.end]
	n := copy(dst, v.raw)
	for i := n; i < size; i++ {
		dst[i] = 0
	}
	return nil
}

// ApplyWrites decodes a stream of {name, type tag, value} updates and writes
// each of them. The stream must be consumed exactly.
func (o *Object) ApplyWrites(data []byte) error {
	r := stream.NewReader(data)
	if r.EOF() {
		return xerror.ErrInvalidOperand.More("empty field update")
	}
	for !r.EOF() {
		name := r.VarString()
		v, err := DecodeValue(r)
		if err != nil {
			return err
		}
		if err := o.Write(name, v); err != nil {
			return err
		}
	}
	return nil
}

// DecodeValue reads a type tag and the value it announces.
func DecodeValue(r *stream.Reader) (Value, error) {
	typ := FieldType(r.U8())
	if r.Err() != nil {
		return Value{}, xerror.ErrTruncated.Wrap(r.Err())
	}
	var raw []byte
	switch width := typ.Width(); {
	case width < 0:
		return Value{}, xerror.ErrUnknownFieldType.More("%#x", uint8(typ))
	case width == 0:
		raw = r.VarBytes()
	default:
		raw = r.Bytes(width)
	}
	if r.Err() != nil {
		return Value{}, xerror.ErrTruncated.Wrap(r.Err())
	}
	return Value{Type: typ, raw: append([]byte(nil), raw...)}, nil
}

// EncodeWrites builds the update stream consumed by ApplyWrites.
func EncodeWrites(names []string, values []Value) []byte {
	w := stream.NewWriter()
	for i, name := range names {
		w.VarString(name)
		values[i].encode(w)
	}
	return w.Bytes()
}

func (o *Object) GetU64(name string) uint64 {
	n, err := o.ReadU64(name)
	if err != nil {
		panic(err)
	}
	return n
}

func (o *Object) GetU256(name string) wideint.U256 {
	u, err := o.ReadU256(name)
	if err != nil {
		panic(err)
	}
	return u
}

func (o *Object) GetString(name string) string {
	s, err := o.ReadString(name)
	if err != nil {
		panic(err)
	}
	return s
}

func (o *Object) GetInteger(name string) wideint.U256 {
	u, err := o.ReadInteger(name)
	if err != nil {
		panic(err)
	}
	return u
}
