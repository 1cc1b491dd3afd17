package register

import (
	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/lib/stream"
	"github.com/xuperchain/xregister/lib/wideint"
)

// ObjectBuilder assembles an object payload field by field.
type ObjectBuilder struct {
	w     *stream.Writer
	names map[string]bool
	err   error
}

func NewObjectBuilder() *ObjectBuilder {
	return &ObjectBuilder{w: stream.NewWriter(), names: make(map[string]bool)}
}

func (b *ObjectBuilder) Mutable(name string, v Value) *ObjectBuilder {
	return b.add(name, v, true)
}

func (b *ObjectBuilder) Immutable(name string, v Value) *ObjectBuilder {
	return b.add(name, v, false)
}

func (b *ObjectBuilder) add(name string, v Value, mutable bool) *ObjectBuilder {
	if b.err != nil {
		return b
	}
	if name == "" {
		b.err = xerror.ErrInvalidOperand.More("empty field name")
		return b
	}
	if b.names[name] {
		b.err = xerror.ErrDuplicateField.More("%s", name)
		return b
	}
	if !v.Type.Valid() {
		b.err = xerror.ErrUnknownFieldType.More("%s", name)
		return b
	}
	b.names[name] = true
	b.w.VarString(name)
	if mutable {
		b.w.U8(FieldMutable)
	}
	v.encode(b.w)
	return b
}

func (b *ObjectBuilder) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return append([]byte(nil), b.w.Bytes()...), nil
}

// MustBytes panics on a builder error.
func (b *ObjectBuilder) MustBytes() []byte {
	raw, err := b.Bytes()
	if err != nil {
		panic(err)
	}
	return raw
}

// CreateAccount returns the payload of an empty account of token (zero for the
// native coin).
func CreateAccount(token wideint.U256) []byte {
	return NewObjectBuilder().
		Mutable("balance", U64(0)).
		Immutable("identifier", U256(token)).
		MustBytes()
}

func CreateToken(supply uint64, digits uint8) []byte {
	return NewObjectBuilder().
		Mutable("balance", U64(supply)).
		Immutable("identifier", U256(wideint.U256{})).
		Immutable("supply", U64(supply)).
		Immutable("digits", U8(digits)).
		MustBytes()
}

func CreateTrust() []byte {
	return NewObjectBuilder().
		Mutable("balance", U64(0)).
		Immutable("identifier", U256(wideint.U256{})).
		Mutable("trust", U64(0)).
		Mutable("stake", U64(0)).
		MustBytes()
}

// CreateName returns a name record pointing at target.
func CreateName(namespace, name string, target Address) []byte {
	return NewObjectBuilder().
		Immutable("namespace", Str(namespace)).
		Immutable("name", Str(name)).
		Mutable("address", U256(target.U256())).
		MustBytes()
}

func CreateNamespace(namespace string) []byte {
	return NewObjectBuilder().
		Immutable("namespace", Str(namespace)).
		MustBytes()
}

// CreateCrypto returns a crypto register with every slot mutable. Missing
// slots are disabled.
func CreateCrypto(slots map[string]wideint.U256) []byte {
	b := NewObjectBuilder()
	for _, name := range CryptoSlots {
		b.Mutable(name, U256(slots[name]))
	}
	return b.MustBytes()
}

// NewObjectState wraps a payload into an OBJECT state.
func NewObjectState(owner Address, ts uint64, payload []byte) *State {
	s := NewState(StateObject)
	s.Owner = owner
	s.Created = ts
	s.Modified = ts
	s.SetState(payload)
	s.SetChecksum()
	return s
}
