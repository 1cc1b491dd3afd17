package register

import (
	"fmt"

	"github.com/xuperchain/xregister/kernel/common/xerror"
	"github.com/xuperchain/xregister/lib/wideint"
)

// Standard is the structural classification of an object.
type Standard uint8

const (
	StandardNonstandard Standard = iota
	StandardAccount
	StandardToken
	StandardTrust
	StandardCrypto
	StandardName
	StandardNamespace
)

func (s Standard) String() string {
	switch s {
	case StandardAccount:
		return "account"
	case StandardToken:
		return "token"
	case StandardTrust:
		return "trust"
	case StandardCrypto:
		return "crypto"
	case StandardName:
		return "name"
	case StandardNamespace:
		return "namespace"
	}
	return "nonstandard"
}

// AddressType is the address type an object of this standard is created under.
func (s Standard) AddressType() uint8 {
	switch s {
	case StandardAccount:
		return AddrAccount
	case StandardToken:
		return AddrToken
	case StandardTrust:
		return AddrTrust
	case StandardCrypto:
		return AddrCrypto
	case StandardName:
		return AddrName
	case StandardNamespace:
		return AddrNamespace
	}
	return AddrObject
}

// crypto register key slots, in payload order
var CryptoSlots = []string{
	"auth", "lisp", "network", "sign", "verify", "cert", "app1", "app2", "app3",
}

// Standard classifies the object, most specific match first.
func (o *Object) Standard() Standard {
	switch {
	case o.hasType("namespace", TypeString) && o.hasType("name", TypeString) &&
		o.hasType("address", TypeUint256):
		return StandardName
	case o.hasType("namespace", TypeString) && !o.Has("name"):
		return StandardNamespace
	case o.isCrypto():
		return StandardCrypto
	}

	if !o.isAccount() {
		return StandardNonstandard
	}
	if o.hasType("trust", TypeUint64) && o.hasType("stake", TypeUint64) {
		return StandardTrust
	}
	if o.hasType("supply", TypeUint64) && o.hasInteger("digits") {
		if id, err := o.ReadInteger("identifier"); err == nil && id.IsZero() {
			return StandardToken
		}
	}
	return StandardAccount
}

// Base folds the account refinements back into ACCOUNT.
func (o *Object) Base() Standard {
	switch s := o.Standard(); s {
	case StandardTrust, StandardToken:
		return StandardAccount
	default:
		return s
	}
}

// Token returns the token an account-based object is denominated in. The zero
// value stands for the native coin; a token register is its own token.
func (o *Object) Token(self Address) (wideint.U256, error) {
	if o.Base() != StandardAccount {
		return wideint.U256{}, xerror.ErrStandard.More("not an account")
	}
	if o.Standard() == StandardToken {
		return self.U256(), nil
	}
	return o.ReadInteger("identifier")
}

// Validate checks the creation rules of the object's standard.
func (o *Object) Validate() error {
	switch o.Standard() {
	case StandardAccount:
		if o.GetU64("balance") != 0 {
			return xerror.ErrStandard.More("account balance must start at zero")
		}
	case StandardTrust:
		if o.GetU64("balance") != 0 || o.GetU64("trust") != 0 || o.GetU64("stake") != 0 {
			return xerror.ErrStandard.More("trust values must start at zero")
		}
		if !o.GetInteger("identifier").IsZero() {
			return xerror.ErrStandard.More("trust account holds native coin only")
		}
	case StandardToken:
		if o.GetU64("balance") != o.GetU64("supply") {
			return xerror.ErrStandard.More("token balance must equal supply")
		}
		digits := o.GetInteger("digits")
		if !digits.FitsUint64() || digits.Uint64() > MaxTokenDigits {
			return xerror.ErrStandard.More("token digits %s", fmt.Sprint(digits.Big()))
		}
	}
	return nil
}

// MaxTokenDigits bounds the decimal places of a token.
const MaxTokenDigits = 8

func (o *Object) isAccount() bool {
	return o.hasType("balance", TypeUint64) && o.hasInteger("identifier")
}

func (o *Object) isCrypto() bool {
	for _, slot := range CryptoSlots {
		if !o.hasType(slot, TypeUint256) {
			return false
		}
	}
	return true
}

func (o *Object) hasType(name string, typ FieldType) bool {
	t, ok := o.FieldType(name)
	return ok && t == typ
}

func (o *Object) hasInteger(name string) bool {
	t, ok := o.FieldType(name)
	if !ok || !t.IsInteger() {
		return false
	}
	_, err := o.ReadInteger(name)
	return err == nil
}
