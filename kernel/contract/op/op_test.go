package op

import "testing"

func TestOpcodeClasses(t *testing.T) {
	for o := Write; o <= Legacy; o++ {
		if !o.IsPrimitive() || !o.Known() {
			t.Errorf("%s should be a known primitive", o)
		}
	}
	if Condition.IsPrimitive() || Group.IsPrimitive() {
		t.Error("structural opcodes are not primitives")
	}
	if !Debit.Conditional() || !Transfer.Conditional() || Write.Conditional() {
		t.Error("only debit and transfer carry conditions")
	}
	if Opcode(0xee).Known() {
		t.Error("0xee is not an opcode")
	}
	if got := CallerPrestateValue.String(); got != "CALLER::PRESTATE::VALUE" {
		t.Errorf("unexpected name %s", got)
	}
	if got := Opcode(0xee).String(); got != "UNKNOWN(0xee)" {
		t.Errorf("unexpected name %s", got)
	}
}
