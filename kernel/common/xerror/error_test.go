package xerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	err := ErrNotOwner.More("address %x", []byte{0xd6})
	assert.True(t, errors.Is(err, ErrNotOwner))
	assert.False(t, errors.Is(err, ErrConditionFalse))

	wrapped := fmt.Errorf("execute contract: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotOwner))
	assert.Equal(t, KindAuthorization, KindOf(wrapped))
	assert.Equal(t, 40301, CodeOf(wrapped))
}

func TestWrapCause(t *testing.T) {
	cause := errors.New("disk full")
	err := ErrStorage.Wrap(cause)
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrStorage))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsConsensus(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestCastError(t *testing.T) {
	assert.Nil(t, CastError(nil))
	assert.Equal(t, 0, CodeOf(nil))

	plain := errors.New("boom")
	assert.Equal(t, ErrUnknown.Code, CodeOf(plain))
	assert.Equal(t, KindResource, KindOf(plain))

	assert.True(t, IsConsensus(ErrPostState))
	assert.Equal(t, "consistency", ErrPostState.Status.String())
}

func TestCodesUnique(t *testing.T) {
	all := []*Error{
		ErrUnknown, ErrTruncated, ErrUnknownOpcode, ErrUnknownFieldType, ErrFieldTypeMismatch,
		ErrInvalidAddress, ErrDuplicateField, ErrFieldNotFound, ErrFieldImmutable, ErrFieldSize,
		ErrRegisterNotFound, ErrRegisterExists, ErrRegisterType, ErrRegisterSize, ErrStandard,
		ErrInsufficient, ErrOverflow, ErrSecondPrimitive, ErrInvalidOperand,
		ErrConditionMalformed, ErrBadPhase, ErrTokenMismatch, ErrProofSpent, ErrReservedName,
		ErrTxHandled, ErrInvalidReference, ErrNotOwner, ErrConditionFalse, ErrSignature,
		ErrSlotDisabled, ErrKeyMismatch, ErrNotRecipient, ErrNotTransferable, ErrPostState,
		ErrPreState, ErrStorage, ErrConflict, ErrSpeculativeCommit, ErrScopeClosed,
	}
	seen := make(map[int]bool)
	for _, e := range all {
		if seen[e.Code] {
			t.Fatalf("duplicate error code %d", e.Code)
		}
		seen[e.Code] = true
		if e.Code/100 != int(e.Status) {
			t.Errorf("code %d outside of status class %d", e.Code, e.Status)
		}
	}
}
