// Package xerror defines the error taxonomy surfaced by the register and
// contract layers. Every error carries a kind (the http style status class) and
// a stable numeric code.
package xerror

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// 输入格式错误，修改前即拒绝，不可重试
	KindMalformed Kind = 400
	// 权限校验失败
	KindAuthorization Kind = 403
	// 回放结果与声明不一致，属于共识错误
	KindConsistency Kind = 409
	// 存储等环境错误，可重试整个事务
	KindResource Kind = 500
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindAuthorization:
		return "authorization"
	case KindConsistency:
		return "consistency"
	case KindResource:
		return "resource"
	}
	return "unknown"
}

type Error struct {
	Status Kind
	Code   int
	Msg    string

	cause error
}

// CastError converts any error to *Error, falling back to ErrUnknown.
func CastError(err error) *Error {
	if err == nil {
		return nil
	}
	var xe *Error
	if errors.As(err, &xe) {
		return xe
	}
	return ErrUnknown.Wrap(err)
}

func (t *Error) Error() string {
	if t.cause != nil {
		return fmt.Sprintf("Err:%d-%d-%s: %v", t.Status, t.Code, t.Msg, t.cause)
	}
	return fmt.Sprintf("Err:%d-%d-%s", t.Status, t.Code, t.Msg)
}

// More returns a copy with extra detail appended to the message.
func (t *Error) More(format string, args ...interface{}) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{t.Status, t.Code, t.Msg + "+" + msg, t.cause}
}

// Wrap returns a copy that records err as its cause.
func (t *Error) Wrap(err error) *Error {
	return &Error{t.Status, t.Code, t.Msg, err}
}

func (t *Error) Unwrap() error {
	return t.cause
}

// Is matches any *Error with the same code, so errors.Is(err, ErrNotOwner)
// holds for decorated copies.
func (t *Error) Is(target error) bool {
	rhs, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Equal(rhs)
}

func (t *Error) Equal(rhs *Error) bool {
	if rhs == nil {
		return false
	}
	return t.Code == rhs.Code
}

func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	return CastError(err).Status
}

func CodeOf(err error) int {
	if err == nil {
		return 0
	}
	return CastError(err).Code
}

// IsConsensus reports whether err marks the contract invalid on every node.
func IsConsensus(err error) bool {
	return KindOf(err) == KindConsistency
}

// IsRetryable reports whether the whole scope may be retried.
func IsRetryable(err error) bool {
	return KindOf(err) == KindResource
}

var (
	ErrUnknown = &Error{KindResource, 50000, "unknown error", nil}

	// malformed input
	ErrTruncated          = &Error{KindMalformed, 40001, "truncated stream", nil}
	ErrUnknownOpcode      = &Error{KindMalformed, 40002, "unknown opcode", nil}
	ErrUnknownFieldType   = &Error{KindMalformed, 40003, "unknown field type", nil}
	ErrFieldTypeMismatch  = &Error{KindMalformed, 40004, "field type mismatch", nil}
	ErrInvalidAddress     = &Error{KindMalformed, 40005, "invalid address", nil}
	ErrDuplicateField     = &Error{KindMalformed, 40006, "duplicate field", nil}
	ErrFieldNotFound      = &Error{KindMalformed, 40007, "field not found", nil}
	ErrFieldImmutable     = &Error{KindMalformed, 40008, "field immutable", nil}
	ErrFieldSize          = &Error{KindMalformed, 40009, "field size exceeded", nil}
	ErrRegisterNotFound   = &Error{KindMalformed, 40010, "register not found", nil}
	ErrRegisterExists     = &Error{KindMalformed, 40011, "register already exists", nil}
	ErrRegisterType       = &Error{KindMalformed, 40012, "invalid register type", nil}
	ErrRegisterSize       = &Error{KindMalformed, 40013, "register size exceeded", nil}
	ErrStandard           = &Error{KindMalformed, 40014, "object standard violation", nil}
	ErrInsufficient       = &Error{KindMalformed, 40015, "insufficient balance", nil}
	ErrOverflow           = &Error{KindMalformed, 40016, "arithmetic overflow", nil}
	ErrSecondPrimitive    = &Error{KindMalformed, 40017, "second primitive", nil}
	ErrInvalidOperand     = &Error{KindMalformed, 40018, "invalid operand", nil}
	ErrConditionMalformed = &Error{KindMalformed, 40019, "malformed condition", nil}
	ErrBadPhase           = &Error{KindMalformed, 40020, "invalid contract phase", nil}
	ErrTokenMismatch      = &Error{KindMalformed, 40021, "token mismatch", nil}
	ErrProofSpent         = &Error{KindMalformed, 40022, "proof already spent", nil}
	ErrReservedName       = &Error{KindMalformed, 40023, "reserved name", nil}
	ErrTxHandled          = &Error{KindMalformed, 40024, "transaction already handled", nil}
	ErrInvalidReference   = &Error{KindMalformed, 40025, "invalid reference", nil}

	// authorization
	ErrNotOwner        = &Error{KindAuthorization, 40301, "not owner", nil}
	ErrConditionFalse  = &Error{KindAuthorization, 40302, "condition not satisfied", nil}
	ErrSignature       = &Error{KindAuthorization, 40303, "signature invalid", nil}
	ErrSlotDisabled    = &Error{KindAuthorization, 40304, "key slot disabled", nil}
	ErrKeyMismatch     = &Error{KindAuthorization, 40305, "derived key mismatch", nil}
	ErrNotRecipient    = &Error{KindAuthorization, 40306, "not recipient", nil}
	ErrNotTransferable = &Error{KindAuthorization, 40307, "register not transferable", nil}

	// consistency
	ErrPostState = &Error{KindConsistency, 40901, "post-state mismatch", nil}
	ErrPreState  = &Error{KindConsistency, 40902, "pre-state mismatch", nil}

	// resource
	ErrStorage           = &Error{KindResource, 50001, "storage failure", nil}
	ErrConflict          = &Error{KindResource, 50002, "scope conflict", nil}
	ErrSpeculativeCommit = &Error{KindResource, 50003, "speculative scope cannot commit", nil}
	ErrScopeClosed       = &Error{KindResource, 50004, "scope closed", nil}
)
