package xcontext

import (
	"context"
	"fmt"

	"github.com/xuperchain/xregister/lib/logs"
	"github.com/xuperchain/xregister/lib/timer"
)

// OpCtx is the per operation context: one transaction or one block.
// It carries cancellation from the parent and a fresh timer.
type OpCtx struct {
	context.Context
	XLog  logs.Logger
	Timer *timer.XTimer
}

var _ XContext = (*OpCtx)(nil)

func CreateOpCtx(parent context.Context, xlog logs.Logger) (*OpCtx, error) {
	if xlog == nil {
		return nil, fmt.Errorf("create operate context failed because some param are missing")
	}
	if parent == nil {
		parent = context.Background()
	}

	return &OpCtx{
		Context: parent,
		XLog:    xlog,
		Timer:   timer.NewXTimer(),
	}, nil
}

func (t *OpCtx) GetLog() logs.Logger {
	return t.XLog
}

func (t *OpCtx) GetTimer() *timer.XTimer {
	return t.Timer
}

func (t *OpCtx) IsValid() bool {
	return t.Context != nil && t.XLog != nil && t.Timer != nil
}
