// 定义公共上下文结构，各模块通过它统一注入日志和计时器
package xcontext

import (
	"github.com/xuperchain/xregister/lib/logs"
	"github.com/xuperchain/xregister/lib/timer"
)

type XContext interface {
	GetLog() logs.Logger
	GetTimer() *timer.XTimer
}

// BaseCtx is embedded by module construction contexts. Unset members fall
// back to a discarding logger and a fresh timer.
type BaseCtx struct {
	XLog  logs.Logger
	Timer *timer.XTimer
}

func (t *BaseCtx) GetLog() logs.Logger {
	if t == nil || t.XLog == nil {
		return logs.NewNopLogger()
	}
	return t.XLog
}

func (t *BaseCtx) GetTimer() *timer.XTimer {
	if t == nil || t.Timer == nil {
		return timer.NewXTimer()
	}
	return t.Timer
}
