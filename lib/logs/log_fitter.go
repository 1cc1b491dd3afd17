package logs

import (
	"fmt"
	"os"
	"sync"

	"github.com/xuperchain/xregister/lib/utils"
)

// Reserve common key
const (
	CommFieldLogId = "log_id"
	CommFieldPid   = "pid"
	CommFieldCall  = "call"
)

// frames between the caller and runtime.Caller: GetFuncCall, emit, level method
const DefaultCallDepth = 3

// 底层日志库约束接口
type LogDriver interface {
	Error(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
}

// Logger prefixes every line with log_id, call and pid, then the common
// fields. Info lines also carry the pending info fields, once.
type Logger interface {
	GetLogId() string
	SetCommField(key string, value interface{})
	SetInfoField(key string, value interface{})
	// With returns a logger with extra common fields. The receiver is unchanged.
	With(ctx ...interface{}) Logger
	Error(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
}

type LogFitter struct {
	driver LogDriver
	logId  string
	pid    int
	depth  int

	mu   sync.Mutex
	comm []interface{}
	info []interface{}
}

func NewLogger(driver LogDriver, logId string) (*LogFitter, error) {
	if driver == nil {
		return nil, fmt.Errorf("new logger param error")
	}
	if logId == "" {
		logId = utils.GenLogId()
	}

	return &LogFitter{
		driver: driver,
		logId:  logId,
		pid:    os.Getpid(),
		depth:  DefaultCallDepth,
	}, nil
}

func (t *LogFitter) GetLogId() string {
	return t.logId
}

func (t *LogFitter) SetCommField(key string, value interface{}) {
	if key == "" || value == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.comm = append(t.comm, key, value)
}

func (t *LogFitter) SetInfoField(key string, value interface{}) {
	if key == "" || value == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.info = append(t.info, key, value)
}

func (t *LogFitter) With(ctx ...interface{}) Logger {
	child := &LogFitter{
		driver: t.driver,
		logId:  t.logId,
		pid:    t.pid,
		depth:  t.depth,
	}
	t.mu.Lock()
	child.comm = append(append([]interface{}(nil), t.comm...), pairs(ctx)...)
	t.mu.Unlock()
	return child
}

func (t *LogFitter) Error(msg string, ctx ...interface{}) {
	t.emit(t.driver.Error, false, msg, ctx)
}

func (t *LogFitter) Warn(msg string, ctx ...interface{}) {
	t.emit(t.driver.Warn, false, msg, ctx)
}

func (t *LogFitter) Info(msg string, ctx ...interface{}) {
	t.emit(t.driver.Info, true, msg, ctx)
}

func (t *LogFitter) Trace(msg string, ctx ...interface{}) {
	t.emit(t.driver.Trace, false, msg, ctx)
}

func (t *LogFitter) Debug(msg string, ctx ...interface{}) {
	t.emit(t.driver.Debug, false, msg, ctx)
}

func (t *LogFitter) emit(out func(string, ...interface{}), drain bool, msg string, ctx []interface{}) {
	ctx = pairs(ctx)
	// 调用方传入log_id时替换默认值
	var logId interface{} = t.logId
	if len(ctx) > 1 && fmt.Sprintf("%v", ctx[0]) == CommFieldLogId {
		logId, ctx = ctx[1], ctx[2:]
	}
	call, _ := utils.GetFuncCall(t.depth)

	fields := make([]interface{}, 0, 6+len(ctx))
	fields = append(fields, CommFieldLogId, logId, CommFieldCall, call, CommFieldPid, t.pid)
	t.mu.Lock()
	fields = append(fields, t.comm...)
	if drain {
		fields = append(fields, t.info...)
		t.info = t.info[:0]
	}
	t.mu.Unlock()

	out(msg, append(fields, ctx...)...)
}

// pairs turns a dangling value into an "unknown" pair.
func pairs(ctx []interface{}) []interface{} {
	if len(ctx)%2 == 0 {
		return ctx
	}
	out := make([]interface{}, 0, len(ctx)+1)
	out = append(out, ctx[:len(ctx)-1]...)
	return append(out, "unknown", ctx[len(ctx)-1])
}
