package logs

import (
	"fmt"
	"io"
	"os"

	log "github.com/xuperchain/log15"
)

// LogBufSize define log buffer channel size
const LogBufSize = 102400

// OpenLog create and open log stream using LogConf
func OpenLog(lc *LogConf) (LogDriver, error) {
	infoFile := lc.Filepath + "/" + lc.Filename + ".log"
	wfFile := lc.Filepath + "/" + lc.Filename + ".log.wf"
	if err := os.MkdirAll(lc.Filepath, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create log dir failed.path:%s,err:%v", lc.Filepath, err)
	}

	lfmt := log.LogfmtFormat()
	switch lc.Fmt {
	case "json":
		lfmt = log.JsonFormat()
	}

	xlog := log.New("module", lc.Module)
	lvLevel, err := log.LvlFromString(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("log level error.err:%v", err)
	}
	// set lowest level as level limit, this may improve performance
	xlog.SetLevelLimit(lvLevel)

	// RotateFileHandler only valid if `RotateInterval` and `RotateBackups` greater than 0
	var (
		nmHandler log.Handler
		wfHandler log.Handler
	)
	if lc.RotateInterval > 0 && lc.RotateBackups > 0 {
		nmHandler = log.Must.RotateFileHandler(
			infoFile, lfmt, lc.RotateInterval, lc.RotateBackups)
		wfHandler = log.Must.RotateFileHandler(
			wfFile, lfmt, lc.RotateInterval, lc.RotateBackups)
	} else {
		nmHandler = log.Must.FileHandler(infoFile, lfmt)
		wfHandler = log.Must.FileHandler(wfFile, lfmt)
	}

	if lc.Async {
		nmHandler = log.BufferedHandler(LogBufSize, nmHandler)
		wfHandler = log.BufferedHandler(LogBufSize, wfHandler)
	}

	// prints log level between `lvLevel` to Info to common log
	nmfileh := log.BoundLvlFilterHandler(lvLevel, log.LvlError, nmHandler)
	// prints log level greater or equal to Warn to wf log
	wffileh := log.LvlFilterHandler(log.LvlWarn, wfHandler)

	var lhd log.Handler
	if lc.Console {
		hstd := log.StreamHandler(os.Stderr, lfmt)
		lhd = log.SyncHandler(log.MultiHandler(hstd, nmfileh, wffileh))
	} else {
		lhd = log.SyncHandler(log.MultiHandler(nmfileh, wffileh))
	}
	xlog.SetHandler(lhd)

	return xlog, nil
}

// NewStreamDriver writes logfmt lines to w. Used by the CLI and tests.
func NewStreamDriver(w io.Writer, level string) (LogDriver, error) {
	lvLevel, err := log.LvlFromString(level)
	if err != nil {
		return nil, fmt.Errorf("log level error.err:%v", err)
	}

	xlog := log.New("module", "xregister")
	xlog.SetLevelLimit(lvLevel)
	xlog.SetHandler(log.LvlFilterHandler(lvLevel, log.StreamHandler(w, log.LogfmtFormat())))
	return xlog, nil
}

// NewNopDriver drops everything.
func NewNopDriver() LogDriver {
	xlog := log.New()
	xlog.SetHandler(log.DiscardHandler())
	return xlog
}

// NewNopLogger is a Logger over NewNopDriver.
func NewNopLogger() Logger {
	lg, _ := NewLogger(NewNopDriver(), "")
	return lg
}
