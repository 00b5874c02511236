package node

import (
	"sync/atomic"
	"time"

	"ergo.services/actor/gen"
)

// gen.Log interface implementation

func createLog(level gen.LogLevel, dolog func(gen.MessageLog)) *log {
	l := &log{
		dolog: dolog,
	}
	l.level.Store(int32(level))
	return l
}

type log struct {
	level  atomic.Int32
	source any
	dolog  func(gen.MessageLog)
}

func (l *log) Level() gen.LogLevel {
	return gen.LogLevel(l.level.Load())
}

func (l *log) SetLevel(level gen.LogLevel) error {
	if level < gen.LogLevelTrace {
		return gen.ErrIncorrect
	}
	if level > gen.LogLevelDisabled {
		return gen.ErrIncorrect
	}
	if level == gen.LogLevelDefault {
		return gen.ErrIncorrect
	}
	l.level.Store(int32(level))
	return nil
}

func (l *log) Trace(format string, args ...any) {
	l.write(gen.LogLevelTrace, format, args)
}

func (l *log) Debug(format string, args ...any) {
	l.write(gen.LogLevelDebug, format, args)
}

func (l *log) Info(format string, args ...any) {
	l.write(gen.LogLevelInfo, format, args)
}

func (l *log) Warning(format string, args ...any) {
	l.write(gen.LogLevelWarning, format, args)
}

func (l *log) Error(format string, args ...any) {
	l.write(gen.LogLevelError, format, args)
}

func (l *log) Panic(format string, args ...any) {
	l.write(gen.LogLevelPanic, format, args)
}

func (l *log) setSource(source any) {
	switch source.(type) {
	case gen.MessageLogProcess, gen.MessageLogNode:
	default:
		panic("unknown source type for log interface")
	}
	l.source = source
}

func (l *log) write(level gen.LogLevel, format string, args []any) {
	if gen.LogLevel(l.level.Load()) > level {
		return
	}

	m := gen.MessageLog{
		Time:   time.Now(),
		Level:  level,
		Source: l.source,
		Format: format,
		Args:   args,
	}
	l.dolog(m)
}
