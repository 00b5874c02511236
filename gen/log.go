package gen

import (
	"fmt"
)

type LogLevel int

const (
	LogLevelTrace LogLevel = -2
	LogLevelDebug LogLevel = -1
	// LogLevelDefault makes process inherit the level of the node
	LogLevelDefault  LogLevel = 0
	LogLevelInfo     LogLevel = 1
	LogLevelWarning  LogLevel = 2
	LogLevelError    LogLevel = 3
	LogLevelPanic    LogLevel = 4
	LogLevelDisabled LogLevel = 5
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelTrace:
		return "trace"
	case LogLevelDebug:
		return "debug"
	case LogLevelDefault:
		return "default"
	case LogLevelInfo:
		return "info"
	case LogLevelWarning:
		return "warning"
	case LogLevelError:
		return "error"
	case LogLevelPanic:
		return "panic"
	case LogLevelDisabled:
		return "disabled"
	}
	return fmt.Sprintf("level#%d", int(l))
}

func (l LogLevel) MarshalJSON() ([]byte, error) {
	return []byte("\"" + l.String() + "\""), nil
}

// ParseLogLevel converts the level name (as String returns it) back.
func ParseLogLevel(s string) (LogLevel, error) {
	for l := LogLevelTrace; l <= LogLevelDisabled; l++ {
		if l.String() == s {
			return l, nil
		}
	}
	return LogLevelDefault, fmt.Errorf("%w: unknown log level %q", ErrIncorrect, s)
}

type Log interface {
	Level() LogLevel
	SetLevel(level LogLevel) error

	Trace(format string, args ...any)
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warning(format string, args ...any)
	Error(format string, args ...any)
	Panic(format string, args ...any)
}

type LoggerBehavior interface {
	Log(message MessageLog)
	Terminate()
}
