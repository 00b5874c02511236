package gen

import (
	"fmt"
	"io"
	"sync"

	"github.com/mattn/go-colorable"
)

// DefaultLoggerOptions
type DefaultLoggerOptions struct {
	// Disable makes node to disable default logger
	Disable bool
	// TimeFormat enables output time in the defined format. See https://pkg.go.dev/time#pkg-constants
	// Not defined format makes output time as a timestamp in nanoseconds.
	TimeFormat string
	// IncludeBehavior includes process behavior to the log message
	IncludeBehavior bool
	// EnableColors highlights the level of the message
	EnableColors bool
	// Filter enables filtering log messages.
	Filter []LogLevel
	// Output defines output for the log messages. By default it uses os.Stdout
	// wrapped to handle the escape sequences on Windows consoles.
	Output io.Writer
}

//
// default logger of the node. It uses stdout as an output by default, but can be used
// any io.Writer.
//

func CreateDefaultLogger(options DefaultLoggerOptions) LoggerBehavior {
	var l defaultLogger

	l.out = options.Output
	if l.out == nil {
		l.out = colorable.NewColorableStdout()
	}

	l.format = options.TimeFormat
	l.includeBehavior = options.IncludeBehavior
	l.colors = options.EnableColors

	return &l
}

type defaultLogger struct {
	sync.Mutex
	out             io.Writer
	format          string
	includeBehavior bool
	colors          bool
}

var levelColors = map[LogLevel]string{
	LogLevelTrace:   "\x1b[90m",
	LogLevelDebug:   "\x1b[36m",
	LogLevelInfo:    "\x1b[32m",
	LogLevelWarning: "\x1b[33m",
	LogLevelError:   "\x1b[31m",
	LogLevelPanic:   "\x1b[1;31m",
}

func (l *defaultLogger) Log(m MessageLog) {
	var t string
	var source string
	var behavior string

	if l.format == "" {
		t = fmt.Sprintf("%d", m.Time.UnixNano())
	} else {
		t = m.Time.Format(l.format)
	}

	switch src := m.Source.(type) {
	case MessageLogNode:
		source = src.Node.String()
	case MessageLogProcess:
		if l.includeBehavior {
			behavior = " " + src.Behavior
		}
		source = src.PID.String()
	default:
		panic(fmt.Sprintf("unknown log source type: %#v", m.Source))
	}

	level := m.Level.String()
	if color, found := levelColors[m.Level]; found && l.colors {
		level = color + level + "\x1b[0m"
	}

	message := fmt.Sprintf(m.Format, m.Args...)

	l.Lock()
	defer l.Unlock()
	_, err := fmt.Fprintf(l.out, "%s [%s] %s%s: %s\n", t, level, source, behavior, message)
	if err != nil {
		fmt.Printf("(fallback) %s [%s] %s%s: %s\n", t, level, source, behavior, message)
	}
}

func (l *defaultLogger) Terminate() {}
