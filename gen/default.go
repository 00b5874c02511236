package gen

import (
	"time"
)

var (
	DefaultRequestTimeout time.Duration = 5 * time.Second
	DefaultPeerTimeout    time.Duration = 5 * time.Second

	DefaultLogFilter = []LogLevel{
		LogLevelTrace,
		LogLevelDebug,
		LogLevelInfo,
		LogLevelWarning,
		LogLevelError,
		LogLevelPanic,
	}

	DefaultLogLevel = LogLevelInfo
)
