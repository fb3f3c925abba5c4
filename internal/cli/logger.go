package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logging environment variables.
const (
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"
)

// NewLogger builds the process logger. level is one of trace, debug, info,
// warn or error (empty means info); format "json" selects JSON output.
func NewLogger(w io.Writer, level, format string) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(w)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		l.SetLevel(logrus.TraceLevel)
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "", "info":
		l.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		return nil, fmt.Errorf("%w: %q (want trace, debug, info, warn or error)", ErrInvalidLogLevel, level)
	}
	return l, nil
}

// logger builds the logger from the environment.
func (e *Env) logger() (*logrus.Logger, error) {
	return NewLogger(e.Stderr, e.Getenv(EnvLogLevel), e.Getenv(EnvLogFormat))
}
