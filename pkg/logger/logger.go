package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARNING
	ERROR
	SILENCE
)

var levelNames = map[Level]string{
	DEBUG:   "DEBUG",
	INFO:    "INFO",
	WARNING: "WARN",
	ERROR:   "ERROR",
}

type Logger interface {
	Debugf(msg string, a ...any)
	Infof(msg string, a ...any)
	Warnf(msg string, a ...any)
	Errorf(msg string, a ...any)
}

type levelLogger struct {
	min Level
	out *log.Logger
}

func NewLogger(level Level) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter writes lines prefixed by time and level to w.
func NewLoggerWithWriter(level Level, w io.Writer) Logger {
	return &levelLogger{min: level, out: log.New(w, "", log.LstdFlags|log.LUTC)}
}

// ParseLevel converts a level name from the configuration. Unknown names fall
// back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARNING
	case "error":
		return ERROR
	case "silence", "silent", "none":
		return SILENCE
	default:
		return INFO
	}
}

func (l *levelLogger) logf(level Level, msg string, a []any) {
	if level < l.min {
		return
	}

	l.out.Printf("[%s] %s", levelNames[level], fmt.Sprintf(msg, a...))
}

func (l *levelLogger) Debugf(msg string, a ...any) { l.logf(DEBUG, msg, a) }
func (l *levelLogger) Infof(msg string, a ...any)  { l.logf(INFO, msg, a) }
func (l *levelLogger) Warnf(msg string, a ...any)  { l.logf(WARNING, msg, a) }
func (l *levelLogger) Errorf(msg string, a ...any) { l.logf(ERROR, msg, a) }
