// Package logger holds the process-wide logrus logger used by every hopper package.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// EnvLevel names the environment variable that enables logging.
const EnvLevel = "HOPPER_LOG_LEVEL"

var (
	log  *Logger
	once sync.Once
)

type Fields = logrus.Fields

type Logger struct {
	*logrus.Logger
}

type Entry struct {
	*logrus.Entry
}

func (l *Logger) WithField(key string, value interface{}) *Entry {
	return &Entry{l.Logger.WithField(key, value)}
}

func (l *Logger) WithFields(fields Fields) *Entry {
	return &Entry{l.Logger.WithFields(fields)}
}

func (l *Logger) WithError(err error) *Entry {
	return &Entry{l.Logger.WithError(err)}
}

func (e *Entry) WithField(key string, value interface{}) *Entry {
	return &Entry{e.Entry.WithField(key, value)}
}

func (e *Entry) WithFields(fields Fields) *Entry {
	return &Entry{e.Entry.WithFields(fields)}
}

func (e *Entry) WithError(err error) *Entry {
	return &Entry{e.Entry.WithError(err)}
}

// SetLevelString parses level and applies it. An empty level or "off" silences the logger.
func (l *Logger) SetLevelString(level string) {
	if level == "" || strings.EqualFold(level, "off") {
		l.SetOutput(io.Discard)
		l.SetLevel(logrus.PanicLevel)
		return
	}
	l.SetOutput(os.Stderr)
	switch strings.ToLower(level) {
	case "trace":
		l.SetLevel(logrus.TraceLevel)
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "info":
		l.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.DebugLevel)
	}
}

func initialize() {
	once.Do(func() {
		log = &Logger{logrus.New()}
		// We do not want to log by default
		log.SetLevelString(os.Getenv(EnvLevel))
		log.WithField("level", log.GetLevel()).Debug("Logging enabled.")
	})
}

// GetLogger returns the process-wide Logger.
func GetLogger() *Logger {
	initialize()
	return log
}

// New returns a Logger writing to w at level, independent of the process-wide one.
func New(w io.Writer, level logrus.Level) *Logger {
	l := &Logger{logrus.New()}
	l.SetOutput(w)
	l.SetLevel(level)
	return l
}
