package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// LogLevel orders log severities; higher is more severe.
type LogLevel int

const (
	Critical LogLevel = 50
	Fatal    LogLevel = Critical
	Error    LogLevel = 40
	Warning  LogLevel = 30
	Info     LogLevel = 20
	Debug    LogLevel = 10
	NotSet   LogLevel = 0
)

var defaultLevel atomic.Int64

func init() {
	defaultLevel.Store(int64(Warning))
}

// SetDefaultLogLevel changes the level of loggers created afterwards without an explicit level.
func SetDefaultLogLevel(level LogLevel) {
	defaultLevel.Store(int64(level))
}

// ParseLogLevel maps a level name to a LogLevel. Unknown names return Warning.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "info":
		return Info
	case "error":
		return Error
	case "critical", "fatal":
		return Critical
	default:
		return Warning
	}
}

// Logger writes "msg key=value ..." lines for one component.
type Logger struct {
	component string
	out       *log.Logger
	level     atomic.Int64
}

// NewLogger returns a logger for component, writing to stdout.
func NewLogger(component string, level ...LogLevel) *Logger {
	l := &Logger{component: component}
	l.SetOutput(os.Stdout)
	lvl := LogLevel(defaultLevel.Load())
	if len(level) > 0 {
		lvl = level[0]
	}
	l.SetLogLevel(lvl)
	return l
}

// SetOutput redirects the logger, mostly for tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.out = log.New(w, "["+l.component+"] ", log.LstdFlags)
}

func (l *Logger) SetLogLevel(level LogLevel) {
	l.level.Store(int64(level))
}

func (l *Logger) enabled(level LogLevel) bool {
	return LogLevel(l.level.Load()) <= level
}

func (l *Logger) Debug(msg string, keyvals ...interface{}) { l.emit(Debug, "DEBUG", msg, keyvals) }
func (l *Logger) Info(msg string, keyvals ...interface{}) { l.emit(Info, "INFO", msg, keyvals) }
func (l *Logger) Warn(msg string, keyvals ...interface{}) { l.emit(Warning, "WARN", msg, keyvals) }
func (l *Logger) Error(msg string, keyvals ...interface{}) { l.emit(Error, "ERROR", msg, keyvals) }

func (l *Logger) emit(level LogLevel, label, msg string, keyvals []interface{}) {
	if !l.enabled(level) {
		return
	}
	l.out.Println(formatMessage(label, msg, keyvals...))
}

// formatMessage renders pairs as key=value. A trailing key without a value
// is dropped; values containing spaces are quoted.
func formatMessage(level, msg string, keyvals ...interface{}) string {
	var b strings.Builder
	b.WriteString("[" + level + "] " + msg)
	for i := 0; i+1 < len(keyvals); i += 2 {
		v := fmt.Sprint(keyvals[i+1])
		if strings.ContainsAny(v, " \t\n\"") {
			v = strconv.Quote(v)
		}
		fmt.Fprintf(&b, " %v=%s", keyvals[i], v)
	}
	return b.String()
}
