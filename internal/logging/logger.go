package logging

import (
	"log"
	"os"
	"strings"
	"sync"
)

const (
	Critical = 50
	Fatal    = Critical
	Error    = 40
	Warning  = 30
	Info     = 20
	Debug    = 10
	NotSet   = 0
)

var (
	LogLevel      int = Warning
	logLevelMutex sync.RWMutex
)

var levelNames = map[string]int{
	"critical": Critical,
	"error":    Error,
	"warning":  Warning,
	"warn":     Warning,
	"info":     Info,
	"debug":    Debug,
}

func init() {
	if level, ok := ParseLevel(os.Getenv("LOG_LEVEL")); ok {
		SetLogLevel(level)
	}
	localEnv := os.Getenv("LOCAL")
	if strings.ToLower(localEnv) == "true" || localEnv == "1" {
		SetLogLevel(Debug)
	}
}

// ParseLevel maps a level name such as "info" to its value.
func ParseLevel(name string) (int, bool) {
	level, ok := levelNames[strings.ToLower(strings.TrimSpace(name))]
	return level, ok
}

func SetLogLevel(level int) {
	logLevelMutex.Lock()
	defer logLevelMutex.Unlock()
	LogLevel = level
}

// Enabled reports whether messages at level are printed.
func Enabled(level int) bool {
	logLevelMutex.RLock()
	defer logLevelMutex.RUnlock()
	return LogLevel <= level
}

func logf(level int, tag, format string, v ...interface{}) {
	if Enabled(level) {
		log.Printf("["+tag+"] "+format, v...)
	}
}

func Debugf(format string, v ...interface{}) {
	logf(Debug, "DEBUG", format, v...)
}

func Infof(format string, v ...interface{}) {
	logf(Info, "INFO", format, v...)
}

func Warningf(format string, v ...interface{}) {
	logf(Warning, "WARN", format, v...)
}

func Errorf(format string, v ...interface{}) {
	logf(Error, "ERROR", format, v...)
}

func Criticalf(format string, v ...interface{}) {
	logf(Critical, "CRITICAL", format, v...)
}

func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}
