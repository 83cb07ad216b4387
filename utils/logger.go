package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int32

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = [...]string{DEBUG: "DEBUG", INFO: "INFO", WARN: "WARN", ERROR: "ERROR"}

func (l LogLevel) String() string {
	if l < DEBUG || l > ERROR {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLogLevel maps a config value such as "debug" to a LogLevel. Unknown
// values fall back to INFO.
func ParseLogLevel(s string) LogLevel {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARNING" {
		return WARN
	}
	for lvl, n := range levelNames {
		if n == name {
			return LogLevel(lvl)
		}
	}
	return INFO
}

// Logger writes one line per entry: time, level, message and the attached
// fields as sorted key=value pairs. Children created with WithField share the
// parent's output and level.
type Logger struct {
	out    *log.Logger
	level  *atomic.Int32
	fields string
	kv     map[string]interface{}
}

func NewLogger(level LogLevel) *Logger {
	return NewLoggerTo(os.Stdout, level)
}

// NewLoggerTo creates a logger writing to w
func NewLoggerTo(w io.Writer, level LogLevel) *Logger {
	l := &Logger{out: log.New(w, "", 0), level: new(atomic.Int32)}
	l.level.Store(int32(level))
	return l
}

func (l *Logger) emit(level LogLevel, format string, v []interface{}) {
	if int32(level) < l.level.Load() {
		return
	}
	msg := fmt.Sprintf(format, v...)
	l.out.Printf("%s level=%s msg=%q%s", time.Now().Format(time.RFC3339), level, msg, l.fields)
}

func (l *Logger) Debug(format string, v ...interface{}) { l.emit(DEBUG, format, v) }
func (l *Logger) Info(format string, v ...interface{})  { l.emit(INFO, format, v) }
func (l *Logger) Warn(format string, v ...interface{})  { l.emit(WARN, format, v) }
func (l *Logger) Error(format string, v ...interface{}) { l.emit(ERROR, format, v) }

// WithFields returns a child logger carrying the merged fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	kv := make(map[string]interface{}, len(l.kv)+len(fields))
	for k, v := range l.kv {
		kv[k] = v
	}
	for k, v := range fields {
		kv[k] = v
	}

	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, kv[k])
	}

	return &Logger{out: l.out, level: l.level, fields: b.String(), kv: kv}
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// SetLevel changes the level for this logger and every logger derived from it.
func (l *Logger) SetLevel(level LogLevel) {
	l.level.Store(int32(level))
}

// Log is the process-wide logger.
var Log = NewLogger(INFO)
