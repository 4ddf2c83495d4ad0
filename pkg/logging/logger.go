// Package logging provides structured leveled logging for the diagnostic
// client. Components receive a Logger through their options; nothing in this
// module logs through a global.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is the severity of a log message.
type Level int

const (
	DebugLevel Level = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = map[Level]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// Field is one key-value pair attached to a log message.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field             { return Field{key, value} }
func Int(key string, value int) Field            { return Field{key, value} }
func Bool(key string, value bool) Field          { return Field{key, value} }
func Duration(key string, d time.Duration) Field { return Field{key, d} }
func Any(key string, value interface{}) Field    { return Field{key, value} }

// ErrorField attaches an error under the conventional "error" key.
func ErrorField(err error) Field { return Field{"error", err} }

// Logger is what every component in this module logs through.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithFields returns a child logger whose messages always carry the
	// given fields. A "component" field becomes the entry header.
	WithFields(fields ...Field) Logger

	SetLevel(level Level)
	GetLevel() Level
}

// Entry is one message handed to a Formatter. Fields preserve the order they
// were attached in, inherited fields first.
type Entry struct {
	Level     Level
	Message   string
	Fields    []Field
	Timestamp time.Time
	Component string
}

// Formatter renders entries to bytes, one entry per call.
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

type logger struct {
	mu        sync.Mutex
	level     Level
	output    io.Writer
	formatter Formatter
	bound     []Field
	component string
}

// New creates a logger writing to output in the given format. A nil output
// defaults to stderr, a nil formatter to text. The initial level is Info.
func New(output io.Writer, formatter Formatter) Logger {
	if output == nil {
		output = os.Stderr
	}
	if formatter == nil {
		formatter = NewTextFormatter()
	}
	return &logger{level: InfoLevel, output: output, formatter: formatter}
}

func (l *logger) Debug(msg string, fields ...Field) { l.emit(DebugLevel, msg, fields) }
func (l *logger) Info(msg string, fields ...Field)  { l.emit(InfoLevel, msg, fields) }
func (l *logger) Warn(msg string, fields ...Field)  { l.emit(WarnLevel, msg, fields) }
func (l *logger) Error(msg string, fields ...Field) { l.emit(ErrorLevel, msg, fields) }

func (l *logger) WithFields(fields ...Field) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	child := &logger{
		level:     l.level,
		output:    l.output,
		formatter: l.formatter,
		component: l.component,
	}
	child.bound = append(append([]Field(nil), l.bound...), fields...)
	for _, f := range fields {
		if f.Key == "component" {
			if name, ok := f.Value.(string); ok {
				child.component = name
			}
		}
	}
	return child
}

func (l *logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *logger) GetLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *logger) emit(level Level, msg string, fields []Field) {
	l.mu.Lock()
	if level < l.level {
		l.mu.Unlock()
		return
	}

	entry := Entry{
		Level:     level,
		Message:   msg,
		Fields:    append(append([]Field(nil), l.bound...), fields...),
		Timestamp: time.Now(),
		Component: l.component,
	}
	l.mu.Unlock()

	for _, f := range fields {
		if f.Key == "component" {
			if name, ok := f.Value.(string); ok {
				entry.Component = name
			}
		}
	}

	data, err := l.formatter.Format(&entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: bad entry: %v\n", err)
		return
	}

	l.mu.Lock()
	_, werr := l.output.Write(data)
	l.mu.Unlock()
	if werr != nil {
		fmt.Fprintf(os.Stderr, "logging: write failed: %v\n", werr)
	}
}

type nopLogger struct{}

// NewNop returns a logger that discards everything. It is the default when a
// component is constructed without a logger.
func NewNop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...Field)       {}
func (nopLogger) Info(string, ...Field)        {}
func (nopLogger) Warn(string, ...Field)        {}
func (nopLogger) Error(string, ...Field)       {}
func (n nopLogger) WithFields(...Field) Logger { return n }
func (nopLogger) SetLevel(Level)               {}
func (nopLogger) GetLevel() Level              { return ErrorLevel }
