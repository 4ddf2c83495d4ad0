package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const defaultTimestampFormat = "2006-01-02 15:04:05.000"

// TextFormatter renders entries as single lines for terminals:
//
//	2026-01-02 13:04:05.000 [INFO] launcher: Server started | address=http://localhost:3000
type TextFormatter struct {
	TimestampFormat  string
	DisableColors    bool
	DisableTimestamp bool
}

func NewTextFormatter() *TextFormatter {
	return &TextFormatter{TimestampFormat: defaultTimestampFormat}
}

func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var buf bytes.Buffer

	if !f.DisableTimestamp {
		buf.WriteString(entry.Timestamp.Format(f.TimestampFormat))
		buf.WriteByte(' ')
	}

	level := "[" + entry.Level.String() + "]"
	if !f.DisableColors {
		level = colorize(entry.Level, level)
	}
	buf.WriteString(level)
	buf.WriteByte(' ')

	if entry.Component != "" {
		buf.WriteString(entry.Component)
		buf.WriteString(": ")
	}
	buf.WriteString(entry.Message)

	pairs := make([]string, 0, len(entry.Fields))
	for _, field := range entry.Fields {
		if field.Key == "component" && entry.Component != "" {
			continue
		}
		pairs = append(pairs, field.Key+"="+quoteValue(field.Value))
	}
	if len(pairs) > 0 {
		// Sorted so lines are stable under field reordering.
		sort.Strings(pairs)
		buf.WriteString(" | ")
		buf.WriteString(strings.Join(pairs, " "))
	}

	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// quoteValue renders a field value, quoting anything with spaces in it so the
// line stays splittable.
func quoteValue(v interface{}) string {
	var s string
	switch val := v.(type) {
	case error:
		s = val.Error()
	case string:
		s = val
	default:
		s = fmt.Sprintf("%v", v)
	}
	if strings.ContainsAny(s, " \t") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

func colorize(level Level, text string) string {
	const reset = "\033[0m"
	switch level {
	case DebugLevel:
		return "\033[90m" + text + reset
	case InfoLevel:
		return "\033[34m" + text + reset
	case WarnLevel:
		return "\033[33m" + text + reset
	case ErrorLevel:
		return "\033[31m" + text + reset
	}
	return text
}

// JSONFormatter renders entries as one JSON object per line, fields flattened
// into the top level. Later fields win on key collision.
type JSONFormatter struct {
	TimestampFormat  string
	DisableTimestamp bool
}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
}

func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	doc := make(map[string]interface{}, len(entry.Fields)+3)
	for _, field := range entry.Fields {
		if err, ok := field.Value.(error); ok {
			doc[field.Key] = err.Error()
		} else {
			doc[field.Key] = field.Value
		}
	}

	doc["level"] = entry.Level.String()
	doc["message"] = entry.Message
	if !f.DisableTimestamp {
		doc["timestamp"] = entry.Timestamp.Format(f.TimestampFormat)
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal log entry: %w", err)
	}
	return append(out, '\n'), nil
}
