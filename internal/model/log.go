package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// LogKind tags how a log entry reached the front-end
type LogKind int

const (
	// LogKindRaw is a plain string line that did not parse as a JSON object.
	LogKindRaw LogKind = iota
	// LogKindStructured carries level/message/timestamp fields.
	LogKindStructured
)

const defaultLogLevel = "INFO"

// LogEntry is a normalized backend log line. Raw lines are given level INFO
// and the raw text as message.
type LogEntry struct {
	Kind      LogKind `json:"-" yaml:"-"`
	Level     string  `json:"level" yaml:"level"`
	Message   string  `json:"message" yaml:"message"`
	Timestamp string  `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// RawLog wraps an unparsed log line.
func RawLog(line string) LogEntry {
	return LogEntry{Kind: LogKindRaw, Level: defaultLogLevel, Message: line}
}

// StructuredLog builds a structured entry.
func StructuredLog(level, message, timestamp string) LogEntry {
	return LogEntry{Kind: LogKindStructured, Level: level, Message: message, Timestamp: timestamp}
}

func (e LogEntry) String() string {
	var b strings.Builder
	if e.Timestamp != "" {
		b.WriteString(e.Timestamp)
		b.WriteByte(' ')
	}
	if e.Level != "" {
		fmt.Fprintf(&b, "[%s] ", e.Level)
	}
	b.WriteString(e.Message)
	return b.String()
}

// LogsResponse is the payload of GET /api/research/{id}/logs. Entries are
// either JSON objects or strings, which may themselves hold encoded JSON.
type LogsResponse struct {
	Logs []json.RawMessage `json:"logs"`
}

// NormalizeLogs converts every wire entry with NormalizeLog.
func NormalizeLogs(raw []json.RawMessage) []LogEntry {
	entries := make([]LogEntry, 0, len(raw))
	for _, r := range raw {
		entries = append(entries, NormalizeLog(r))
	}
	return entries
}

// NormalizeLog never fails: anything that is not a JSON object, directly or
// encoded inside a string, becomes a raw entry.
func NormalizeLog(raw json.RawMessage) LogEntry {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return RawLog("")
	}

	switch trimmed[0] {
	case '{':
		if entry, ok := structuredFromJSON(trimmed); ok {
			return entry
		}
	case '"':
		var line string
		if err := json.Unmarshal(trimmed, &line); err != nil {
			return RawLog(string(trimmed))
		}
		if entry, ok := structuredFromJSON([]byte(strings.TrimSpace(line))); ok {
			return entry
		}
		return RawLog(line)
	}

	return RawLog(string(trimmed))
}

func structuredFromJSON(data []byte) (LogEntry, bool) {
	if len(data) == 0 || data[0] != '{' {
		return LogEntry{}, false
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return LogEntry{}, false
	}

	entry := LogEntry{
		Kind:      LogKindStructured,
		Level:     stringField(fields, "level"),
		Message:   stringField(fields, "message"),
		Timestamp: stringField(fields, "timestamp"),
	}
	if entry.Message == "" {
		// nothing readable, show the record itself
		compact := new(bytes.Buffer)
		if err := json.Compact(compact, data); err == nil {
			entry.Message = compact.String()
		} else {
			entry.Message = string(data)
		}
	}
	return entry, true
}

func stringField(fields map[string]interface{}, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
