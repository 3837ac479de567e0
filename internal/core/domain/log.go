package domain

import (
	"fmt"
	"strings"
	"time"
)

type LogLevel string

const (
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// ParseLevel normalizes a wire level to upper case and rejects unknown names.
func ParseLevel(raw string) (LogLevel, error) {
	l := LogLevel(strings.ToUpper(strings.TrimSpace(raw)))
	switch l {
	case LevelInfo, LevelWarn, LevelError:
		return l, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLevel, raw)
}

// LogEntry is one line of a job's event log. Entries are never modified
// after they are appended.
type LogEntry struct {
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (e LogEntry) String() string {
	return fmt.Sprintf("%s [%s] %s", e.Timestamp.Format(time.RFC3339), e.Level, e.Message)
}
