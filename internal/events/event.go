// Package events turns raw log lines into structured events.
// The parser is heuristic: it handles a handful of common timestamp and
// level layouts and silently skips lines it cannot make sense of.
package events

import "time"

// Level classifies a log line's severity.
type Level string

// Recognized levels. Lines without a level token get LevelUnknown.
const (
	LevelDebug   Level = "DEBUG"
	LevelInfo    Level = "INFO"
	LevelWarn    Level = "WARN"
	LevelError   Level = "ERROR"
	LevelUnknown Level = "UNKNOWN"
)

// Levels lists all levels in histogram order.
func Levels() []Level {
	return []Level{LevelDebug, LevelInfo, LevelWarn, LevelError, LevelUnknown}
}

// LogEvent is one parsed log line. Timestamp is nil when no recognizable
// timestamp prefix was found. Events are immutable once created and are
// discarded after aggregation.
type LogEvent struct {
	Timestamp *time.Time
	Level     Level
	Message   string
	RawLine   string
}
