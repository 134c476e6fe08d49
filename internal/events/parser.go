package events

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// timestampPrefixes are tried in order against the start of a line. The
// matched text is handed to dateparse for the actual format resolution, so
// these only need to locate the prefix, not fully validate it.
var timestampPrefixes = []*regexp.Regexp{
	// ISO-ish: 2024-01-01 10:00:00, 2024-01-01T10:00:00.123Z, 2024/01/01 10:00:00
	regexp.MustCompile(`^\[?(\d{4}[-/]\d{2}[-/]\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?)\]?`),
	// Short date: 24/01/01 10:00:00
	regexp.MustCompile(`^\[?(\d{2}/\d{2}/\d{2}\s+\d{2}:\d{2}:\d{2})\]?`),
	// Syslog: Jan  2 15:04:05
	regexp.MustCompile(`^([A-Z][a-z]{2}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})`),
}

// levelToken finds the first level keyword, optionally wrapped in brackets
// or followed by a colon, anywhere in the remainder of the line.
var levelToken = regexp.MustCompile(`(?i)\[?\b(DEBUG|INFO|WARNING|WARN|ERROR)\b\]?:?`)

// Parser extracts structured events from raw log lines. It is stateless
// and safe for concurrent use.
type Parser struct{}

// NewParser creates a line parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse turns one raw line into a LogEvent. The second return value is
// false when the line is unparsable (blank, or carrying neither a
// timestamp nor a level token, or with nothing left as a message).
// Unparsable lines are never an error: the caller just skips them.
func (p *Parser) Parse(line string) (LogEvent, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return LogEvent{}, false
	}

	rest := trimmed
	ts := extractTimestamp(&rest)

	level, found := extractLevel(&rest)
	if ts == nil && !found {
		return LogEvent{}, false
	}

	message := strings.TrimSpace(rest)
	if message == "" {
		return LogEvent{}, false
	}

	return LogEvent{
		Timestamp: ts,
		Level:     level,
		Message:   message,
		RawLine:   line,
	}, true
}

// extractTimestamp strips a leading timestamp from *rest and returns it,
// or nil when no prefix matched or the matched text did not parse.
func extractTimestamp(rest *string) *time.Time {
	for _, re := range timestampPrefixes {
		m := re.FindStringSubmatch(*rest)
		if m == nil {
			continue
		}
		// Consume the prefix even if dateparse rejects it: the text is
		// clearly timestamp-shaped and must not leak into the message.
		*rest = strings.TrimSpace((*rest)[len(m[0]):])
		if ts, err := dateparse.ParseAny(m[1]); err == nil {
			return &ts
		}
		return nil
	}
	return nil
}

// extractLevel removes the first level keyword from *rest and returns the
// normalized level. When no keyword is present the level defaults to
// UNKNOWN and found is false.
func extractLevel(rest *string) (level Level, found bool) {
	loc := levelToken.FindStringSubmatchIndex(*rest)
	if loc == nil {
		return LevelUnknown, false
	}

	keyword := strings.ToUpper((*rest)[loc[2]:loc[3]])
	if keyword == "WARNING" {
		keyword = "WARN"
	}

	before := (*rest)[:loc[0]]
	after := (*rest)[loc[1]:]
	*rest = strings.TrimSpace(strings.TrimSpace(before) + " " + strings.TrimSpace(after))

	return Level(keyword), true
}
