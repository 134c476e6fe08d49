package events

import (
	"testing"
)

func TestParseLine(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name          string
		line          string
		expectOK      bool
		expectLevel   Level
		expectMessage string
		expectTS      bool
	}{
		{
			name:          "ISO timestamp with ERROR",
			line:          "2024-01-01 10:00:00 ERROR NullPointerException at Foo.java:42",
			expectOK:      true,
			expectLevel:   LevelError,
			expectMessage: "NullPointerException at Foo.java:42",
			expectTS:      true,
		},
		{
			name:          "ISO timestamp with INFO",
			line:          "2024-01-01 10:00:10 INFO Service started",
			expectOK:      true,
			expectLevel:   LevelInfo,
			expectMessage: "Service started",
			expectTS:      true,
		},
		{
			name:          "Bracketed level",
			line:          "2024-01-01 10:00:00 [WARN] disk usage above threshold",
			expectOK:      true,
			expectLevel:   LevelWarn,
			expectMessage: "disk usage above threshold",
			expectTS:      true,
		},
		{
			name:          "WARNING normalized to WARN",
			line:          "2024-01-01 10:00:00 WARNING low memory",
			expectOK:      true,
			expectLevel:   LevelWarn,
			expectMessage: "low memory",
			expectTS:      true,
		},
		{
			name:          "Level without timestamp",
			line:          "ERROR connection refused",
			expectOK:      true,
			expectLevel:   LevelError,
			expectMessage: "connection refused",
			expectTS:      false,
		},
		{
			name:          "Timestamp without level defaults to UNKNOWN",
			line:          "2024-01-01 10:00:00 something happened",
			expectOK:      true,
			expectLevel:   LevelUnknown,
			expectMessage: "something happened",
			expectTS:      true,
		},
		{
			name:          "Lowercase level token",
			line:          "2024-01-01 10:00:00 error: out of disk",
			expectOK:      true,
			expectLevel:   LevelError,
			expectMessage: "out of disk",
			expectTS:      true,
		},
		{
			name:     "Blank line is skipped",
			line:     "   ",
			expectOK: false,
		},
		{
			name:     "No timestamp and no level is skipped",
			line:     "just some free text",
			expectOK: false,
		},
		{
			name:     "Timestamp only is skipped",
			line:     "2024-01-01 10:00:00",
			expectOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := parser.Parse(tt.line)

			if ok != tt.expectOK {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.line, ok, tt.expectOK)
			}
			if !ok {
				return
			}

			if ev.Level != tt.expectLevel {
				t.Errorf("Expected level %s, got %s", tt.expectLevel, ev.Level)
			}
			if ev.Message != tt.expectMessage {
				t.Errorf("Expected message %q, got %q", tt.expectMessage, ev.Message)
			}
			if (ev.Timestamp != nil) != tt.expectTS {
				t.Errorf("Expected timestamp presence %v, got %v", tt.expectTS, ev.Timestamp != nil)
			}
			if ev.RawLine != tt.line {
				t.Errorf("Expected raw line to be preserved")
			}
		})
	}
}

func TestParseTimestampValue(t *testing.T) {
	parser := NewParser()

	ev, ok := parser.Parse("2024-01-01 10:00:05 ERROR boom")
	if !ok {
		t.Fatal("Expected line to parse")
	}
	if ev.Timestamp == nil {
		t.Fatal("Expected a timestamp")
	}
	if ev.Timestamp.Hour() != 10 || ev.Timestamp.Second() != 5 {
		t.Errorf("Unexpected timestamp value: %v", ev.Timestamp)
	}
}

func TestParseNeverPanicsOnGarbage(t *testing.T) {
	parser := NewParser()

	garbage := []string{
		"\x00\x01\x02",
		"2024-99-99 99:99:99 ERROR still works",
		"[[[[]]]]",
		"ERROR",
	}

	for _, line := range garbage {
		// Only checking that Parse copes; result does not matter.
		parser.Parse(line)
	}
}
