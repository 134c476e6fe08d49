package grouping

import "testing"

func TestNormalize(t *testing.T) {
	norm := NewNormalizer(DefaultOptions())

	tests := []struct {
		name     string
		message  string
		expected string
	}{
		{
			name:     "Numbers replaced",
			message:  "worker 42 restarted 7 times",
			expected: "worker n restarted n times",
		},
		{
			name:     "Paths replaced",
			message:  "cannot open /var/log/app/current.log",
			expected: "cannot open path",
		},
		{
			name:     "Source locations replaced",
			message:  "NullPointerException at Foo.java:42",
			expected: "nullpointerexception at path",
		},
		{
			name:     "IP replaced",
			message:  "refused connection from 10.0.0.15",
			expected: "refused connection from ip",
		},
		{
			name:     "Timestamps and dates replaced",
			message:  "job ran at 10:00:05 on 2024-01-01",
			expected: "job ran at time on date",
		},
		{
			name:     "Punctuation collapsed",
			message:  "Failed!!! (again) -- retrying...",
			expected: "failed again retrying",
		},
		{
			name:     "Empty message",
			message:  "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := norm.Normalize(tt.message); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.message, got, tt.expected)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	messages := []string{
		"NullPointerException at Foo.java:42",
		"cannot open /var/log/app/current.log: permission denied",
		"refused connection from 10.0.0.15 port 22",
		"Service started",
		"a very long message that should certainly exceed the configured maximum signature length for grouping keys",
		"",
		"!!!",
	}

	for _, opts := range []Options{
		DefaultOptions(),
		{StripNumbers: false, StripPaths: true, MaxLength: 64},
		{StripNumbers: true, StripPaths: false, MaxLength: 64},
		{StripNumbers: true, StripPaths: true, MaxLength: 16},
	} {
		norm := NewNormalizer(opts)
		for _, msg := range messages {
			once := norm.Normalize(msg)
			twice := norm.Normalize(once)
			if once != twice {
				t.Errorf("Normalize not idempotent with %+v: %q -> %q -> %q", opts, msg, once, twice)
			}
		}
	}
}

func TestNormalizeSameKindSameSignature(t *testing.T) {
	norm := NewNormalizer(DefaultOptions())

	a := norm.Normalize("NullPointerException at Foo.java:42")
	b := norm.Normalize("NullPointerException at Bar.java:17")
	if a != b {
		t.Errorf("Expected same signature for same event kind, got %q and %q", a, b)
	}
}

func TestNormalizeTruncation(t *testing.T) {
	norm := NewNormalizer(Options{StripNumbers: true, StripPaths: true, MaxLength: 10})

	sig := norm.Normalize("abcdefghij klmnopqrst uvwxyz")
	if len([]rune(sig)) > 10 {
		t.Errorf("Expected signature capped at 10 runes, got %q (%d)", sig, len([]rune(sig)))
	}
}

func TestNormalizeTunable(t *testing.T) {
	keepNumbers := NewNormalizer(Options{StripNumbers: false, StripPaths: true, MaxLength: 64})

	a := keepNumbers.Normalize("worker 42 crashed")
	b := keepNumbers.Normalize("worker 43 crashed")
	if a == b {
		t.Error("Expected distinct signatures when number stripping is disabled")
	}
}
