// Package grouping clusters log events by a normalized message signature
// and aggregates per-signature statistics.
package grouping

import (
	"regexp"
	"strings"
)

// Replacement placeholders. All lowercase and free of digits, separators
// and punctuation so that normalizing a signature a second time is a no-op.
const (
	ipPlaceholder   = "ip"
	timePlaceholder = "time"
	datePlaceholder = "date"
	pathPlaceholder = "path"
	numPlaceholder  = "n"
)

var (
	ipRegex   = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	timeRegex = regexp.MustCompile(`\b\d{1,2}:\d{2}:\d{2}\b`)
	dateRegex = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{2}/\d{2}/\d{4}\b`)
	// Any whitespace-free run containing a path separator counts as a path.
	pathRegex = regexp.MustCompile(`[^\s]*[\\/][^\s]*`)
	// Source locations like Foo.java:42 are paths for grouping purposes:
	// the file and line vary while the event kind stays the same.
	fileLocRegex = regexp.MustCompile(`\b[\w$-]+\.[A-Za-z]\w{0,4}:\d+\b`)
	numberRegex = regexp.MustCompile(`\d+`)
	punctRegex  = regexp.MustCompile(`[^a-zA-Z0-9\s]+`)
	spaceRegex  = regexp.MustCompile(`\s+`)
)

// Options tunes how aggressively messages are normalized. Over-aggressive
// stripping silently merges unrelated error types, so both axes can be
// turned off independently.
type Options struct {
	StripNumbers bool // numeric runs, timestamps, dates and IPs
	StripPaths   bool // filesystem-path-like tokens
	MaxLength    int  // signature truncation, in runes
}

// DefaultOptions returns the normalization defaults.
func DefaultOptions() Options {
	return Options{
		StripNumbers: true,
		StripPaths:   true,
		MaxLength:    64,
	}
}

// Normalizer maps a free-text message to a canonical grouping signature.
// Normalize is pure, deterministic and idempotent.
type Normalizer struct {
	opts Options
}

// NewNormalizer creates a normalizer. A zero or negative MaxLength falls
// back to the default.
func NewNormalizer(opts Options) *Normalizer {
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultOptions().MaxLength
	}
	return &Normalizer{opts: opts}
}

// Normalize derives the signature for a message.
func (n *Normalizer) Normalize(message string) string {
	s := message

	if n.opts.StripPaths {
		s = pathRegex.ReplaceAllString(s, pathPlaceholder)
		s = fileLocRegex.ReplaceAllString(s, pathPlaceholder)
	}
	if n.opts.StripNumbers {
		s = ipRegex.ReplaceAllString(s, ipPlaceholder)
		s = timeRegex.ReplaceAllString(s, timePlaceholder)
		s = dateRegex.ReplaceAllString(s, datePlaceholder)
		s = numberRegex.ReplaceAllString(s, numPlaceholder)
	}

	s = punctRegex.ReplaceAllString(s, " ")
	s = strings.ToLower(s)
	s = spaceRegex.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if runes := []rune(s); len(runes) > n.opts.MaxLength {
		s = strings.TrimSpace(string(runes[:n.opts.MaxLength]))
	}

	return s
}
