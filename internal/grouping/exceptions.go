package grouping

import (
	"regexp"
	"strings"
)

// maxCauseClauseLen bounds the length of a clause captured after a
// "caused by"/"exception:" marker.
const maxCauseClauseLen = 80

var (
	// Capitalized identifiers ending in a recognized error-type suffix,
	// e.g. NullPointerException, ConnectionError, AuthFailure.
	exceptionTokenRegex = regexp.MustCompile(`\b[A-Z][A-Za-z0-9_]*(?:Exception|Error|Failure|Fault)\b`)

	// Markers introducing a cause description in free text.
	causeMarkerRegex = regexp.MustCompile(`(?i)\b(?:caused by|exception)\s*:\s*`)
)

// Extractor scans messages for exception/error evidence. Extract never
// fails; messages without evidence yield an empty set.
type Extractor struct{}

// NewExtractor creates an extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the set of exception tokens found in the message.
func (e *Extractor) Extract(message string) map[string]struct{} {
	tokens := make(map[string]struct{})

	for _, tok := range exceptionTokenRegex.FindAllString(message, -1) {
		tokens[tok] = struct{}{}
	}

	for _, loc := range causeMarkerRegex.FindAllStringIndex(message, -1) {
		clause := message[loc[1]:]
		if idx := strings.IndexAny(clause, "\n\r"); idx >= 0 {
			clause = clause[:idx]
		}
		if runes := []rune(clause); len(runes) > maxCauseClauseLen {
			clause = string(runes[:maxCauseClauseLen])
		}
		clause = strings.Trim(strings.TrimSpace(clause), ".,;")
		if clause != "" {
			tokens[clause] = struct{}{}
		}
	}

	return tokens
}
