package report

import (
	"sort"
	"strings"

	"github.com/olegiv/logtriage-ai-go/internal/ai"
	"github.com/olegiv/logtriage-ai-go/internal/grouping"
)

// placeholderCauses are model answers that carry no information. A
// candidate whose root cause normalizes to one of these gets a fallback.
var placeholderCauses = map[string]struct{}{
	"":                  {},
	"unknown":           {},
	"n/a":               {},
	"none":              {},
	"tbd":               {},
	"no recommendation": {},
	"no root cause":     {},
}

// validSeverities is the closed severity vocabulary.
var validSeverities = map[string]struct{}{
	"low":      {},
	"medium":   {},
	"high":     {},
	"critical": {},
}

const (
	maxFallbackTokens    = 3
	maxFallbackClauseLen = 100
)

// Validate reconciles model candidates against the aggregated groups.
// It emits exactly one finding per group, in the groups' order. Counts
// and rates are recomputed from the group; the model contributes only
// prose. Candidates referencing unknown signatures are dropped, and
// groups the model skipped get fallback root causes. An empty candidate
// slice therefore still yields one finding per group.
func Validate(groups []*grouping.Group, candidates []ai.CandidateFinding) []Finding {
	// First candidate per signature wins
	bySignature := make(map[string]*ai.CandidateFinding, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if _, ok := bySignature[c.SignatureRef]; !ok {
			bySignature[c.SignatureRef] = c
		}
	}

	findings := make([]Finding, 0, len(groups))
	for _, g := range groups {
		f := Finding{
			Signature:   g.Signature,
			TotalEvents: g.Count,
			ErrorRate:   g.ErrorRate(),
			Examples:    g.Examples,
		}
		if f.Examples == nil {
			f.Examples = []string{}
		}

		if c, ok := bySignature[g.Signature]; ok {
			f.ProbableRootCause = strings.TrimSpace(c.ProbableRootCause)
			severity := strings.ToLower(strings.TrimSpace(c.Severity))
			if _, valid := validSeverities[severity]; valid {
				f.Severity = severity
			}
		}

		if isPlaceholderCause(f.ProbableRootCause) {
			f.ProbableRootCause = fallbackRootCause(g)
		}

		findings = append(findings, f)
	}

	return findings
}

func isPlaceholderCause(cause string) bool {
	_, ok := placeholderCauses[strings.ToLower(strings.TrimSpace(cause))]
	return ok
}

// fallbackRootCause derives a root cause from the group itself when the
// model offered nothing usable. Exception tokens are the best evidence;
// otherwise the leading clause of the first example has to do.
func fallbackRootCause(g *grouping.Group) string {
	if tokens := g.Tokens(); len(tokens) > 0 {
		if len(tokens) > maxFallbackTokens {
			tokens = tokens[:maxFallbackTokens]
		}
		return "Recurring " + strings.Join(tokens, ", ")
	}

	if len(g.Examples) > 0 {
		clause := leadingClause(g.Examples[0])
		if clause != "" {
			return "Recurring pattern: " + clause
		}
	}

	return "Recurring pattern: " + g.Signature
}

// leadingClause returns the text before the first clause separator,
// capped to a readable length.
func leadingClause(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexAny(s, ";:\n"); idx > 0 {
		s = s[:idx]
	}
	runes := []rune(s)
	if len(runes) > maxFallbackClauseLen {
		s = strings.TrimSpace(string(runes[:maxFallbackClauseLen]))
	}
	return strings.TrimSpace(s)
}

// ComputeSummary aggregates findings into the report summary. The overall
// error rate is event-weighted across groups.
func ComputeSummary(findings []Finding) Summary {
	summary := Summary{
		TopRootCauses: []string{},
	}

	var weightedErrors float64
	for _, f := range findings {
		summary.TotalEvents += f.TotalEvents
		weightedErrors += f.ErrorRate * float64(f.TotalEvents)
	}
	summary.TotalGroups = len(findings)
	if summary.TotalEvents > 0 {
		summary.OverallErrorRate = weightedErrors / float64(summary.TotalEvents)
	}

	summary.TopRootCauses = topRootCauses(findings, 3)

	return summary
}

// topRootCauses returns up to limit unique root causes ranked by the
// event volume they explain.
func topRootCauses(findings []Finding, limit int) []string {
	causeEvents := make(map[string]int)
	for _, f := range findings {
		if f.ProbableRootCause == "" {
			continue
		}
		causeEvents[f.ProbableRootCause] += f.TotalEvents
	}

	causes := make([]string, 0, len(causeEvents))
	for cause := range causeEvents {
		causes = append(causes, cause)
	}
	sort.Slice(causes, func(i, j int) bool {
		if causeEvents[causes[i]] != causeEvents[causes[j]] {
			return causeEvents[causes[i]] > causeEvents[causes[j]]
		}
		return causes[i] < causes[j]
	})

	if len(causes) > limit {
		causes = causes[:limit]
	}
	return causes
}
