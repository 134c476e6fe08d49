package report

import (
	"math"
	"strings"
	"testing"

	"github.com/olegiv/logtriage-ai-go/internal/ai"
	"github.com/olegiv/logtriage-ai-go/internal/events"
	"github.com/olegiv/logtriage-ai-go/internal/grouping"
)

func group(signature string, errorCount, otherCount int, examples ...string) *grouping.Group {
	return &grouping.Group{
		Signature: signature,
		Count:     errorCount + otherCount,
		LevelCounts: map[events.Level]int{
			events.LevelError: errorCount,
			events.LevelInfo:  otherCount,
		},
		Examples:        examples,
		ExceptionTokens: map[string]struct{}{},
	}
}

func TestValidateOneFindingPerGroup(t *testing.T) {
	groups := []*grouping.Group{
		group("disk full on path", 5, 0, "[ERROR] disk full on /var"),
		group("request served in n ms", 0, 20, "[INFO] request served in 12 ms"),
	}
	candidates := []ai.CandidateFinding{
		{
			SignatureRef:      "disk full on path",
			TotalEvents:       999, // wrong on purpose
			ErrorRate:         0.1, // wrong on purpose
			ProbableRootCause: "Volume out of space",
			Severity:          "High",
		},
	}

	findings := Validate(groups, candidates)

	if len(findings) != 2 {
		t.Fatalf("got %d findings, want one per group", len(findings))
	}

	first := findings[0]
	if first.Signature != "disk full on path" {
		t.Errorf("findings must follow group order, got %q first", first.Signature)
	}
	if first.TotalEvents != 5 {
		t.Errorf("TotalEvents must be recomputed from the group, got %d", first.TotalEvents)
	}
	if first.ErrorRate != 1.0 {
		t.Errorf("ErrorRate must be recomputed from the group, got %v", first.ErrorRate)
	}
	if first.ProbableRootCause != "Volume out of space" {
		t.Errorf("model prose should be kept, got %q", first.ProbableRootCause)
	}
	if first.Severity != "high" {
		t.Errorf("severity should be normalized to lower case, got %q", first.Severity)
	}

	second := findings[1]
	if second.ProbableRootCause == "" {
		t.Error("skipped group must get a fallback root cause")
	}
	if second.Severity != "" {
		t.Errorf("skipped group has no severity, got %q", second.Severity)
	}
}

func TestValidateEmptyCandidates(t *testing.T) {
	groups := []*grouping.Group{
		group("timeout talking to upstream", 3, 0, "[ERROR] timeout talking to upstream: read deadline exceeded"),
	}

	findings := Validate(groups, nil)

	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	f := findings[0]
	if f.TotalEvents != 3 || f.ErrorRate != 1.0 {
		t.Errorf("numbers must come from the group: %+v", f)
	}
	if f.ProbableRootCause == "" {
		t.Error("expected a fallback root cause")
	}
}

func TestValidateDropsHallucinatedSignatures(t *testing.T) {
	groups := []*grouping.Group{
		group("real signature", 1, 0, "[ERROR] real signature"),
	}
	candidates := []ai.CandidateFinding{
		{SignatureRef: "invented signature", ProbableRootCause: "Ghost in the machine", Severity: "critical"},
	}

	findings := Validate(groups, candidates)

	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	if findings[0].ProbableRootCause == "Ghost in the machine" {
		t.Error("candidate for an unknown signature must be dropped")
	}
}

func TestValidatePlaceholderCauseGetsFallback(t *testing.T) {
	tests := []string{"", "unknown", "N/A", "  None  ", "TBD", "no root cause"}

	for _, cause := range tests {
		t.Run("cause="+strings.TrimSpace(cause), func(t *testing.T) {
			groups := []*grouping.Group{
				group("oom killed worker n", 2, 0, "[ERROR] oom killed worker 7"),
			}
			candidates := []ai.CandidateFinding{
				{SignatureRef: "oom killed worker n", ProbableRootCause: cause, Severity: "high"},
			}

			findings := Validate(groups, candidates)
			got := findings[0].ProbableRootCause
			if isPlaceholderCause(got) {
				t.Errorf("placeholder cause %q must be replaced, got %q", cause, got)
			}
			if findings[0].Severity != "high" {
				t.Error("fallback cause must not discard a valid severity")
			}
		})
	}
}

func TestFallbackPrefersExceptionTokens(t *testing.T) {
	g := group("failed to process request", 2, 0,
		"[ERROR] failed to process request: NullPointerException at Foo.java:42")
	g.ExceptionTokens["NullPointerException"] = struct{}{}

	findings := Validate([]*grouping.Group{g}, nil)

	if !strings.Contains(findings[0].ProbableRootCause, "NullPointerException") {
		t.Errorf("fallback should name the exception token, got %q", findings[0].ProbableRootCause)
	}
}

func TestFallbackUsesLeadingExampleClause(t *testing.T) {
	g := group("disk full on path", 1, 0,
		"disk full on /var: cannot append to journal")

	findings := Validate([]*grouping.Group{g}, nil)

	got := findings[0].ProbableRootCause
	if !strings.Contains(got, "disk full on /var") {
		t.Errorf("fallback should use the leading clause, got %q", got)
	}
	if strings.Contains(got, "cannot append") {
		t.Errorf("fallback should stop at the clause separator, got %q", got)
	}
}

func TestValidateInvalidSeverityCleared(t *testing.T) {
	groups := []*grouping.Group{group("sig", 1, 0, "x")}
	candidates := []ai.CandidateFinding{
		{SignatureRef: "sig", ProbableRootCause: "Something concrete", Severity: "catastrophic"},
	}

	findings := Validate(groups, candidates)
	if findings[0].Severity != "" {
		t.Errorf("out-of-vocabulary severity must be cleared, got %q", findings[0].Severity)
	}
}

func TestComputeSummary(t *testing.T) {
	findings := []Finding{
		{Signature: "a", TotalEvents: 10, ErrorRate: 1.0, ProbableRootCause: "Cause A"},
		{Signature: "b", TotalEvents: 30, ErrorRate: 0.0, ProbableRootCause: "Cause B"},
		{Signature: "c", TotalEvents: 10, ErrorRate: 0.5, ProbableRootCause: "Cause A"},
	}

	summary := ComputeSummary(findings)

	if summary.TotalEvents != 50 {
		t.Errorf("TotalEvents = %d, want 50", summary.TotalEvents)
	}
	if summary.TotalGroups != 3 {
		t.Errorf("TotalGroups = %d, want 3", summary.TotalGroups)
	}
	// (1.0*10 + 0.0*30 + 0.5*10) / 50 = 0.3
	if math.Abs(summary.OverallErrorRate-0.3) > 1e-9 {
		t.Errorf("OverallErrorRate = %v, want 0.3", summary.OverallErrorRate)
	}
	// Cause A explains 20 events, Cause B explains 30
	if len(summary.TopRootCauses) != 2 || summary.TopRootCauses[0] != "Cause B" {
		t.Errorf("TopRootCauses = %v", summary.TopRootCauses)
	}
}

func TestComputeSummaryEmpty(t *testing.T) {
	summary := ComputeSummary(nil)
	if summary.TotalEvents != 0 || summary.OverallErrorRate != 0 {
		t.Errorf("unexpected summary for no findings: %+v", summary)
	}
	if summary.TopRootCauses == nil {
		t.Error("TopRootCauses must not be nil")
	}
}
