// Package report reconciles model candidates against aggregated log groups
// and writes the JSON and markdown artifacts.
package report

import "time"

// Finding is one validated analysis result. Numeric fields always come
// from the aggregation, never from the model.
type Finding struct {
	Signature         string   `json:"signature_ref"`
	TotalEvents       int      `json:"total_events"`
	ErrorRate         float64  `json:"error_rate"`
	ProbableRootCause string   `json:"probable_root_cause"`
	Severity          string   `json:"severity,omitempty"`
	Examples          []string `json:"examples"`
}

// Summary aggregates across all findings.
type Summary struct {
	TotalEvents      int      `json:"total_events"`
	TotalGroups      int      `json:"total_groups"`
	OverallErrorRate float64  `json:"overall_error_rate"`
	TopRootCauses    []string `json:"top_root_causes"`
}

// Report is the full analysis artifact.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	SourceFiles []string  `json:"source_files"`
	Summary     Summary   `json:"summary"`
	Findings    []Finding `json:"findings"`
}
