package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	findingsFilename = "log_findings.json"
	summaryFilename  = "log_summary.md"
)

// Writer persists report artifacts to an output directory.
type Writer struct {
	outDir string
}

// NewWriter creates a writer for the given output directory, creating it
// if needed.
func NewWriter(outDir string) (*Writer, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Writer{outDir: outDir}, nil
}

// Write renders the report as JSON and markdown. Each artifact is written
// to a temp file and renamed into place, so readers never observe a
// partial file. Returns the paths of the written artifacts.
func (w *Writer) Write(rep *Report) (jsonPath, markdownPath string, err error) {
	jsonPath = filepath.Join(w.outDir, findingsFilename)
	markdownPath = filepath.Join(w.outDir, summaryFilename)

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')

	if err := w.writeAtomic(jsonPath, data); err != nil {
		return "", "", err
	}

	if err := w.writeAtomic(markdownPath, []byte(renderMarkdown(rep))); err != nil {
		return "", "", err
	}

	return jsonPath, markdownPath, nil
}

// writeAtomic writes data to path via a temp file in the same directory.
func (w *Writer) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(w.outDir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to rename %s into place: %w", filepath.Base(path), err)
	}

	return nil
}

// renderMarkdown renders the human-readable summary.
func renderMarkdown(rep *Report) string {
	var md strings.Builder

	md.WriteString("# Log Analysis Summary\n\n")
	fmt.Fprintf(&md, "Generated: %s\n\n", rep.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	if len(rep.SourceFiles) > 0 {
		md.WriteString("Sources:\n")
		for _, f := range rep.SourceFiles {
			fmt.Fprintf(&md, "- `%s`\n", f)
		}
		md.WriteString("\n")
	}

	fmt.Fprintf(&md, "**%d** events in **%d** groups, overall error rate **%.1f%%**\n\n",
		rep.Summary.TotalEvents, rep.Summary.TotalGroups, rep.Summary.OverallErrorRate*100)

	if len(rep.Summary.TopRootCauses) > 0 {
		md.WriteString("## Top Root Causes\n\n")
		for i, cause := range rep.Summary.TopRootCauses {
			fmt.Fprintf(&md, "%d. %s\n", i+1, cause)
		}
		md.WriteString("\n")
	}

	md.WriteString("## Findings\n\n")
	if len(rep.Findings) == 0 {
		md.WriteString("No findings.\n")
		return md.String()
	}

	md.WriteString("| Signature | Events | Error Rate | Severity | Probable Root Cause |\n")
	md.WriteString("|---|---|---|---|---|\n")
	for _, f := range rep.Findings {
		severity := f.Severity
		if severity == "" {
			severity = "-"
		}
		fmt.Fprintf(&md, "| `%s` | %d | %.1f%% | %s | %s |\n",
			escapeTableCell(f.Signature), f.TotalEvents, f.ErrorRate*100, severity,
			escapeTableCell(f.ProbableRootCause))
	}

	return md.String()
}

// escapeTableCell keeps pipes in content from breaking the table layout.
func escapeTableCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
