// Package pipeline runs the full log analysis flow: parse raw lines into
// events, aggregate them into signature groups, synthesize candidate
// findings via an LLM, validate them against the aggregation, and write
// the report artifacts.
package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/olegiv/logtriage-ai-go/internal/ai"
	"github.com/olegiv/logtriage-ai-go/internal/events"
	"github.com/olegiv/logtriage-ai-go/internal/grouping"
	"github.com/olegiv/logtriage-ai-go/internal/logging"
	"github.com/olegiv/logtriage-ai-go/internal/report"
)

// Log lines longer than this are skipped. A single runaway line must
// not take down the rest of the file.
const maxLineBytes = 1024 * 1024

// Config holds pipeline tuning knobs.
type Config struct {
	SignatureOptions    grouping.Options
	MaxExamplesPerGroup int
	ParallelFiles       int
}

// Result is the outcome of one pipeline run.
type Result struct {
	Groups       []*grouping.Group
	Findings     []report.Finding
	Report       *report.Report
	Stats        *ai.Stats
	FilesRead    []string
	FilesSkipped []string
	JSONPath     string
	MarkdownPath string
}

// Pipeline wires the analysis stages together.
type Pipeline struct {
	log    *logging.SecureLogger
	synth  *ai.Synthesizer
	writer *report.Writer
	cfg    Config
}

// New creates a pipeline. ParallelFiles <= 0 means sequential.
func New(log *logging.SecureLogger, synth *ai.Synthesizer, writer *report.Writer, cfg Config) *Pipeline {
	if cfg.MaxExamplesPerGroup <= 0 {
		cfg.MaxExamplesPerGroup = grouping.DefaultMaxExamples
	}
	if cfg.ParallelFiles <= 0 {
		cfg.ParallelFiles = 1
	}
	return &Pipeline{
		log:    log,
		synth:  synth,
		writer: writer,
		cfg:    cfg,
	}
}

// Run analyzes the given log files end to end. A missing or unreadable
// file is skipped with a warning; a transport failure during synthesis
// aborts the run before any artifact is written.
func (p *Pipeline) Run(ctx context.Context, logPaths []string) (*Result, error) {
	if len(logPaths) == 0 {
		return nil, fmt.Errorf("no log files to analyze")
	}

	result := &Result{}
	merged := p.newAggregator()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.ParallelFiles)

	for _, path := range logPaths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			agg, err := p.aggregateFile(path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.log.Warn().Str("file", path).Err(err).Msg("Skipping unreadable log file")
				result.FilesSkipped = append(result.FilesSkipped, path)
				return nil
			}
			merged.MergeFrom(agg)
			result.FilesRead = append(result.FilesRead, path)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(result.FilesRead) == 0 {
		return nil, fmt.Errorf("none of the %d log files could be read", len(logPaths))
	}

	result.Groups = merged.Finalize()
	totalEvents := merged.TotalEvents()

	p.log.Info().
		Int("files", len(result.FilesRead)).
		Int("events", totalEvents).
		Int("groups", len(result.Groups)).
		Msg("Aggregation complete")

	var candidates []ai.CandidateFinding
	if len(result.Groups) > 0 {
		var stats *ai.Stats
		var err error
		candidates, stats, err = p.synth.Synthesize(ctx, result.Groups, totalEvents)
		if err != nil {
			// Aggregation data stays available to the caller; no report
			// is written for a run that never got a model response.
			return result, fmt.Errorf("synthesis failed: %w", err)
		}
		result.Stats = stats
	} else {
		p.log.Info().Msg("No groups to analyze, skipping LLM synthesis")
	}

	result.Findings = report.Validate(result.Groups, candidates)

	result.Report = &report.Report{
		GeneratedAt: time.Now().UTC(),
		SourceFiles: result.FilesRead,
		Summary:     report.ComputeSummary(result.Findings),
		Findings:    result.Findings,
	}

	jsonPath, mdPath, err := p.writer.Write(result.Report)
	if err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	result.JSONPath = jsonPath
	result.MarkdownPath = mdPath

	p.log.Info().
		Int("findings", len(result.Findings)).
		Str("json", jsonPath).
		Str("markdown", mdPath).
		Msg("Report written")

	return result, nil
}

func (p *Pipeline) newAggregator() *grouping.Aggregator {
	return grouping.NewAggregator(p.cfg.SignatureOptions, p.cfg.MaxExamplesPerGroup)
}

// aggregateFile parses one log file into its own aggregator. Each file
// gets a dedicated aggregator so files can be processed concurrently and
// merged afterwards.
func (p *Pipeline) aggregateFile(path string) (*grouping.Aggregator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	parser := events.NewParser()
	agg := p.newAggregator()

	r := bufio.NewReaderSize(f, 64*1024)
	for {
		line, tooLong, err := readLine(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed reading %s: %w", path, err)
		}
		if tooLong {
			continue
		}
		ev, ok := parser.Parse(line)
		if !ok {
			continue
		}
		agg.Add(ev)
	}

	return agg, nil
}

// readLine reads one line of any length. Lines over maxLineBytes are
// fully consumed but flagged so the caller can skip them.
func readLine(r *bufio.Reader) (string, bool, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return "", tooLong, err
		}
		if !tooLong {
			buf = append(buf, chunk...)
			if len(buf) > maxLineBytes {
				buf = nil
				tooLong = true
			}
		}
		if !isPrefix {
			return string(buf), tooLong, nil
		}
	}
}
