package grouping

import (
	"sort"

	"github.com/olegiv/logtriage-ai-go/internal/events"
)

// DefaultMaxExamples is how many first-seen raw lines a group keeps.
const DefaultMaxExamples = 3

// Group holds the aggregate statistics for all events sharing one
// signature. Groups are mutated only by their owning Aggregator and are
// read-only after Finalize.
type Group struct {
	Signature       string
	Count           int
	LevelCounts     map[events.Level]int
	Examples        []string
	ExceptionTokens map[string]struct{}
}

// ErrorRate is the fraction of the group's events at ERROR level.
func (g *Group) ErrorRate() float64 {
	if g.Count == 0 {
		return 0
	}
	return float64(g.LevelCounts[events.LevelError]) / float64(g.Count)
}

// Tokens returns the group's exception tokens in sorted order.
func (g *Group) Tokens() []string {
	tokens := make([]string, 0, len(g.ExceptionTokens))
	for tok := range g.ExceptionTokens {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}

// Aggregator consumes a stream of events and maintains per-signature
// groups. It performs no I/O and is not safe for concurrent use: run one
// Aggregator per input file and merge afterwards.
type Aggregator struct {
	normalizer  *Normalizer
	extractor   *Extractor
	maxExamples int
	groups      map[string]*Group
}

// NewAggregator creates an aggregator with the given normalization
// options. A non-positive maxExamples falls back to DefaultMaxExamples.
func NewAggregator(opts Options, maxExamples int) *Aggregator {
	if maxExamples <= 0 {
		maxExamples = DefaultMaxExamples
	}
	return &Aggregator{
		normalizer:  NewNormalizer(opts),
		extractor:   NewExtractor(),
		maxExamples: maxExamples,
		groups:      make(map[string]*Group),
	}
}

// Add folds one event into the aggregation.
func (a *Aggregator) Add(ev events.LogEvent) {
	sig := a.normalizer.Normalize(ev.Message)
	if sig == "" {
		sig = "(empty)"
	}

	g, ok := a.groups[sig]
	if !ok {
		g = &Group{
			Signature:       sig,
			LevelCounts:     make(map[events.Level]int),
			ExceptionTokens: make(map[string]struct{}),
		}
		a.groups[sig] = g
	}

	g.Count++
	g.LevelCounts[ev.Level]++
	if len(g.Examples) < a.maxExamples {
		g.Examples = append(g.Examples, ev.RawLine)
	}
	for tok := range a.extractor.Extract(ev.Message) {
		g.ExceptionTokens[tok] = struct{}{}
	}
}

// Len returns the number of distinct signatures seen so far.
func (a *Aggregator) Len() int {
	return len(a.groups)
}

// TotalEvents returns the number of events folded in so far.
func (a *Aggregator) TotalEvents() int {
	total := 0
	for _, g := range a.groups {
		total += g.Count
	}
	return total
}

// MergeFrom folds another aggregation into this one. The combination is
// commutative on counts, level histograms and token sets; example lists
// are concatenated up to the cap, so example order depends on merge order
// while all other fields do not.
func (a *Aggregator) MergeFrom(other *Aggregator) {
	for sig, src := range other.groups {
		dst, ok := a.groups[sig]
		if !ok {
			dst = &Group{
				Signature:       sig,
				LevelCounts:     make(map[events.Level]int),
				ExceptionTokens: make(map[string]struct{}),
			}
			a.groups[sig] = dst
		}

		dst.Count += src.Count
		for level, n := range src.LevelCounts {
			dst.LevelCounts[level] += n
		}
		for _, example := range src.Examples {
			if len(dst.Examples) >= a.maxExamples {
				break
			}
			dst.Examples = append(dst.Examples, example)
		}
		for tok := range src.ExceptionTokens {
			dst.ExceptionTokens[tok] = struct{}{}
		}
	}
}

// Finalize returns all groups sorted by descending count, ties broken
// lexicographically by signature, so output is deterministic across runs.
func (a *Aggregator) Finalize() []*Group {
	groups := make([]*Group, 0, len(a.groups))
	for _, g := range a.groups {
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Signature < groups[j].Signature
	})

	return groups
}
