package grouping

import (
	"fmt"
	"testing"

	"github.com/olegiv/logtriage-ai-go/internal/events"
)

func parseAll(t *testing.T, lines []string) []events.LogEvent {
	t.Helper()
	parser := events.NewParser()

	var evs []events.LogEvent
	for _, line := range lines {
		ev, ok := parser.Parse(line)
		if !ok {
			t.Fatalf("Expected line to parse: %q", line)
		}
		evs = append(evs, ev)
	}
	return evs
}

func TestAggregatorScenario(t *testing.T) {
	lines := []string{
		"2024-01-01 10:00:00 ERROR NullPointerException at Foo.java:42",
		"2024-01-01 10:00:05 ERROR NullPointerException at Bar.java:17",
		"2024-01-01 10:00:10 INFO Service started",
	}

	agg := NewAggregator(DefaultOptions(), DefaultMaxExamples)
	for _, ev := range parseAll(t, lines) {
		agg.Add(ev)
	}

	groups := agg.Finalize()
	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}

	npe := groups[0]
	if npe.Count != 2 {
		t.Errorf("Expected NPE group count 2, got %d", npe.Count)
	}
	if npe.ErrorRate() != 1.0 {
		t.Errorf("Expected NPE error rate 1.0, got %f", npe.ErrorRate())
	}
	if _, ok := npe.ExceptionTokens["NullPointerException"]; !ok {
		t.Errorf("Expected NullPointerException token, got %v", npe.Tokens())
	}
	if len(npe.Examples) != 2 {
		t.Errorf("Expected 2 examples, got %d", len(npe.Examples))
	}

	started := groups[1]
	if started.Count != 1 {
		t.Errorf("Expected started group count 1, got %d", started.Count)
	}
	if started.ErrorRate() != 0.0 {
		t.Errorf("Expected started error rate 0.0, got %f", started.ErrorRate())
	}
	if len(started.ExceptionTokens) != 0 {
		t.Errorf("Expected no exception tokens, got %v", started.Tokens())
	}
}

func TestAggregatorExampleCap(t *testing.T) {
	agg := NewAggregator(DefaultOptions(), 3)

	for i := 0; i < 10; i++ {
		agg.Add(events.LogEvent{
			Level:   events.LevelError,
			Message: fmt.Sprintf("query timed out after %d ms", i),
			RawLine: fmt.Sprintf("line-%d", i),
		})
	}

	groups := agg.Finalize()
	if len(groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(groups))
	}
	if groups[0].Count != 10 {
		t.Errorf("Expected count 10, got %d", groups[0].Count)
	}
	if len(groups[0].Examples) != 3 {
		t.Errorf("Expected examples capped at 3, got %d", len(groups[0].Examples))
	}
	// Examples are first-seen, not sampled.
	if groups[0].Examples[0] != "line-0" {
		t.Errorf("Expected first-seen example, got %q", groups[0].Examples[0])
	}
}

func TestFinalizeOrdering(t *testing.T) {
	agg := NewAggregator(DefaultOptions(), DefaultMaxExamples)

	add := func(msg string, n int) {
		for i := 0; i < n; i++ {
			agg.Add(events.LogEvent{Level: events.LevelInfo, Message: msg, RawLine: msg})
		}
	}
	add("bravo event", 2)
	add("alpha event", 2)
	add("charlie event", 5)

	groups := agg.Finalize()
	got := []string{groups[0].Signature, groups[1].Signature, groups[2].Signature}
	want := []string{"charlie event", "alpha event", "bravo event"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected order %v, got %v", want, got)
		}
	}
}

func TestMergeFrom(t *testing.T) {
	left := NewAggregator(DefaultOptions(), 3)
	right := NewAggregator(DefaultOptions(), 3)

	for i := 0; i < 4; i++ {
		left.Add(events.LogEvent{
			Level:   events.LevelError,
			Message: "DiskFailure on device sda1",
			RawLine: fmt.Sprintf("left-%d", i),
		})
	}
	for i := 0; i < 3; i++ {
		right.Add(events.LogEvent{
			Level:   events.LevelWarn,
			Message: "DiskFailure on device sda2",
			RawLine: fmt.Sprintf("right-%d", i),
		})
	}
	right.Add(events.LogEvent{
		Level:   events.LevelInfo,
		Message: "cache warmed",
		RawLine: "right-cache",
	})

	left.MergeFrom(right)
	groups := left.Finalize()

	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups after merge, got %d", len(groups))
	}

	disk := groups[0]
	if disk.Count != 7 {
		t.Errorf("Expected merged count 7, got %d", disk.Count)
	}
	if disk.LevelCounts[events.LevelError] != 4 || disk.LevelCounts[events.LevelWarn] != 3 {
		t.Errorf("Expected level histogram ERROR=4 WARN=3, got %v", disk.LevelCounts)
	}
	if len(disk.Examples) != 3 {
		t.Errorf("Expected examples capped at 3 after merge, got %d", len(disk.Examples))
	}
	if _, ok := disk.ExceptionTokens["DiskFailure"]; !ok {
		t.Errorf("Expected DiskFailure token after merge, got %v", disk.Tokens())
	}

	if left.TotalEvents() != 8 {
		t.Errorf("Expected 8 total events, got %d", left.TotalEvents())
	}
}
