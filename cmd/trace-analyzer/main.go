// Package main replays a recorded match trace offline and reports what
// the tracker made of it: committed plays, anomalies, resets, and charts
// of the elixir estimate and per-card play counts. Useful for tuning
// tracker parameters against real matches.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/croverlay/croverlay/internal/config"
	"github.com/croverlay/croverlay/internal/events"
	"github.com/croverlay/croverlay/internal/knowledge"
	"github.com/croverlay/croverlay/internal/metrics"
	"github.com/croverlay/croverlay/internal/report"
	"github.com/croverlay/croverlay/internal/trace"
	"github.com/croverlay/croverlay/internal/tracker"
)

var (
	configPath = flag.String("config", "croverlay.toml", "Configuration file path")
	tracePath  = flag.String("trace", "", "Trace file to analyze (required)")
	password   = flag.String("password", "", "Password if the trace is an encrypted export")
	outDir     = flag.String("out", "", "Directory for rendered charts (default: alongside the trace)")
	speed      = flag.Float64("speed", 0, "Replay speed factor; 0 replays without delays")
)

// analysis accumulates everything the replay dispatches.
type analysis struct {
	plays     []events.PlayCommittedEvent
	elixir    []report.ElixirPoint
	anomalies int
	resets    int
	dropped   int
}

func main() {
	flag.Parse()

	if *tracePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: trace-analyzer -trace <file> [-password <pw>] [-out <dir>]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	kb, err := knowledge.Load(cfg.Paths.Knowledge)
	if err != nil {
		log.Fatalf("Failed to load knowledge base: %v", err)
	}

	var traceEvents []trace.Event
	if *password != "" {
		traceEvents, err = trace.ImportEncrypted(*tracePath, *password)
	} else {
		traceEvents, err = trace.ReadFile(*tracePath)
	}
	if err != nil {
		log.Fatalf("Failed to read trace: %v", err)
	}
	log.Printf("[Analyzer] Loaded %d events from %s", len(traceEvents), *tracePath)

	result := &analysis{}

	dispatcher := events.NewDispatcher()
	dispatcher.Register(&events.FuncObserver{
		Name: "TraceCollector",
		Fn:   result.collect,
	})

	trackerCfg, err := cfg.TrackerConfig()
	if err != nil {
		log.Fatalf("Invalid tracker config: %v", err)
	}
	// Offline replay is already ordered; buffering would only delay it.
	trackerCfg.ReorderWindow = 0

	m := metrics.NewTracker()
	session, err := tracker.NewSession(kb, trackerCfg, dispatcher, m)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}

	err = trace.Replay(context.Background(), traceEvents, session, trace.ReplayOptions{
		Speed: *speed,
	})
	if err != nil {
		log.Fatalf("Replay failed: %v", err)
	}

	result.printSummary(m)

	dir := *outDir
	if dir == "" {
		dir = filepath.Dir(*tracePath)
	}
	if err := result.renderCharts(dir); err != nil {
		log.Fatalf("Failed to render charts: %v", err)
	}
}

func (a *analysis) collect(event events.Event) error {
	switch event.Type {
	case events.TypePlayCommitted:
		if p, ok := events.Payload[events.PlayCommittedEvent](event); ok {
			a.plays = append(a.plays, p)
		}
	case events.TypeSnapshotUpdated:
		if p, ok := events.Payload[events.SnapshotUpdatedEvent](event); ok {
			a.elixir = append(a.elixir, report.ElixirPoint{
				Label: p.Elixir.LastUpdate.Format("15:04:05"),
				Value: p.Elixir.Value,
			})
		}
	case events.TypeAnomalousSpend:
		a.anomalies++
	case events.TypeHypothesisReset:
		a.resets++
	case events.TypeEventDropped:
		a.dropped++
	}
	return nil
}

func (a *analysis) printSummary(m *metrics.Tracker) {
	fmt.Println()
	fmt.Println("Trace Analysis")
	fmt.Println("==============")
	fmt.Printf("Committed plays:    %d\n", len(a.plays))
	fmt.Printf("Anomalous spends:   %d\n", a.anomalies)
	fmt.Printf("Hypothesis resets:  %d\n", a.resets)
	fmt.Printf("Dropped events:     %d\n", a.dropped)
	if m.ResolveLatencyMs.Count() > 0 {
		fmt.Printf("Resolve latency:    p50=%.2fms p95=%.2fms max=%.2fms\n",
			m.ResolveLatencyMs.Percentile(50),
			m.ResolveLatencyMs.Percentile(95),
			m.ResolveLatencyMs.Max())
	}
	if m.CorrectionDepth.Count() > 0 {
		fmt.Printf("Correction depth:   mean=%.1f max=%.0f\n",
			m.CorrectionDepth.Mean(), m.CorrectionDepth.Max())
	}

	corrected := 0
	for _, p := range a.plays {
		if p.Corrected > 0 {
			corrected++
		}
	}
	fmt.Printf("Corrected plays:    %d\n", corrected)
	fmt.Println()
}

func (a *analysis) renderCharts(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if len(a.elixir) > 0 {
		cfg := report.DefaultChartConfig()
		cfg.Title = "Opponent Elixir Estimate"
		cfg.Subtitle = fmt.Sprintf("%d samples", len(a.elixir))
		path := filepath.Join(dir, "elixir-timeline.html")
		if err := report.RenderElixirTimeline(a.elixir, cfg, path); err != nil {
			return err
		}
		log.Printf("[Analyzer] Wrote %s", path)
	}

	if len(a.plays) > 0 {
		counts := make(map[string]int)
		for _, p := range a.plays {
			counts[p.Card]++
		}
		playCounts := make([]report.PlayCount, 0, len(counts))
		for card, n := range counts {
			playCounts = append(playCounts, report.PlayCount{Card: card, Count: n})
		}
		sort.Slice(playCounts, func(i, j int) bool {
			if playCounts[i].Count != playCounts[j].Count {
				return playCounts[i].Count > playCounts[j].Count
			}
			return playCounts[i].Card < playCounts[j].Card
		})

		cfg := report.DefaultChartConfig()
		cfg.Title = "Opponent Play Counts"
		path := filepath.Join(dir, "play-counts.html")
		if err := report.RenderPlayCounts(playCounts, cfg, path); err != nil {
			return err
		}
		log.Printf("[Analyzer] Wrote %s", path)
	}

	return nil
}
