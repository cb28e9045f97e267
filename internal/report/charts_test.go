package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderElixirTimeline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "elixir.html")
	points := []ElixirPoint{
		{Label: "0:00", Value: 5.0},
		{Label: "0:10", Value: 7.2},
		{Label: "0:20", Value: 3.5},
	}

	cfg := DefaultChartConfig()
	cfg.Title = "Opponent Elixir"
	if err := RenderElixirTimeline(points, cfg, path); err != nil {
		t.Fatalf("RenderElixirTimeline failed: %v", err)
	}

	html, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read chart: %v", err)
	}
	if !strings.Contains(string(html), "Opponent Elixir") {
		t.Error("Chart title missing from output")
	}
	if !strings.Contains(string(html), "0:10") {
		t.Error("Axis labels missing from output")
	}
}

func TestRenderPlayCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plays.html")
	counts := []PlayCount{
		{Card: "hog_rider", Count: 6},
		{Card: "fireball", Count: 3},
	}

	if err := RenderPlayCounts(counts, DefaultChartConfig(), path); err != nil {
		t.Fatalf("RenderPlayCounts failed: %v", err)
	}

	html, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read chart: %v", err)
	}
	if !strings.Contains(string(html), "hog_rider") {
		t.Error("Card labels missing from output")
	}
}

func TestRenderEmptySeries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.html")
	if err := RenderElixirTimeline(nil, DefaultChartConfig(), path); err != nil {
		t.Fatalf("Empty timeline should still render: %v", err)
	}
	if err := RenderPlayCounts(nil, DefaultChartConfig(), path); err != nil {
		t.Fatalf("Empty counts should still render: %v", err)
	}
}
