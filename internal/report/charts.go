// Package report renders interactive HTML reports from recorded match
// data: elixir estimates over time and opponent play counts.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartConfig holds presentation options shared by the renderers.
type ChartConfig struct {
	Title      string
	Subtitle   string
	Width      string // e.g. "900px"
	Height     string // e.g. "500px"
	Theme      string
	ShowLegend bool
	Smooth     bool
	Colors     []string
}

// DefaultChartConfig returns default chart configuration.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:      "900px",
		Height:     "500px",
		Theme:      "light",
		ShowLegend: true,
		Smooth:     true,
		Colors:     []string{"#5470C6", "#91CC75", "#FAC858", "#EE6666", "#73C0DE"},
	}
}

// ElixirPoint is one sample of the opponent elixir estimate.
type ElixirPoint struct {
	Label string // formatted match time, e.g. "1:23"
	Value float64
}

// PlayCount is how often one card was seen in a match (or across matches).
type PlayCount struct {
	Card  string
	Count int
}

// RenderElixirTimeline writes a line chart of the elixir estimate over
// match time to an HTML file.
func RenderElixirTimeline(points []ElixirPoint, config ChartConfig, outputPath string) error {
	line := charts.NewLine()

	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  config.Width,
			Height: config.Height,
			Theme:  config.Theme,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    config.Title,
			Subtitle: config.Subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(config.ShowLegend),
		}),
		charts.WithColorsOpts(opts.Colors{
			config.Colors[0],
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Max: 10,
			Min: 0,
		}),
	)

	xLabels := make([]string, len(points))
	yData := make([]opts.LineData, len(points))
	for i, p := range points {
		xLabels[i] = p.Label
		yData[i] = opts.LineData{Value: p.Value}
	}

	line.SetXAxis(xLabels).
		AddSeries("Elixir", yData).
		SetSeriesOptions(
			charts.WithLineChartOpts(opts.LineChart{
				Smooth: opts.Bool(config.Smooth),
			}),
			charts.WithLabelOpts(opts.Label{
				Show: opts.Bool(false),
			}),
		)

	return renderToFile(line, outputPath)
}

// RenderPlayCounts writes a bar chart of per-card play counts to an
// HTML file.
func RenderPlayCounts(counts []PlayCount, config ChartConfig, outputPath string) error {
	bar := charts.NewBar()

	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  config.Width,
			Height: config.Height,
			Theme:  config.Theme,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    config.Title,
			Subtitle: config.Subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(config.ShowLegend),
		}),
		charts.WithColorsOpts(opts.Colors{
			config.Colors[1],
		}),
	)

	xLabels := make([]string, len(counts))
	yData := make([]opts.BarData, len(counts))
	for i, c := range counts {
		xLabels[i] = c.Card
		yData[i] = opts.BarData{Value: c.Count}
	}

	bar.SetXAxis(xLabels).
		AddSeries("Plays", yData).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{
				Show:     opts.Bool(true),
				Position: "top",
			}),
		)

	return renderToFile(bar, outputPath)
}

type renderer interface {
	Render(w io.Writer) error
}

func renderToFile(chart renderer, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if err := chart.Render(f); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
