// Package report renders the distribution of the collected responses as an
// HTML page.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/taurusgroup/dilithium-sca/pkg/equation"
)

// Histogram counts, for every response value in (-threshold, threshold), the
// records having this response, and those of them with y = 0.
type Histogram struct {
	Threshold int32
	All       []int
	Zeros     []int
}

// NewHistogram builds the histogram of records. Records whose response falls
// outside the threshold are ignored.
func NewHistogram(records []equation.Record, threshold int32) *Histogram {
	if threshold < 1 {
		threshold = 1
	}
	size := 2*int(threshold) - 1
	h := &Histogram{
		Threshold: threshold,
		All:       make([]int, size),
		Zeros:     make([]int, size),
	}
	for _, r := range records {
		if r.Response <= -threshold || r.Response >= threshold {
			continue
		}
		bin := int(r.Response + threshold - 1)
		h.All[bin]++
		if r.MaskedShare == 0 {
			h.Zeros[bin]++
		}
	}
	return h
}

// Labels returns the response value of each bin.
func (h *Histogram) Labels() []string {
	labels := make([]string, len(h.All))
	for i := range labels {
		labels[i] = strconv.Itoa(i - int(h.Threshold) + 1)
	}
	return labels
}

func barItems(counts []int) []opts.BarData {
	out := make([]opts.BarData, len(counts))
	for i, v := range counts {
		out[i] = opts.BarData{Value: v}
	}
	return out
}

// Chart returns the bar chart of h.
func (h *Histogram) Chart(title string) *charts.Bar {
	total, zeros := 0, 0
	for i := range h.All {
		total += h.All[i]
		zeros += h.Zeros[i]
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("records=%d, y=0: %d, threshold=%d", total, zeros, h.Threshold),
		}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "600px"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}, opts.DataZoom{Type: "slider"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(h.Labels()).
		AddSeries("all", barItems(h.All)).
		AddSeries("y = 0", barItems(h.Zeros)).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}))
	return bar
}

// Write renders the response histogram of records to w.
func Write(w io.Writer, records []equation.Record, threshold int32) error {
	page := components.NewPage().SetPageTitle("responses")
	page.AddCharts(NewHistogram(records, threshold).Chart("responses"))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}
