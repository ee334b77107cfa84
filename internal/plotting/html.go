package plotting

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/losscape/internal/fsutil"
)

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// LineHTML writes an interactive line chart of losses against coords.
func LineHTML(fsys fsutil.FileSystem, path string, coords, losses []float64) error {
	if len(coords) == 0 || len(coords) != len(losses) {
		return fmt.Errorf("%w: %d coords, %d losses", ErrNoData, len(coords), len(losses))
	}

	labels := make([]string, len(coords))
	data := make([]opts.LineData, len(losses))
	for i := range coords {
		labels[i] = axisLabel(coords[i])
		data[i] = opts.LineData{Value: losses[i]}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Loss landscape (1D)", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Loss landscape", Subtitle: fmt.Sprintf("points=%d", len(coords))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "step", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "loss", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(labels)
	line.AddSeries("loss", data)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return fsutil.WriteFileAtomic(fsys, path, buf.Bytes(), 0o644)
}

// HeatmapHTML writes an interactive heatmap of z, sampled at xs (columns)
// and ys (rows).
func HeatmapHTML(fsys fsutil.FileSystem, path string, xs, ys []float64, z mat.Matrix) error {
	r, c := z.Dims()
	if r == 0 || c == 0 || r != len(ys) || c != len(xs) {
		return fmt.Errorf("%w: axes %dx%d, grid %dx%d", ErrNoData, len(ys), len(xs), r, c)
	}

	xLabels := make([]string, len(xs))
	for j, v := range xs {
		xLabels[j] = axisLabel(v)
	}
	yLabels := make([]string, len(ys))
	for i, v := range ys {
		yLabels[i] = axisLabel(v)
	}

	data := make([]opts.HeatMapData, 0, r*c)
	lo, hi := 0.0, 0.0
	first := true
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := z.At(i, j)
			if isBad(v) {
				continue
			}
			if first || v < lo {
				lo = v
			}
			if first || v > hi {
				hi = v
			}
			first = false
			data = append(data, opts.HeatMapData{Value: [3]interface{}{j, i, v}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Loss landscape (2D)", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Loss landscape", Subtitle: fmt.Sprintf("grid=%dx%d", r, c)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "x", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: yLabels, Name: "y", NameLocation: "middle", NameGap: 40}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.SetXAxis(xLabels)
	hm.AddSeries("loss", data)

	var buf bytes.Buffer
	if err := hm.Render(&buf); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return fsutil.WriteFileAtomic(fsys, path, buf.Bytes(), 0o644)
}

func axisLabel(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}
