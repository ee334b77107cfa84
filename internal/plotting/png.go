// Package plotting renders loss curves and surfaces as PNG images
// (gonum/plot) and interactive HTML pages (go-echarts).
package plotting

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/losscape/internal/fsutil"
)

// ErrNoData is returned for empty or mismatched inputs.
var ErrNoData = errors.New("plotting: no data")

const (
	width  = 8 * vg.Inch
	height = 6 * vg.Inch

	contourLevels = 10
)

// LinePNG plots losses against coords and writes a PNG to path.
func LinePNG(fsys fsutil.FileSystem, path string, coords, losses []float64) error {
	if len(coords) == 0 || len(coords) != len(losses) {
		return fmt.Errorf("%w: %d coords, %d losses", ErrNoData, len(coords), len(losses))
	}

	p := plot.New()
	p.Title.Text = "Loss landscape"
	p.X.Label.Text = "Step along direction"
	p.Y.Label.Text = "Loss"

	pts := make(plotter.XYs, len(coords))
	for i := range coords {
		pts[i] = plotter.XY{X: coords[i], Y: losses[i]}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("line plot: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Add(plotter.NewGrid())

	return savePNG(fsys, p, path)
}

// ContourPNG draws contour lines of z, sampled at xs (columns) and ys
// (rows), and writes a PNG to path.
func ContourPNG(fsys fsutil.FileSystem, path string, xs, ys []float64, z mat.Matrix) error {
	r, c := z.Dims()
	if r == 0 || c == 0 || r != len(ys) || c != len(xs) {
		return fmt.Errorf("%w: axes %dx%d, grid %dx%d", ErrNoData, len(ys), len(xs), r, c)
	}

	g := grid{xs: xs, ys: ys, z: z}

	p := plot.New()
	p.Title.Text = "Loss landscape"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.X.Min, p.X.Max = floats.Min(xs), floats.Max(xs)
	p.Y.Min, p.Y.Max = floats.Min(ys), floats.Max(ys)

	// A flat or all-NaN surface has no level lines to draw.
	if levels := contourLevelsFor(g); len(levels) > 0 {
		p.Add(plotter.NewContour(g, levels, palette.Heat(len(levels), 1)))
	}

	return savePNG(fsys, p, path)
}

func savePNG(fsys fsutil.FileSystem, p *plot.Plot, path string) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return fsutil.WriteFileAtomic(fsys, path, buf.Bytes(), 0o644)
}

// contourLevelsFor spaces levels evenly strictly inside the finite value
// range. It returns nil when the range is empty.
func contourLevelsFor(g grid) []float64 {
	vals := make([]float64, 0, len(g.xs)*len(g.ys))
	for i := range g.ys {
		for j := range g.xs {
			if v := g.z.At(i, j); !isBad(v) {
				vals = append(vals, v)
			}
		}
	}
	if len(vals) == 0 {
		return nil
	}
	lo, hi := floats.Min(vals), floats.Max(vals)
	if lo == hi {
		return nil
	}
	span := floats.Span(make([]float64, contourLevels+2), lo, hi)
	return span[1 : contourLevels+1]
}

// grid adapts a row-major matrix to plotter.GridXYZ, where c indexes
// columns (x) and r indexes rows (y).
type grid struct {
	xs, ys []float64
	z      mat.Matrix
}

func (g grid) Dims() (c, r int)   { return len(g.xs), len(g.ys) }
func (g grid) Z(c, r int) float64 { return g.z.At(r, c) }
func (g grid) X(c int) float64    { return g.xs[c] }
func (g grid) Y(r int) float64    { return g.ys[r] }

func isBad(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) }
