package vtp

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
)

// minSplinePoints is the fewest samples a not-a-knot cubic can fit.
const minSplinePoints = 4

var errNotMonotonic = errors.New("not strictly monotonic")

type fitPredictor interface {
	Fit(xs, ys []float64) error
	Predict(x float64) float64
}

// upsample resamples z onto a size x size grid spanning the extent of x and
// y with a bicubic spline: a not-a-knot cubic along x for each row,
// followed by one along y for each resampled column. It returns the flattened
// meshgrid of the new axes and the resampled values, row-major.
func upsample(x, y, z mat.Matrix, size int) (xs, ys, zs []float64, err error) {
	if size < minSplinePoints {
		return nil, nil, nil, formatErrorf("interp must be at least %d, got %d", minSplinePoints, size)
	}

	rows, cols := z.Dims()
	xAxis := mat.Row(nil, 0, x)
	yAxis := mat.Col(nil, 0, y)
	if cols < minSplinePoints || rows < minSplinePoints {
		return nil, nil, nil, formatErrorf("interpolation needs at least %dx%d samples, got %dx%d",
			minSplinePoints, minSplinePoints, rows, cols)
	}

	grid := mat.DenseCopyOf(z)
	xAsc, err := ascending(xAxis)
	if err != nil {
		return nil, nil, nil, formatErrorf("x axis: %v", err)
	}
	if !xAsc {
		reverse(xAxis)
		for i := 0; i < rows; i++ {
			reverse(grid.RawRowView(i))
		}
	}
	yAsc, err := ascending(yAxis)
	if err != nil {
		return nil, nil, nil, formatErrorf("y axis: %v", err)
	}
	if !yAsc {
		reverse(yAxis)
		for i := 0; i < rows/2; i++ {
			a, b := mat.Row(nil, i, grid), mat.Row(nil, rows-1-i, grid)
			grid.SetRow(i, b)
			grid.SetRow(rows-1-i, a)
		}
	}

	// The new extents come from every coordinate, not only the axes.
	flatX, flatY := flatten(x), flatten(y)
	xNew := span(floats.Min(flatX), floats.Max(flatX), size)
	yNew := span(floats.Min(flatY), floats.Max(flatY), size)

	var spline fitPredictor = &interp.NotAKnotCubic{}

	alongX := mat.NewDense(rows, size, nil)
	for i := 0; i < rows; i++ {
		if err := spline.Fit(xAxis, grid.RawRowView(i)); err != nil {
			return nil, nil, nil, formatErrorf("fit row %d: %v", i, err)
		}
		for j, xv := range xNew {
			alongX.Set(i, j, spline.Predict(xv))
		}
	}

	out := mat.NewDense(size, size, nil)
	colBuf := make([]float64, rows)
	for j := 0; j < size; j++ {
		mat.Col(colBuf, j, alongX)
		if err := spline.Fit(yAxis, colBuf); err != nil {
			return nil, nil, nil, formatErrorf("fit column %d: %v", j, err)
		}
		for i, yv := range yNew {
			out.Set(i, j, spline.Predict(yv))
		}
	}

	xs = make([]float64, 0, size*size)
	ys = make([]float64, 0, size*size)
	for _, yv := range yNew {
		for _, xv := range xNew {
			xs = append(xs, xv)
			ys = append(ys, yv)
		}
	}
	return xs, ys, flatten(out), nil
}

// ascending reports the direction of a strictly monotonic axis.
func ascending(axis []float64) (bool, error) {
	up, down := true, true
	for i := 1; i < len(axis); i++ {
		if !(axis[i] > axis[i-1]) {
			up = false
		}
		if !(axis[i] < axis[i-1]) {
			down = false
		}
	}
	if !up && !down {
		return false, errNotMonotonic
	}
	return up, nil
}

func reverse(v []float64) {
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
}

func span(min, max float64, n int) []float64 {
	v := floats.Span(make([]float64, n), min, max)
	v[n-1] = max
	return v
}
