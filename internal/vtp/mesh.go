// Package vtp renders a 2D loss surface as a VTK XML PolyData (.vtp) file:
// one point per grid sample and one quad per grid cell.
package vtp

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LogOffset is added to every loss before the log transform.
const LogOffset = 0.1

// ErrFormat matches every *FormatError.
var ErrFormat = errors.New("vtp: format error")

// FormatError reports a grid that cannot be serialized.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "vtp: format error: " + e.Reason }

// Is lets errors.Is match ErrFormat.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

func formatErrorf(format string, args ...interface{}) error {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}

// Options control the transform and layout of the emitted mesh.
type Options struct {
	// Log replaces every loss z with ln(z + LogOffset), after clamping.
	Log bool
	// ZMax clamps losses above it. Values <= 0 disable the clamp.
	ZMax float64
	// Interp resamples the grid onto Interp x Interp points. Values <= 0
	// disable resampling; 1 to 3 are rejected.
	Interp int
	// ShowPoints also emits one vertex cell per point.
	ShowPoints bool
	// ShowPolys emits one quad per grid cell.
	ShowPolys bool
	// OutputDir is the directory the file is written into.
	OutputDir string
}

// DefaultOptions returns polys-only output with no clamp and no resampling.
func DefaultOptions() Options {
	return Options{ZMax: -1, Interp: -1, ShowPolys: true}
}

// normalized turns an Options that selects neither points nor polys into
// the polys-only default, so a zero-value Options renders a surface.
func (o Options) normalized() Options {
	if !o.ShowPoints && !o.ShowPolys {
		o.ShowPolys = true
	}
	return o
}

// Mesh is a square grid flattened row-major, ready to serialize.
type Mesh struct {
	Xs, Ys, Zs []float64
	// Size is the number of samples along one side.
	Size int
	// Averages holds one mean z per quad, in emission order.
	Averages []float64
}

// NumPoints returns Size*Size.
func (m *Mesh) NumPoints() int { return len(m.Zs) }

// NumPolys returns (Size-1)*(Size-1).
func (m *Mesh) NumPolys() int { return (m.Size - 1) * (m.Size - 1) }

// Quad returns the connectivity of quad k. Quads are laid out with the
// outer loop over columns and the inner loop over rows.
func (m *Mesh) Quad(k int) [4]int {
	s := m.Size
	poly := s - 1
	base := (k/poly)*s + k%poly
	return [4]int{base, base + 1, base + s + 1, base + s}
}

// Build flattens x, y and z, optionally resamples, clamps and log-scales z,
// and computes the per-quad averages.
//
// The averaged corners are (base, base+1, base+s, base+s+1) while the
// connectivity lists (base, base+1, base+s+1, base+s). Both orders are kept
// as they are so output stays comparable with existing files.
func Build(x, y, z mat.Matrix, opts Options) (*Mesh, error) {
	rx, cx := x.Dims()
	ry, cy := y.Dims()
	rz, cz := z.Dims()
	if rx != rz || cx != cz || ry != rz || cy != cz {
		return nil, formatErrorf("coordinate shapes (%d,%d) and (%d,%d) do not match losses (%d,%d)",
			rx, cx, ry, cy, rz, cz)
	}

	xs, ys, zs := flatten(x), flatten(y), flatten(z)
	if opts.Interp > 0 {
		var err error
		xs, ys, zs, err = upsample(x, y, z, opts.Interp)
		if err != nil {
			return nil, err
		}
	}

	n := len(zs)
	size := int(math.Sqrt(float64(n)))
	for size*size > n {
		size--
	}
	for (size+1)*(size+1) <= n {
		size++
	}
	if size*size != n {
		return nil, formatErrorf("%d points do not form a square grid", n)
	}
	if size < 2 {
		return nil, formatErrorf("%d points cannot form a quad; need at least a 2x2 grid", n)
	}

	if opts.ZMax > 0 {
		for i, v := range zs {
			if v > opts.ZMax {
				zs[i] = opts.ZMax
			}
		}
	}
	if opts.Log {
		for i, v := range zs {
			zs[i] = math.Log(v + LogOffset)
		}
	}

	m := &Mesh{Xs: xs, Ys: ys, Zs: zs, Size: size}
	m.Averages = make([]float64, 0, m.NumPolys())
	for col := 0; col < size-1; col++ {
		for row := 0; row < size-1; row++ {
			base := col*size + row
			avg := (zs[base] + zs[base+1] + zs[base+size] + zs[base+size+1]) / 4.0
			m.Averages = append(m.Averages, avg)
		}
	}
	return m, nil
}

func flatten(a mat.Matrix) []float64 {
	r, c := a.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, a.At(i, j))
		}
	}
	return out
}
