package sweep

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/losscape/internal/monitoring"
	"github.com/banshee-data/losscape/internal/params"
)

// ErrEvaluation matches every *EvaluationError.
var ErrEvaluation = errors.New("sweep: evaluation failed")

// EvaluationError reports which grid cell failed. Row is always 0 for a 1D
// sweep.
type EvaluationError struct {
	Row, Col int
	Step     params.Step
	Err      error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("sweep: evaluation at cell (%d,%d) step (%v,%v): %v",
		e.Row, e.Col, e.Step.X, e.Step.Y, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrEvaluation.
func (e *EvaluationError) Is(target error) bool { return target == ErrEvaluation }

// Evaluator computes a scalar loss for the model's current parameters.
type Evaluator interface {
	Loss(ctx context.Context, m params.Model) (float64, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, m params.Model) (float64, error)

// Loss calls f.
func (f EvaluatorFunc) Loss(ctx context.Context, m params.Model) (float64, error) {
	return f(ctx, m)
}

// Progress describes one finished evaluation.
type Progress struct {
	Index    int
	Row, Col int
	X, Y     float64
	Loss     float64
	Done     int
	Total    int
}

// Option configures a sweep.
type Option func(*options)

type options struct {
	progress func(Progress)
}

// WithProgress registers a callback invoked after every evaluation, in
// evaluation order.
func WithProgress(fn func(Progress)) Option {
	return func(o *options) { o.progress = fn }
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Line is the result of a 1D sweep.
type Line struct {
	Coords []float64
	Losses []float64
}

// Surface is the result of a 2D sweep. X, Y and Losses all have shape
// (len(Ys), len(Xs)) with X[i,j] = Xs[j] and Y[i,j] = Ys[i].
type Surface struct {
	Xs, Ys []float64
	X, Y   *mat.Dense
	Losses *mat.Dense
}

// Meshgrid expands the axes into coordinate matrices of shape
// (len(ys), len(xs)).
func Meshgrid(xs, ys []float64) (x, y *mat.Dense) {
	x = mat.NewDense(len(ys), len(xs), nil)
	y = mat.NewDense(len(ys), len(xs), nil)
	for i, yv := range ys {
		for j, xv := range xs {
			x.Set(i, j, xv)
			y.Set(i, j, yv)
		}
	}
	return x, y
}

// Sweep1D evaluates the loss at baseline + c*dir for every coordinate c of
// spec. The model holds the baseline again when Sweep1D returns, whether or
// not an evaluation failed.
func Sweep1D(ctx context.Context, m params.Model, baseline params.Snapshot, dir params.Direction,
	spec RangeSpec, eval Evaluator, opts ...Option) (line Line, err error) {
	if err := spec.Validate(); err != nil {
		return Line{}, err
	}
	o := collect(opts)

	p, err := params.Borrow(m, baseline, dir)
	if err != nil {
		return Line{}, err
	}
	defer func() {
		if rerr := p.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	coords := spec.Values()
	losses := make([]float64, len(coords))
	total := len(coords)
	for j, c := range coords {
		step := params.Step{X: c}
		loss, err := evaluate(ctx, p, eval, m, step)
		if err != nil {
			return Line{}, &EvaluationError{Row: 0, Col: j, Step: step, Err: err}
		}
		losses[j] = loss

		done := j + 1
		monitoring.Logf("[sweep] loss for x=%v is %v, done %d/%d (%.1f%%)",
			c, loss, done, total, 100*float64(done)/float64(total))
		if o.progress != nil {
			o.progress(Progress{Index: j, Col: j, X: c, Loss: loss, Done: done, Total: total})
		}
	}

	if err := p.Release(); err != nil {
		return Line{}, err
	}
	return Line{Coords: coords, Losses: losses}, nil
}

// Sweep2D evaluates the loss at baseline + x*dirs[0] + y*dirs[1] for every
// cell of the meshgrid of xSpec and ySpec, in row-major order. The model
// holds the baseline again when Sweep2D returns.
func Sweep2D(ctx context.Context, m params.Model, baseline params.Snapshot, dirs [2]params.Direction,
	xSpec, ySpec RangeSpec, eval Evaluator, opts ...Option) (surface Surface, err error) {
	if err := xSpec.Validate(); err != nil {
		return Surface{}, fmt.Errorf("x range: %w", err)
	}
	if err := ySpec.Validate(); err != nil {
		return Surface{}, fmt.Errorf("y range: %w", err)
	}
	o := collect(opts)

	p, err := params.Borrow(m, baseline, dirs[0], dirs[1])
	if err != nil {
		return Surface{}, err
	}
	defer func() {
		if rerr := p.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	xs, ys := xSpec.Values(), ySpec.Values()
	x, y := Meshgrid(xs, ys)
	losses := mat.NewDense(len(ys), len(xs), nil)
	total := len(xs) * len(ys)

	for i := range ys {
		for j := range xs {
			step := params.Step{X: x.At(i, j), Y: y.At(i, j)}
			loss, err := evaluate(ctx, p, eval, m, step)
			if err != nil {
				return Surface{}, &EvaluationError{Row: i, Col: j, Step: step, Err: err}
			}
			losses.Set(i, j, loss)

			idx := i*len(xs) + j
			done := idx + 1
			monitoring.Logf("[sweep] loss for x=%v and y=%v is %v, done %d/%d (%.1f%%)",
				step.X, step.Y, loss, done, total, 100*float64(done)/float64(total))
			if o.progress != nil {
				o.progress(Progress{Index: idx, Row: i, Col: j, X: step.X, Y: step.Y,
					Loss: loss, Done: done, Total: total})
			}
		}
	}

	if err := p.Release(); err != nil {
		return Surface{}, err
	}
	return Surface{Xs: xs, Ys: ys, X: x, Y: y, Losses: losses}, nil
}

func evaluate(ctx context.Context, p *params.Perturber, eval Evaluator, m params.Model, step params.Step) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := p.Set(step); err != nil {
		return 0, err
	}
	return eval.Loss(ctx, m)
}
