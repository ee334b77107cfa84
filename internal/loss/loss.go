// Package loss reduces a model's predictions over a fixed, unshuffled data
// source to one scalar. It is the evaluator the landscape sweeps call once
// per grid point.
package loss

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/losscape/internal/params"
)

// DefaultNumBatches is the batch budget when Evaluator.NumBatches is unset.
const DefaultNumBatches = 8

// ErrNoForward is returned when the model cannot produce predictions and no
// Closure was supplied.
var ErrNoForward = errors.New("loss: model does not implement Forward and no closure was given")

// ErrNoData is returned when neither Data nor GetBatch was supplied.
var ErrNoData = errors.New("loss: no data source")

// Batch is one set of inputs (rows are samples) with aligned targets.
type Batch struct {
	Inputs  *mat.Dense
	Targets *mat.Dense
}

// Source yields batches in a fixed order.
type Source interface {
	Len() int
	Batch(i int) (Batch, error)
}

// Forward is implemented by models that can run inference on a batch.
type Forward interface {
	Forward(inputs mat.Matrix) (*mat.Dense, error)
}

// BatchFunc overrides how batch i is fetched.
type BatchFunc func(i int) (Batch, error)

// Criterion reduces predictions against targets to a scalar.
type Criterion func(pred, target mat.Matrix) float64

// Closure replaces the whole batch loop.
type Closure func(ctx context.Context, m params.Model) (float64, error)

// Evaluator averages Criterion over up to NumBatches batches.
type Evaluator struct {
	Data       Source
	GetBatch   BatchFunc
	Criterion  Criterion
	NumBatches int
	Closure    Closure
}

// Loss evaluates m. When a Closure is set it is used verbatim; otherwise
// batches come from GetBatch (if set) or Data.
func (e *Evaluator) Loss(ctx context.Context, m params.Model) (float64, error) {
	if e.Closure != nil {
		return e.Closure(ctx, m)
	}

	fwd, ok := m.(Forward)
	if !ok {
		return 0, ErrNoForward
	}

	n := e.NumBatches
	if n <= 0 {
		n = DefaultNumBatches
	}
	get := e.GetBatch
	if get == nil {
		if e.Data == nil {
			return 0, ErrNoData
		}
		if e.Data.Len() < n {
			n = e.Data.Len()
		}
		get = e.Data.Batch
	}
	if n == 0 {
		return 0, ErrNoData
	}

	criterion := e.Criterion
	if criterion == nil {
		criterion = MSE
	}

	var total float64
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		b, err := get(i)
		if err != nil {
			return 0, fmt.Errorf("batch %d: %w", i, err)
		}
		pred, err := fwd.Forward(b.Inputs)
		if err != nil {
			return 0, fmt.Errorf("forward batch %d: %w", i, err)
		}
		total += criterion(pred, b.Targets)
	}
	return total / float64(n), nil
}
