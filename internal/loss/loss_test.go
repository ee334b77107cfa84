package loss

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/losscape/internal/params"
)

// scaleModel predicts inputs * w for a single scalar parameter w.
type scaleModel struct {
	*params.MemoryModel
	calls int
}

func newScaleModel(w float64) *scaleModel {
	return &scaleModel{MemoryModel: params.NewMemoryModel(params.Full(w, 1))}
}

func (s *scaleModel) Forward(inputs mat.Matrix) (*mat.Dense, error) {
	s.calls++
	var out mat.Dense
	out.Scale(s.Param(0).Data[0], inputs)
	return &out, nil
}

func rampDataset(rows, batch int) *Dataset {
	in := mat.NewDense(rows, 1, nil)
	tg := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		in.Set(i, 0, float64(i+1))
		tg.Set(i, 0, float64(i+1))
	}
	return &Dataset{Inputs: in, Targets: tg, BatchSize: batch}
}

func TestDatasetBatches(t *testing.T) {
	ds := rampDataset(10, 4)
	require.Equal(t, 3, ds.Len())

	b, err := ds.Batch(2)
	require.NoError(t, err)
	r, _ := b.Inputs.Dims()
	assert.Equal(t, 2, r, "trailing partial batch")
	assert.Equal(t, 9.0, b.Inputs.At(0, 0))

	_, err = ds.Batch(3)
	assert.Error(t, err)
}

func TestEvaluatorMSE(t *testing.T) {
	m := newScaleModel(1)
	e := &Evaluator{Data: rampDataset(8, 4), NumBatches: 8}

	got, err := e.Loss(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got, "perfect model")

	require.NoError(t, m.SetParam(0, params.Full(2, 1)))
	got, err = e.Loss(context.Background(), m)
	require.NoError(t, err)
	// Batches [1..4] and [5..8]: errors are x, so MSE = mean(x^2) per batch.
	want := ((1.0+4+9+16)/4 + (25.0+36+49+64)/4) / 2
	assert.InDelta(t, want, got, 1e-12)
}

func TestEvaluatorLimitsBatches(t *testing.T) {
	m := newScaleModel(0)
	e := &Evaluator{Data: rampDataset(12, 2), NumBatches: 3}

	_, err := e.Loss(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 3, m.calls)
}

func TestEvaluatorDefaultBatchBudget(t *testing.T) {
	m := newScaleModel(0)
	e := &Evaluator{Data: rampDataset(40, 2)}

	_, err := e.Loss(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, DefaultNumBatches, m.calls)
}

func TestEvaluatorGetBatchOverride(t *testing.T) {
	m := newScaleModel(1)
	calls := 0
	e := &Evaluator{
		NumBatches: 2,
		GetBatch: func(i int) (Batch, error) {
			calls++
			in := mat.NewDense(1, 1, []float64{1})
			tg := mat.NewDense(1, 1, []float64{float64(i)})
			return Batch{Inputs: in, Targets: tg}, nil
		},
	}

	got, err := e.Loss(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	// (1-0)^2 and (1-1)^2
	assert.Equal(t, 0.5, got)
}

func TestEvaluatorClosureOverride(t *testing.T) {
	m := params.NewMemoryModel(params.Full(3, 2))
	e := &Evaluator{
		Closure: func(ctx context.Context, m params.Model) (float64, error) {
			return m.Param(0).Sum(), nil
		},
	}
	got, err := e.Loss(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 6.0, got)
}

func TestEvaluatorErrors(t *testing.T) {
	_, err := (&Evaluator{Data: rampDataset(4, 2)}).Loss(context.Background(), params.NewMemoryModel())
	assert.ErrorIs(t, err, ErrNoForward)

	_, err = (&Evaluator{}).Loss(context.Background(), newScaleModel(1))
	assert.ErrorIs(t, err, ErrNoData)

	boom := errors.New("disk gone")
	_, err = (&Evaluator{GetBatch: func(int) (Batch, error) { return Batch{}, boom }}).
		Loss(context.Background(), newScaleModel(1))
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&Evaluator{Data: rampDataset(4, 2)}).Loss(ctx, newScaleModel(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrossEntropy(t *testing.T) {
	pred := mat.NewDense(2, 2, []float64{0, 0, 10, -10})
	target := mat.NewDense(2, 1, []float64{0, 0})

	got := CrossEntropy(pred, target)
	want := (math.Log(2) + math.Log(1+math.Exp(-20))) / 2
	assert.InDelta(t, want, got, 1e-12)
}

func TestMSEEmpty(t *testing.T) {
	assert.Equal(t, 0.0, MSE(&mat.Dense{}, &mat.Dense{}))
}
