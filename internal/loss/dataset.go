package loss

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Dataset serves fixed-size, in-order batches out of two aligned matrices.
// The trailing partial batch is kept.
type Dataset struct {
	Inputs    *mat.Dense
	Targets   *mat.Dense
	BatchSize int
}

// Len returns the number of batches.
func (d *Dataset) Len() int {
	rows, _ := d.Inputs.Dims()
	if rows == 0 || d.BatchSize <= 0 {
		return 0
	}
	return (rows + d.BatchSize - 1) / d.BatchSize
}

// Batch returns batch i as views into the underlying matrices.
func (d *Dataset) Batch(i int) (Batch, error) {
	if i < 0 || i >= d.Len() {
		return Batch{}, fmt.Errorf("batch %d out of range [0, %d)", i, d.Len())
	}
	rows, inCols := d.Inputs.Dims()
	_, outCols := d.Targets.Dims()
	lo := i * d.BatchSize
	hi := lo + d.BatchSize
	if hi > rows {
		hi = rows
	}
	return Batch{
		Inputs:  d.Inputs.Slice(lo, hi, 0, inCols).(*mat.Dense),
		Targets: d.Targets.Slice(lo, hi, 0, outCols).(*mat.Dense),
	}, nil
}
