package loss

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MSE is the mean squared error over every element.
func MSE(pred, target mat.Matrix) float64 {
	r, c := pred.Dims()
	if r*c == 0 {
		return 0
	}
	var diff mat.Dense
	diff.Sub(pred, target)
	var sum float64
	for i := 0; i < r; i++ {
		row := diff.RawRowView(i)
		sum += floats.Dot(row, row)
	}
	return sum / float64(r*c)
}

// CrossEntropy treats each prediction row as logits and column 0 of target
// as the class index, and returns the mean negative log-likelihood.
func CrossEntropy(pred, target mat.Matrix) float64 {
	r, c := pred.Dims()
	if r == 0 {
		return 0
	}
	logits := make([]float64, c)
	var total float64
	for i := 0; i < r; i++ {
		mat.Row(logits, i, pred)
		lse := floats.LogSumExp(logits)
		class := int(math.Round(target.At(i, 0)))
		total += lse - logits[class]
	}
	return total / float64(r)
}
