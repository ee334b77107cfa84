package linreg

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/losscape/internal/loss"
)

// Synthetic draws samples inputs from a standard normal and labels them
// with truth plus Gaussian noise of the given standard deviation. The
// returned dataset is in a fixed order, so every evaluation sees the same
// batches.
func Synthetic(truth *Model, samples, batchSize int, noise float64, seed uint64) (*loss.Dataset, error) {
	src := rand.NewPCG(seed, ^seed)
	feature := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	inputs := mat.NewDense(samples, truth.In, nil)
	raw := inputs.RawMatrix().Data
	for i := range raw {
		raw[i] = feature.Rand()
	}

	targets, err := truth.Forward(inputs)
	if err != nil {
		return nil, err
	}
	if noise > 0 {
		eps := distuv.Normal{Mu: 0, Sigma: noise, Src: src}
		t := targets.RawMatrix().Data
		for i := range t {
			t[i] += eps.Rand()
		}
	}

	return &loss.Dataset{Inputs: inputs, Targets: targets, BatchSize: batchSize}, nil
}
