// Package directions generates random, filter-normalized directions in a
// model's parameter space. The sampling core treats its output as opaque
// per-parameter deltas.
package directions

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/losscape/internal/params"
)

// normEpsilon keeps filter rescaling finite for all-zero random filters.
const normEpsilon = 1e-10

// Generator draws Gaussian directions from a seeded source.
type Generator struct {
	// IgnoreBiasBN zeroes 0-d and 1-d parameters (biases, norm scales)
	// instead of copying the weights into them.
	IgnoreBiasBN bool

	normal distuv.Normal
}

// NewGenerator returns a Generator seeded deterministically from seed.
func NewGenerator(seed uint64, ignoreBiasBN bool) *Generator {
	return &Generator{
		IgnoreBiasBN: ignoreBiasBN,
		normal: distuv.Normal{
			Mu:    0,
			Sigma: 1,
			Src:   rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
		},
	}
}

// Random draws an unnormalized direction shaped like weights.
func (g *Generator) Random(weights params.Snapshot) params.Direction {
	d := make(params.Direction, len(weights))
	for i, w := range weights {
		t := params.Zeros(w.Shape...)
		for j := range t.Data {
			t.Data[j] = g.normal.Rand()
		}
		d[i] = t
	}
	return d
}

// CreateRandomDirection returns one filter-normalized direction for m.
func (g *Generator) CreateRandomDirection(m params.Model) params.Direction {
	w := params.TakeSnapshot(m)
	d := g.Random(w)
	FilterNormalize(d, w, g.IgnoreBiasBN)
	return d
}

// CreateRandomDirections returns two independent filter-normalized
// directions for m.
func (g *Generator) CreateRandomDirections(m params.Model) (params.Direction, params.Direction) {
	w := params.TakeSnapshot(m)
	x := g.Random(w)
	FilterNormalize(x, w, g.IgnoreBiasBN)
	y := g.Random(w)
	FilterNormalize(y, w, g.IgnoreBiasBN)
	return x, y
}

// FilterNormalize rescales d in place so every filter (row along the
// leading axis) has the norm of the matching weight filter. Parameters with
// fewer than two dimensions are zeroed when ignoreBiasBN is set and copied
// from the weights otherwise.
func FilterNormalize(d params.Direction, weights params.Snapshot, ignoreBiasBN bool) {
	for i := range d {
		dt, wt := d[i], weights[i]
		if len(dt.Shape) <= 1 {
			if ignoreBiasBN {
				for j := range dt.Data {
					dt.Data[j] = 0
				}
			} else {
				copy(dt.Data, wt.Data)
			}
			continue
		}

		rows, width := dt.Rows()
		for r := 0; r < rows; r++ {
			df := dt.Data[r*width : (r+1)*width]
			wf := wt.Data[r*width : (r+1)*width]
			scale := floats.Norm(wf, 2) / (floats.Norm(df, 2) + normEpsilon)
			floats.Scale(scale, df)
		}
	}
}
