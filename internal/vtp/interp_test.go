package vtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// bicubic lies in the span of x^a*y^b with a, b <= 3, which a tensor product
// of not-a-knot cubics reproduces exactly.
func bicubic(x, y float64) float64 {
	return 3 + y + x*x - 2*x*y*y*y + x*x*x*y*y
}

func TestUpsampleReproducesBicubic(t *testing.T) {
	xs := linspace(-1, 1, 6)
	ys := linspace(0, 2, 5)
	x, y, z := grid(xs, ys, bicubic)

	opts := DefaultOptions()
	opts.Interp = 9
	m, err := Build(x, y, z, opts)
	require.NoError(t, err)
	require.Equal(t, 9, m.Size)
	require.Equal(t, 81, m.NumPoints())

	xNew := linspace(-1, 1, 9)
	yNew := linspace(0, 2, 9)
	for i := 0; i < 9; i++ {
		for j := 0; j < 9; j++ {
			k := i*9 + j
			assert.Equal(t, xNew[j], m.Xs[k])
			assert.Equal(t, yNew[i], m.Ys[k])
			assert.InDelta(t, bicubic(xNew[j], yNew[i]), m.Zs[k], 1e-9, "cell (%d,%d)", i, j)
		}
	}
}

func TestUpsampleDescendingAxes(t *testing.T) {
	xs := linspace(1, -1, 5)
	ys := linspace(2, 0, 4)
	x, y, z := grid(xs, ys, bicubic)

	opts := DefaultOptions()
	opts.Interp = 6
	m, err := Build(x, y, z, opts)
	require.NoError(t, err)

	for k := range m.Zs {
		assert.InDelta(t, bicubic(m.Xs[k], m.Ys[k]), m.Zs[k], 1e-9)
	}
	assert.Equal(t, -1.0, m.Xs[0])
	assert.Equal(t, 0.0, m.Ys[0])
}

func TestUpsampleThenLog(t *testing.T) {
	xs := linspace(0, 1, 4)
	x, y, z := grid(xs, xs, func(x, y float64) float64 { return 1 })

	opts := DefaultOptions()
	opts.Interp = 5
	opts.Log = true
	m, err := Build(x, y, z, opts)
	require.NoError(t, err)
	for _, v := range m.Zs {
		assert.InDelta(t, 0.0953101798043249, v, 1e-12)
	}
}

func TestUpsampleRejections(t *testing.T) {
	square := func(n int) (x, y, z *mat.Dense) {
		xs := linspace(0, 1, n)
		return grid(xs, xs, func(x, y float64) float64 { return x * y })
	}

	t.Run("interp_below_four", func(t *testing.T) {
		x, y, z := square(5)
		for _, interp := range []int{1, 2, 3} {
			_, err := Build(x, y, z, Options{Interp: interp, ShowPolys: true})
			assert.ErrorIs(t, err, ErrFormat, "interp=%d", interp)
		}
	})

	t.Run("too_few_samples", func(t *testing.T) {
		x, y, z := square(3)
		_, err := Build(x, y, z, Options{Interp: 10, ShowPolys: true})
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("non_monotonic_axis", func(t *testing.T) {
		x, y, z := grid([]float64{0, 1, 0.5, 2}, linspace(0, 1, 4), func(x, y float64) float64 { return x })
		_, err := Build(x, y, z, Options{Interp: 8, ShowPolys: true})
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("disabled", func(t *testing.T) {
		x, y, z := square(3)
		m, err := Build(x, y, z, Options{Interp: 0, ShowPolys: true})
		require.NoError(t, err)
		assert.Equal(t, 3, m.Size)
	})
}
