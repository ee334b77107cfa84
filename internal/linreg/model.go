// Package linreg is a small float32 linear regressor, y = x*W^T + b, used
// as the model whose loss landscape the CLI explores.
package linreg

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/losscape/internal/config"
	"github.com/banshee-data/losscape/internal/fsutil"
	"github.com/banshee-data/losscape/internal/params"
)

// ErrUnsupportedDevice is returned by Load for an unknown execution target.
var ErrUnsupportedDevice = errors.New("linreg: unsupported device")

// Parameter indices, in model order.
const (
	WeightIndex = 0
	BiasIndex   = 1
)

// Model holds weights of shape (out, in) and a bias of shape (out,), both
// stored at float32 precision.
type Model struct {
	*params.MemoryModel

	In, Out int
	Device  string
}

// New returns a model initialized like a dense layer: every value drawn
// uniformly from (-1/sqrt(in), 1/sqrt(in)).
func New(in, out int, seed uint64) *Model {
	bound := 1 / math.Sqrt(float64(in))
	u := distuv.Uniform{Min: -bound, Max: bound, Src: rand.NewPCG(seed, seed+1)}

	w := params.Zeros(out, in)
	for i := range w.Data {
		w.Data[i] = u.Rand()
	}
	b := params.Zeros(out)
	for i := range b.Data {
		b.Data[i] = u.Rand()
	}
	return &Model{
		MemoryModel: params.NewMemoryModelOf(params.Float32, w, b),
		In:          in,
		Out:         out,
		Device:      "cpu",
	}
}

// FromValues builds a model from explicit weights (row-major, out x in) and
// bias.
func FromValues(in, out int, weights, bias []float64) (*Model, error) {
	w, err := params.NewTensor([]int{out, in}, append([]float64(nil), weights...))
	if err != nil {
		return nil, fmt.Errorf("weights: %w", err)
	}
	b, err := params.NewTensor([]int{out}, append([]float64(nil), bias...))
	if err != nil {
		return nil, fmt.Errorf("bias: %w", err)
	}
	return &Model{
		MemoryModel: params.NewMemoryModelOf(params.Float32, w, b),
		In:          in,
		Out:         out,
		Device:      "cpu",
	}, nil
}

// Forward returns inputs*W^T + b, one row per sample.
func (m *Model) Forward(inputs mat.Matrix) (*mat.Dense, error) {
	rows, cols := inputs.Dims()
	if cols != m.In {
		return nil, fmt.Errorf("linreg: input has %d features, model expects %d", cols, m.In)
	}
	w := m.Param(WeightIndex)
	b := m.Param(BiasIndex)

	out := mat.NewDense(rows, m.Out, nil)
	out.Mul(inputs, mat.NewDense(m.Out, m.In, w.Data).T())
	for i := 0; i < rows; i++ {
		row := out.RawRowView(i)
		for j := range row {
			row[j] += b.Data[j]
		}
	}
	return out, nil
}

// Fit sets the parameters to the least-squares solution for inputs and
// targets.
func (m *Model) Fit(inputs, targets mat.Matrix) error {
	rows, cols := inputs.Dims()
	trows, tcols := targets.Dims()
	if cols != m.In || tcols != m.Out || rows != trows {
		return fmt.Errorf("linreg: fit shapes (%d,%d) and (%d,%d) do not match model %dx%d",
			rows, cols, trows, tcols, m.Out, m.In)
	}

	// Augment with a ones column so the bias is solved alongside W.
	a := mat.NewDense(rows, cols+1, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			a.Set(i, j, inputs.At(i, j))
		}
		a.Set(i, cols, 1)
	}

	var sol mat.Dense
	if err := sol.Solve(a, targets); err != nil {
		return fmt.Errorf("linreg: least squares: %w", err)
	}

	w := params.Zeros(m.Out, m.In)
	b := params.Zeros(m.Out)
	for o := 0; o < m.Out; o++ {
		for j := 0; j < m.In; j++ {
			w.Data[o*m.In+j] = sol.At(j, o)
		}
		b.Data[o] = sol.At(cols, o)
	}
	if err := m.SetParam(WeightIndex, w); err != nil {
		return err
	}
	return m.SetParam(BiasIndex, b)
}

// checkpoint is the on-disk JSON form of a model.
type checkpoint struct {
	In      int         `json:"in"`
	Out     int         `json:"out"`
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

// Load reads a JSON checkpoint and places the model on device.
func Load(fsys fsutil.FileSystem, path, device string) (*Model, error) {
	if !config.IsSupportedDevice(device) {
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnsupportedDevice, device, config.SupportedDevices)
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var ck checkpoint
	if err := json.Unmarshal(data, &ck); err != nil {
		return nil, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	if ck.In < 1 || ck.Out < 1 {
		return nil, fmt.Errorf("checkpoint %s: in and out must be positive, got %d and %d", path, ck.In, ck.Out)
	}
	if len(ck.Weights) != ck.Out {
		return nil, fmt.Errorf("checkpoint %s: %d weight rows, want %d", path, len(ck.Weights), ck.Out)
	}

	flat := make([]float64, 0, ck.In*ck.Out)
	for i, row := range ck.Weights {
		if len(row) != ck.In {
			return nil, fmt.Errorf("checkpoint %s: weight row %d has %d values, want %d", path, i, len(row), ck.In)
		}
		flat = append(flat, row...)
	}
	m, err := FromValues(ck.In, ck.Out, flat, ck.Bias)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	m.Device = device
	return m, nil
}

// Save writes the model as a JSON checkpoint.
func (m *Model) Save(fsys fsutil.FileSystem, path string) error {
	w := m.Param(WeightIndex)
	ck := checkpoint{In: m.In, Out: m.Out, Bias: m.Param(BiasIndex).Data}
	for o := 0; o < m.Out; o++ {
		ck.Weights = append(ck.Weights, w.Data[o*m.In:(o+1)*m.In])
	}
	data, err := json.MarshalIndent(ck, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return fsutil.WriteFileAtomic(fsys, path, data, 0o644)
}
