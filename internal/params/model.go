package params

import "fmt"

// Model exposes an ordered, stable sequence of parameters. Param returns a
// copy owned by the caller; SetParam installs a new value of matching shape,
// converting to whatever storage type the model uses.
type Model interface {
	NumParams() int
	Param(i int) Tensor
	SetParam(i int, t Tensor) error
}

// DType is the storage element type of a MemoryModel.
type DType int

const (
	Float64 DType = iota
	Float32
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	default:
		return "float64"
	}
}

// MemoryModel is an in-memory Model. With Float32 storage every installed
// value is rounded to float32 precision.
type MemoryModel struct {
	dtype  DType
	tensor []Tensor
}

// NewMemoryModel copies the given tensors into a model with float64 storage.
func NewMemoryModel(tensors ...Tensor) *MemoryModel {
	return NewMemoryModelOf(Float64, tensors...)
}

// NewMemoryModelOf copies the given tensors into a model with the given
// storage type.
func NewMemoryModelOf(dtype DType, tensors ...Tensor) *MemoryModel {
	m := &MemoryModel{dtype: dtype, tensor: make([]Tensor, len(tensors))}
	for i, t := range tensors {
		m.tensor[i] = m.convert(t)
	}
	return m
}

// DType returns the storage type.
func (m *MemoryModel) DType() DType { return m.dtype }

// NumParams implements Model.
func (m *MemoryModel) NumParams() int { return len(m.tensor) }

// Param implements Model.
func (m *MemoryModel) Param(i int) Tensor { return m.tensor[i].Clone() }

// SetParam implements Model.
func (m *MemoryModel) SetParam(i int, t Tensor) error {
	if i < 0 || i >= len(m.tensor) {
		return fmt.Errorf("parameter index %d out of range [0, %d)", i, len(m.tensor))
	}
	if !m.tensor[i].SameShape(t) {
		return &ShapeError{Index: i, Direction: -1, Want: m.tensor[i].Shape, Got: t.Shape}
	}
	m.tensor[i] = m.convert(t)
	return nil
}

func (m *MemoryModel) convert(t Tensor) Tensor {
	out := t.Clone()
	if m.dtype == Float32 {
		for i, v := range out.Data {
			out.Data[i] = float64(float32(v))
		}
	}
	return out
}
