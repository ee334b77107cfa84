// Package params holds the parameter perturbation engine: owned snapshots
// of a model's parameters, direction vectors, and the scoped Perturber
// that installs baseline+delta values and guarantees the baseline is put
// back on every exit path.
package params

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Tensor is a dense row-major array of float64 values with an explicit shape.
type Tensor struct {
	Shape []int
	Data  []float64
}

// NewTensor wraps data with the given shape. The data length must equal the
// product of the shape.
func NewTensor(shape []int, data []float64) (Tensor, error) {
	n := numElements(shape)
	if n < 0 {
		return Tensor{}, fmt.Errorf("invalid shape %v", shape)
	}
	if len(data) != n {
		return Tensor{}, fmt.Errorf("shape %v needs %d values, got %d", shape, n, len(data))
	}
	return Tensor{Shape: append([]int(nil), shape...), Data: data}, nil
}

// Zeros returns a zero-filled tensor of the given shape.
func Zeros(shape ...int) Tensor {
	return Full(0, shape...)
}

// Full returns a tensor of the given shape with every element set to v.
func Full(v float64, shape ...int) Tensor {
	n := numElements(shape)
	if n < 0 {
		panic(fmt.Sprintf("params: invalid shape %v", shape))
	}
	data := make([]float64, n)
	if v != 0 {
		for i := range data {
			data[i] = v
		}
	}
	return Tensor{Shape: append([]int(nil), shape...), Data: data}
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return -1
		}
		n *= d
	}
	return n
}

// Len returns the number of elements.
func (t Tensor) Len() int { return len(t.Data) }

// Clone returns a deep copy.
func (t Tensor) Clone() Tensor {
	return Tensor{
		Shape: append([]int(nil), t.Shape...),
		Data:  append([]float64(nil), t.Data...),
	}
}

// SameShape reports whether t and o have identical shapes and lengths.
func (t Tensor) SameShape(o Tensor) bool {
	if len(t.Shape) != len(o.Shape) || len(t.Data) != len(o.Data) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

// Identical reports whether t and o have the same shape and bit-identical
// data. NaNs compare equal to NaNs with the same payload.
func (t Tensor) Identical(o Tensor) bool {
	if !t.SameShape(o) {
		return false
	}
	for i, v := range t.Data {
		if math.Float64bits(v) != math.Float64bits(o.Data[i]) {
			return false
		}
	}
	return true
}

// Sum returns the sum of all elements.
func (t Tensor) Sum() float64 {
	return floats.Sum(t.Data)
}

// Norm returns the Euclidean norm of the flattened tensor.
func (t Tensor) Norm() float64 {
	return floats.Norm(t.Data, 2)
}

// Rows returns the leading dimension and the number of elements per row.
// A 0-d or 1-d tensor is a single row.
func (t Tensor) Rows() (rows, width int) {
	if len(t.Shape) < 2 {
		return 1, len(t.Data)
	}
	rows = t.Shape[0]
	if rows == 0 {
		return 0, 0
	}
	return rows, len(t.Data) / rows
}
