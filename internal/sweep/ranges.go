// Package sweep evaluates a loss at every point of a 1D or 2D grid of steps
// along one or two parameter-space directions. The grid is walked strictly
// in sequence: each evaluation borrows the model's parameter storage.
package sweep

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// MaxPoints bounds the number of samples along one axis.
const MaxPoints = 10000

// RangeSpec is an inclusive, evenly sampled interval.
type RangeSpec struct {
	Min float64
	Max float64
	Num int
}

// ParseRangeSpec parses "min:max" or "min:max:num". When num is omitted,
// defaultNum is used.
func ParseRangeSpec(s string, defaultNum int) (RangeSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return RangeSpec{}, fmt.Errorf("invalid range format %q: expected min:max or min:max:num", s)
	}

	min, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid min value %q: %w", parts[0], err)
	}

	max, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid max value %q: %w", parts[1], err)
	}

	num := defaultNum
	if len(parts) == 3 {
		num, err = strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return RangeSpec{}, fmt.Errorf("invalid num value %q: %w", parts[2], err)
		}
	}

	spec := RangeSpec{Min: min, Max: max, Num: num}
	if err := spec.Validate(); err != nil {
		return RangeSpec{}, err
	}
	return spec, nil
}

// Validate checks the sample count.
func (r RangeSpec) Validate() error {
	if r.Num < 1 {
		return fmt.Errorf("num must be positive, got %d", r.Num)
	}
	if r.Num > MaxPoints {
		return fmt.Errorf("num must not exceed %d, got %d", MaxPoints, r.Num)
	}
	return nil
}

// Values returns the sampled coordinates.
func (r RangeSpec) Values() []float64 {
	return Linspace(r.Min, r.Max, r.Num)
}

// String renders the spec in the form ParseRangeSpec accepts.
func (r RangeSpec) String() string {
	return fmt.Sprintf("%g:%g:%d", r.Min, r.Max, r.Num)
}

// Linspace returns n evenly spaced values from min to max inclusive:
// v[i] = min + i*(max-min)/(n-1). n == 1 yields [min]; n < 1 yields nil.
func Linspace(min, max float64, n int) []float64 {
	if n < 1 {
		return nil
	}
	if n == 1 {
		return []float64{min}
	}
	v := floats.Span(make([]float64, n), min, max)
	v[n-1] = max
	return v
}
