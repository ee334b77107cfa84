package params

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Snapshot is an owned copy of every parameter of a model, in model order.
type Snapshot []Tensor

// Direction is a per-parameter delta, shape-matched to a Snapshot.
type Direction []Tensor

// Step locates a point along one (X) or two (X, Y) directions.
type Step struct {
	X, Y float64
}

// TakeSnapshot deep-copies the model's current parameters.
func TakeSnapshot(m Model) Snapshot {
	s := make(Snapshot, m.NumParams())
	for i := range s {
		s[i] = m.Param(i).Clone()
	}
	return s
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for i, t := range s {
		out[i] = t.Clone()
	}
	return out
}

// Identical reports whether two snapshots are bit-for-bit equal.
func (s Snapshot) Identical(o Snapshot) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if !s[i].Identical(o[i]) {
			return false
		}
	}
	return true
}

// NumElements returns the total number of scalar parameters.
func (s Snapshot) NumElements() int {
	n := 0
	for _, t := range s {
		n += t.Len()
	}
	return n
}

// Clone returns a deep copy of the direction.
func (d Direction) Clone() Direction {
	out := make(Direction, len(d))
	for i, t := range d {
		out[i] = t.Clone()
	}
	return out
}

// Validate checks that baseline matches the model and that every direction
// matches baseline element-wise. It never mutates the model.
func Validate(m Model, baseline Snapshot, dirs []Direction) error {
	if len(dirs) != 1 && len(dirs) != 2 {
		return &ShapeError{Index: -1, Direction: -1, Reason: fmt.Sprintf("need 1 or 2 directions, got %d", len(dirs))}
	}
	if len(baseline) != m.NumParams() {
		return &ShapeError{Index: -1, Direction: -1,
			Reason: fmt.Sprintf("snapshot has %d parameters, model has %d", len(baseline), m.NumParams())}
	}
	for i, w := range baseline {
		if cur := m.Param(i); !cur.SameShape(w) {
			return &ShapeError{Index: i, Direction: -1, Want: cur.Shape, Got: w.Shape}
		}
	}
	for k, d := range dirs {
		if len(d) != len(baseline) {
			return &ShapeError{Index: -1, Direction: k,
				Reason: fmt.Sprintf("direction %d has %d parameters, snapshot has %d", k, len(d), len(baseline))}
		}
		for i := range d {
			if !d[i].SameShape(baseline[i]) {
				return &ShapeError{Index: i, Direction: k, Want: baseline[i].Shape, Got: d[i].Shape}
			}
		}
	}
	return nil
}

// Set installs baseline + delta into m, where delta is dirs[0]*step.X for a
// single direction and dirs[0]*step.X + dirs[1]*step.Y for two.
func Set(m Model, baseline Snapshot, dirs []Direction, step Step) error {
	if err := Validate(m, baseline, dirs); err != nil {
		return err
	}
	return install(m, baseline, dirs, step, nil)
}

// Restore installs every baseline tensor back into m.
func Restore(m Model, baseline Snapshot) error {
	if len(baseline) != m.NumParams() {
		return &ShapeError{Index: -1, Direction: -1,
			Reason: fmt.Sprintf("snapshot has %d parameters, model has %d", len(baseline), m.NumParams())}
	}
	for i, w := range baseline {
		if err := m.SetParam(i, w.Clone()); err != nil {
			return fmt.Errorf("restore parameter %d: %w", i, err)
		}
	}
	return nil
}

// install assumes Validate has passed. scratch, when non-nil, is reused for
// the per-parameter delta buffers.
func install(m Model, baseline Snapshot, dirs []Direction, step Step, scratch [][]float64) error {
	for i, w := range baseline {
		var delta []float64
		if scratch != nil {
			delta = scratch[i]
		} else {
			delta = make([]float64, w.Len())
		}
		floats.ScaleTo(delta, step.X, dirs[0][i].Data)
		if len(dirs) == 2 {
			floats.AddScaled(delta, step.Y, dirs[1][i].Data)
		}

		next := Tensor{Shape: append([]int(nil), w.Shape...), Data: make([]float64, w.Len())}
		floats.AddTo(next.Data, w.Data, delta)
		if err := m.SetParam(i, next); err != nil {
			return fmt.Errorf("set parameter %d: %w", i, err)
		}
	}
	return nil
}

// Perturber borrows a model's parameter state for the length of a sweep.
// The baseline is restored exactly once by Release; further calls are no-ops,
// so callers can both defer Release and call it explicitly to observe the
// restore error.
type Perturber struct {
	model    Model
	baseline Snapshot
	dirs     []Direction
	scratch  [][]float64
	released bool
}

// Borrow validates the baseline and directions against m and returns a
// Perturber. The model is untouched until the first Set.
func Borrow(m Model, baseline Snapshot, dirs ...Direction) (*Perturber, error) {
	if err := Validate(m, baseline, dirs); err != nil {
		return nil, err
	}
	scratch := make([][]float64, len(baseline))
	for i, w := range baseline {
		scratch[i] = make([]float64, w.Len())
	}
	return &Perturber{model: m, baseline: baseline, dirs: dirs, scratch: scratch}, nil
}

// Dims returns the number of directions (1 or 2).
func (p *Perturber) Dims() int { return len(p.dirs) }

// Set installs the perturbation for step. Y is ignored with one direction.
func (p *Perturber) Set(step Step) error {
	if p.released {
		return ErrReleased
	}
	return install(p.model, p.baseline, p.dirs, step, p.scratch)
}

// Release restores the baseline. Only the first call does any work.
func (p *Perturber) Release() error {
	if p.released {
		return nil
	}
	p.released = true
	return Restore(p.model, p.baseline)
}
