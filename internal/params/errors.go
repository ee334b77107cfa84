package params

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch reports that a snapshot or direction does not line up
// with the model's parameters. Nothing has been mutated when it is returned.
var ErrShapeMismatch = errors.New("params: shape mismatch")

// ErrReleased is returned by Perturber.Set after the borrow was released.
var ErrReleased = errors.New("params: perturber already released")

// ShapeError carries the offending parameter. Direction is the index of the
// direction involved, or -1 when the mismatch is between the snapshot and
// the model.
type ShapeError struct {
	Index     int
	Direction int
	Want      []int
	Got       []int
	Reason    string
}

func (e *ShapeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("params: shape mismatch: %s", e.Reason)
	}
	if e.Direction >= 0 {
		return fmt.Sprintf("params: shape mismatch at parameter %d of direction %d: want %v, got %v",
			e.Index, e.Direction, e.Want, e.Got)
	}
	return fmt.Sprintf("params: shape mismatch at parameter %d: want %v, got %v", e.Index, e.Want, e.Got)
}

// Is lets errors.Is match ErrShapeMismatch.
func (e *ShapeError) Is(target error) bool {
	return target == ErrShapeMismatch
}
