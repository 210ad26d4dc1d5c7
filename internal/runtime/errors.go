package runtime

import "fmt"

// ShapeError is a fatal, runtime op-stream problem: an op referencing
// an unbound name, a tensor primitive rejecting an incompatible
// shape, a grid_scatter with no grid_config. It aborts the current Step;
// the driver never retries (spec.md §7).
type ShapeError struct {
	Op     string
	Detail string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape error in op %q: %s", e.Op, e.Detail)
}

func shapeErrorf(op, format string, args ...interface{}) error {
	return &ShapeError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
