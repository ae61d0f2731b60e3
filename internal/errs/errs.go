package errs

import (
	"fmt"
)

// ErrModuleNotFound is returned when neither the embedded registry nor the
// fallback resolver knows a module name.
type ErrModuleNotFound struct {
	Module string
}

func (e ErrModuleNotFound) Error() string {
	return fmt.Sprintf("module %q not found", e.Module)
}
func (e ErrModuleNotFound) Is(err error) bool {
	_, ok := err.(ErrModuleNotFound)
	return ok
}

// ErrPathCollision is returned by the bundler when two source files map to
// the same logical path.
type ErrPathCollision struct {
	LogicalPath string
	First       string
	Second      string
}

func (e ErrPathCollision) Error() string {
	return fmt.Sprintf("logical path %q is provided by both %s and %s", e.LogicalPath, e.First, e.Second)
}
func (e ErrPathCollision) Is(err error) bool {
	_, ok := err.(ErrPathCollision)
	return ok
}

// OperationError wraps any failure of a runtime operation (build, run, test).
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause see through the wrapper.
func (e *OperationError) Cause() error { return e.Err }

// Op wraps err as an OperationError, returning nil for a nil err.
func Op(op string, err error) error {
	if err == nil {
		return nil
	}
	if oe, ok := err.(*OperationError); ok && oe.Op == op {
		return err
	}
	return &OperationError{Op: op, Err: err}
}
