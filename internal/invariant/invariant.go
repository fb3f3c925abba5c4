// Package invariant reports broken ordering preconditions between stages.
//
// A violation is always fatal and is never corrected in place: reordering
// data silently at a join point attributes text to the wrong frame.
package invariant

import (
	"errors"
	"fmt"
)

// ErrViolation indicates a stage received input that breaks its ordering contract.
var ErrViolation = errors.New("boundary invariant violation")

// Violationf returns an error wrapping ErrViolation.
func Violationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrViolation, fmt.Sprintf(format, args...))
}
