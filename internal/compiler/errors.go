package compiler

import "github.com/pkg/errors"

// DefinitionError is a fatal, compile-time problem with a definition
// module: an unknown group, a missing initialization entry, a stencil
// with no kernel. Compilation never proceeds past one — spec.md's error
// taxonomy places these in the fatal/compile class, distinct from the
// runtime's ShapeError.
type DefinitionError struct {
	Bundle string
	Reason string
}

func (e *DefinitionError) Error() string {
	return "definition error in " + e.Bundle + ": " + e.Reason
}

func newDefinitionError(bundle, reason string) error {
	return errors.WithStack(&DefinitionError{Bundle: bundle, Reason: reason})
}
