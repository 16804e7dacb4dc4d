package dispatch

import (
	"fmt"

	"commvault-ops/src/entities"
)

// UnknownOperationError reports an operation that neither the addressed
// node nor its collection exposes.
type UnknownOperationError struct {
	EntityType string
	Operation  string
}

func (e *UnknownOperationError) Error() string {
	label := e.EntityType
	if label == "" {
		label = "commcell"
	}
	return fmt.Sprintf("operation not found: %s (entity_type %s)", e.Operation, label)
}

// UnknownEntityTypeError reports an entity_type label outside the fixed set.
type UnknownEntityTypeError = entities.UnknownEntityTypeError

// ValidationError reports a malformed request. Err may aggregate several
// problems.
type ValidationError struct {
	Operation string
	Err       error
}

func (e *ValidationError) Error() string {
	if e.Operation == "" {
		return "invalid request: " + e.Err.Error()
	}
	return "invalid arguments for " + e.Operation + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }
