// Package services hosts the operations exposed upward to transport layers:
// graph analysis, execution planning, graph validation, pipeline CRUD, and
// execution requests. Handlers talk to services; services talk to the
// store, the graph package, and the runner.
package services

import (
	"errors"
	"fmt"

	"github.com/cascadehq/cascade/pkg/graph"
	"github.com/cascadehq/cascade/pkg/store"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrPipelineIDRequired = errors.New("pipeline id is required")
	ErrNodeIDRequired     = errors.New("node id is required")
	ErrDuplicateNodeID    = errors.New("pipeline declares the same node id twice")
)

// ErrPipelineNotFound is returned when a pipeline is not found.
var ErrPipelineNotFound = store.ErrPipelineNotFound

// ErrNodeNotFound is returned when a node is not found.
var ErrNodeNotFound = store.ErrNodeNotFound

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrPipelineIDRequired) ||
		errors.Is(err, ErrNodeIDRequired) ||
		errors.Is(err, ErrDuplicateNodeID)
}

// IsNotFoundError checks if an error should map to HTTP 404.
func IsNotFoundError(err error) bool {
	if errors.Is(err, ErrPipelineNotFound) || errors.Is(err, ErrNodeNotFound) {
		return true
	}

	var unknownErr *graph.UnknownNodeError

	return errors.As(err, &unknownErr)
}

// IsGraphError checks if an error describes a malformed dependency graph
// (cycles, edges to unknown nodes), mapping to HTTP 422.
func IsGraphError(err error) bool {
	var (
		cycleErr      *graph.CycleError
		structuralErr *graph.StructuralError
	)

	return errors.As(err, &cycleErr) || errors.As(err, &structuralErr)
}
