// Package store provides standardized error types for store operations.
package store

import (
	"errors"
	"fmt"
)

var (
	// ErrPipelineNotFound indicates no pipeline exists for the given id.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrNodeNotFound indicates a node was not found in the pipeline.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidDocument indicates a persisted pipeline document failed
	// schema validation.
	ErrInvalidDocument = errors.New("invalid pipeline document")
)

// PipelineError wraps pipeline-related store errors with context.
type PipelineError struct {
	Op         string
	PipelineID string
	Err        error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s operation failed for pipeline %s: %v", e.Op, e.PipelineID, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NodeError wraps node-related store errors with context.
type NodeError struct {
	Op         string
	PipelineID string
	NodeID     string
	Err        error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s operation failed for node %s in pipeline %s: %v", e.Op, e.NodeID, e.PipelineID, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

func (e *NodeError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsPipelineNotFound checks if an error indicates a missing pipeline.
func IsPipelineNotFound(err error) bool {
	return errors.Is(err, ErrPipelineNotFound)
}

// IsNodeNotFound checks if an error indicates a missing node.
func IsNodeNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}
