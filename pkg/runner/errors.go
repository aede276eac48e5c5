// Package runner error taxonomy. Every terminal node failure carries the
// identity of the node that actually failed, so a request blocked three
// levels up the dependency chain can still name the real culprit.
package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/cascadehq/cascade/pkg/graph"
)

// FormError reports that a node's code, when run, would not bind a value
// under the node's own name. Found before execution; never recursed past.
type FormError struct {
	NodeID string
	Reason string
}

func (e *FormError) Error() string {
	return fmt.Sprintf("node %q failed form check: %s", e.NodeID, e.Reason)
}

// ExecutionError reports that running a node's code in the live session
// returned a non-success status or the session transport itself failed.
type ExecutionError struct {
	NodeID  string
	Message string
	Output  string
	Err     error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("node %q execution failed: %v", e.NodeID, e.Err)
	}

	return fmt.Sprintf("node %q execution failed: %s", e.NodeID, e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that a node's execution exceeded its per-step
// timeout. Handled identically to ExecutionError by callers.
type TimeoutError struct {
	NodeID  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("node %q timed out after %s", e.NodeID, e.Timeout)
}

// VerificationError reports that a node's code ran to completion but the
// expected value or artifact is missing afterwards.
type VerificationError struct {
	NodeID string
	Reason string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("node %q failed post-verification: %s", e.NodeID, e.Reason)
}

// FailingNode extracts the deepest failing node id from a resolution error
// chain, or "" when the error carries no node identity (e.g. a cycle).
func FailingNode(err error) string {
	var formErr *FormError
	if errors.As(err, &formErr) {
		return formErr.NodeID
	}

	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.NodeID
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return timeoutErr.NodeID
	}

	var verifyErr *VerificationError
	if errors.As(err, &verifyErr) {
		return verifyErr.NodeID
	}

	return ""
}

// IsCycle reports whether the error chain contains a dependency cycle,
// static or dynamic.
func IsCycle(err error) bool {
	var cycleErr *graph.CycleError

	return errors.As(err, &cycleErr)
}
