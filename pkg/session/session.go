// Package session defines the contract the execution engine consumes from
// a project's live execution environment (the runtime state cache holding
// currently-bound values), plus the lifecycle manager that lazily creates
// and reclaims such environments.
package session

import (
	"context"
	"errors"
	"time"
)

// ExecStatus is the outcome of running a code string in a live session.
type ExecStatus string

const (
	StatusSuccess ExecStatus = "success"
	StatusError   ExecStatus = "error"
	StatusTimeout ExecStatus = "timeout"
)

// ExecResult carries the status, captured textual output, and error detail
// of one execution step.
type ExecResult struct {
	Status  ExecStatus `json:"status"`
	Output  string     `json:"output"`
	ErrText string     `json:"error,omitempty"`
}

// ErrValueNotFound indicates GetValue was asked for a name that holds no
// value in the live session.
var ErrValueNotFound = errors.New("value not found in session")

// Session is the runtime state cache for one project. The engine needs
// exactly three capabilities, each independently substitutable:
//
//   - CheckExist answers, for a list of names, which currently hold a
//     value, in one round trip. Batching is required: a node with several
//     dependencies must not pay one round trip per name.
//   - Execute runs a code string with a timeout. A timeout is reported as
//     a status, not an error return; it is handled identically to an
//     execution error by callers.
//   - GetValue retrieves the value bound to one name. Used only for
//     lightweight checks such as verifying a callable's presence; bulk
//     data moves through persisted artifacts instead.
type Session interface {
	CheckExist(ctx context.Context, names []string) (map[string]bool, error)
	Execute(ctx context.Context, code string, timeout time.Duration) (*ExecResult, error)
	GetValue(ctx context.Context, name string) (any, error)
	Close(ctx context.Context) error
}

// Factory creates the live session for a project on first use.
type Factory func(ctx context.Context, projectID string) (Session, error)
