// Package models defines the core domain models for code-defined analysis pipelines.
package models

import (
	"time"
)

// MaterializationState tracks whether a node's last execution is trusted
// and its output durable.
type MaterializationState string

const (
	StateNotExecuted       MaterializationState = "not_executed"
	StatePendingValidation MaterializationState = "pending_validation"
	StateValidated         MaterializationState = "validated"
)

// NodeKind tags the artifact shape a node produces. The set is closed;
// kind-specific persistence and verification rules live in pkg/kinds.
type NodeKind string

const (
	KindDataFrame NodeKind = "dataframe"
	KindFigure    NodeKind = "figure"
	KindCallable  NodeKind = "callable"
	KindObject    NodeKind = "object"
)

// ResultDescriptor records where and in which format a node's last
// validated output was persisted. Absent until the node has successfully
// produced output.
type ResultDescriptor struct {
	Format string `json:"format" validate:"required"`
	Path   string `json:"path"   validate:"required"`
}

// Node is a named unit of code whose execution binds a value to its own
// identifier in the live session. The ID doubles as the name of the value
// the node produces; the whole engine relies on that invariant.
type Node struct {
	ID   string   `json:"id"   validate:"required,min=1"`
	Code string   `json:"code"`
	Kind NodeKind `json:"kind" validate:"required"`

	// DependsOn is engine-owned: the edges committed after the node's last
	// successful execution. Never written on failure.
	DependsOn []string `json:"depends_on,omitempty"`

	// ExplicitDeps is user-owned: a manual dependency declaration that,
	// when present, overrides inference entirely.
	ExplicitDeps []string `json:"explicit_deps,omitempty"`

	State     MaterializationState `json:"state"      validate:"required"`
	Result    *ResultDescriptor    `json:"result,omitempty"`
	LastError string               `json:"last_error,omitempty"`
	LastRunAt *time.Time           `json:"last_run_at,omitempty"`
}

// Validated reports whether the node's last execution succeeded and its
// output was persisted and verified.
func (n *Node) Validated() bool {
	return n.State == StateValidated && n.Result != nil
}

// IsCallable reports whether the node produces a callable rather than a
// plain value.
func (n *Node) IsCallable() bool {
	return n.Kind == KindCallable
}
