// Package store abstracts the document store holding pipeline definitions
// and per-node execution metadata. The engine consumes exactly the node
// listing, code retrieval, and commit operations; pipeline CRUD exists to
// host them.
package store

import (
	"context"
	"time"

	"github.com/cascadehq/cascade/pkg/models"
)

// NodeCommit is the persisted outcome of one node execution attempt:
// discovered dependency edges (committed only after success), the new
// materialization state, the artifact descriptor, and diagnostics.
type NodeCommit struct {
	DependsOn    []string
	State        models.MaterializationState
	Result       *models.ResultDescriptor
	ErrorMessage string
	Timestamp    time.Time
}

type Store interface {
	Pipelines(ctx context.Context) ([]*models.Pipeline, error)
	PipelineByID(ctx context.Context, id string) (*models.Pipeline, error)
	SavePipeline(ctx context.Context, pipeline *models.Pipeline) error

	// ListNodes returns a pipeline's nodes with code omitted; declaration
	// order is preserved.
	ListNodes(ctx context.Context, pipelineID string) ([]*models.Node, error)
	GetNodeCode(ctx context.Context, pipelineID, nodeID string) (string, error)
	CommitNode(ctx context.Context, pipelineID, nodeID string, commit NodeCommit) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
