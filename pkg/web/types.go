// Package web provides HTTP request and response types for the pipeline API.
package web

import "github.com/cascadehq/cascade/pkg/models"

// CreatePipelineRequest represents the request body for creating a pipeline.
type CreatePipelineRequest struct {
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name"            validate:"required,min=1"`
	Nodes []*models.Node `json:"nodes,omitempty"`
}

// UpsertNodeRequest represents the request body for adding or replacing a
// node. The node id comes from the URL.
type UpsertNodeRequest struct {
	Code         string          `json:"code"           validate:"required"`
	Kind         models.NodeKind `json:"kind,omitempty" validate:"omitempty,oneof=dataframe figure callable object"`
	ExplicitDeps []string        `json:"explicit_deps,omitempty"`
}

// PlanRequest represents the request body for planning a node execution.
type PlanRequest struct {
	AlreadyExecuted []string `json:"already_executed,omitempty"`
}

// KindResponse describes one registered node kind.
type KindResponse struct {
	Tag    models.NodeKind `json:"tag"`
	Format string          `json:"format"`
}
