package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cascadehq/cascade/pkg/models"
	"github.com/cascadehq/cascade/pkg/store"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Pipeline provides pipeline and node CRUD on top of the store, plus the
// structural validation applied before anything is persisted.
type Pipeline struct {
	store     store.Store
	validator *validator.Validate
}

// NewPipeline creates a new pipeline service.
func NewPipeline(st store.Store, validate *validator.Validate) *Pipeline {
	return &Pipeline{store: st, validator: validate}
}

// HealthCheck checks the health of the store.
func (p *Pipeline) HealthCheck(ctx context.Context) (string, bool) {
	if p.store == nil {
		return "Store not initialized", false
	}

	if err := p.store.HealthCheck(ctx); err != nil {
		return "Store is unhealthy: " + err.Error(), false
	}

	return "Store is healthy", true
}

// List returns all pipelines.
func (p *Pipeline) List(ctx context.Context) ([]*models.Pipeline, error) {
	pipelines, err := p.store.Pipelines(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pipelines: %w", err)
	}

	return pipelines, nil
}

// Get returns one pipeline with full node code.
func (p *Pipeline) Get(ctx context.Context, id string) (*models.Pipeline, error) {
	if id == "" {
		return nil, ErrPipelineIDRequired
	}

	return p.store.PipelineByID(ctx, id)
}

// ListNodes returns a pipeline's node metadata, code omitted.
func (p *Pipeline) ListNodes(ctx context.Context, pipelineID string) ([]*models.Node, error) {
	if pipelineID == "" {
		return nil, ErrPipelineIDRequired
	}

	return p.store.ListNodes(ctx, pipelineID)
}

// CreateRequest carries a new pipeline definition. Node states are forced
// to not_executed regardless of what the client sent; materialization is
// engine-owned.
type CreateRequest struct {
	ID    string         `json:"id"`
	Name  string         `json:"name" validate:"required,min=1"`
	Nodes []*models.Node `json:"nodes"`
}

// Create persists a new pipeline. A missing id is generated.
func (p *Pipeline) Create(ctx context.Context, req CreateRequest) (*models.Pipeline, error) {
	if err := p.validator.Struct(req); err != nil {
		return nil, &ServiceError{Op: "pipeline.create", Err: fmt.Errorf("%w: %w", ErrInvalidRequest, err)}
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	pipeline := &models.Pipeline{
		ID:        req.ID,
		Name:      req.Name,
		Nodes:     req.Nodes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := normalizeNodes(pipeline); err != nil {
		return nil, err
	}

	if err := p.store.SavePipeline(ctx, pipeline); err != nil {
		return nil, fmt.Errorf("saving pipeline %q: %w", pipeline.ID, err)
	}

	return pipeline, nil
}

// UpsertNodeRequest adds or replaces one node's code and metadata. Editing
// a node resets its materialization state: the old result can no longer be
// trusted to match the new code.
type UpsertNodeRequest struct {
	PipelineID   string          `json:"pipeline_id" validate:"required"`
	NodeID       string          `json:"node_id"     validate:"required,min=1"`
	Code         string          `json:"code"`
	Kind         models.NodeKind `json:"kind"`
	ExplicitDeps []string        `json:"explicit_deps,omitempty"`
}

// UpsertNode creates or replaces one node in a pipeline.
func (p *Pipeline) UpsertNode(ctx context.Context, req UpsertNodeRequest) (*models.Node, error) {
	if err := p.validator.Struct(req); err != nil {
		return nil, &ServiceError{Op: "pipeline.upsert_node", Err: fmt.Errorf("%w: %w", ErrInvalidRequest, err)}
	}

	pipeline, err := p.store.PipelineByID(ctx, req.PipelineID)
	if err != nil {
		return nil, err
	}

	kind := req.Kind
	if kind == "" {
		kind = models.KindObject
	}

	node := &models.Node{
		ID:           req.NodeID,
		Code:         req.Code,
		Kind:         kind,
		ExplicitDeps: req.ExplicitDeps,
		State:        models.StateNotExecuted,
	}

	if existing := pipeline.NodeByID(req.NodeID); existing != nil {
		*existing = *node
	} else {
		pipeline.Nodes = append(pipeline.Nodes, node)
	}

	pipeline.UpdatedAt = time.Now().UTC()

	if err := p.store.SavePipeline(ctx, pipeline); err != nil {
		return nil, fmt.Errorf("saving pipeline %q: %w", pipeline.ID, err)
	}

	return node, nil
}

// DeleteNode removes one node from a pipeline. Edges pointing at the
// removed node stay in place and surface later as validation errors.
func (p *Pipeline) DeleteNode(ctx context.Context, pipelineID, nodeID string) error {
	if pipelineID == "" {
		return ErrPipelineIDRequired
	}

	if nodeID == "" {
		return ErrNodeIDRequired
	}

	pipeline, err := p.store.PipelineByID(ctx, pipelineID)
	if err != nil {
		return err
	}

	kept := pipeline.Nodes[:0]
	found := false

	for _, node := range pipeline.Nodes {
		if node.ID == nodeID {
			found = true

			continue
		}

		kept = append(kept, node)
	}

	if !found {
		return &store.NodeError{Op: "delete", PipelineID: pipelineID, NodeID: nodeID, Err: store.ErrNodeNotFound}
	}

	pipeline.Nodes = kept
	pipeline.UpdatedAt = time.Now().UTC()

	return p.store.SavePipeline(ctx, pipeline)
}

func normalizeNodes(pipeline *models.Pipeline) error {
	seen := make(map[string]bool, len(pipeline.Nodes))

	for _, node := range pipeline.Nodes {
		if node.ID == "" {
			return ErrNodeIDRequired
		}

		if seen[node.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateNodeID, node.ID)
		}

		seen[node.ID] = true

		if node.Kind == "" {
			node.Kind = models.KindObject
		}

		node.State = models.StateNotExecuted
		node.Result = nil
		node.LastError = ""
		node.LastRunAt = nil
	}

	return nil
}
