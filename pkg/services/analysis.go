package services

import (
	"context"
	"fmt"

	"github.com/cascadehq/cascade/pkg/graph"
	"github.com/cascadehq/cascade/pkg/models"
	"github.com/cascadehq/cascade/pkg/store"
)

// Analysis answers read-only dependency questions about a pipeline's graph.
// The graph is rebuilt per call from the committed depends_on edges, so
// answers always reflect the last successful executions.
type Analysis struct {
	store store.Store
}

// NewAnalysis creates a new analysis service.
func NewAnalysis(st store.Store) *Analysis {
	return &Analysis{store: st}
}

// AnalyzeResponse describes one node's position in the dependency graph.
type AnalyzeResponse struct {
	TargetID       string   `json:"target_id"`
	DirectDeps     []string `json:"direct_deps"`
	TransitiveDeps []string `json:"transitive_deps"`
	ExecutionOrder []string `json:"execution_order,omitempty"`
	Dependents     []string `json:"dependents"`
	HasCycle       bool     `json:"has_cycle"`
}

// Analyze reports the direct and transitive dependencies, execution order,
// and dependents of one node. When the graph is cyclic, ExecutionOrder is
// omitted and HasCycle is set instead of failing the whole call.
func (a *Analysis) Analyze(ctx context.Context, pipelineID, targetID string) (*AnalyzeResponse, error) {
	g, err := a.buildGraph(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	if !g.Contains(targetID) {
		return nil, &graph.UnknownNodeError{ID: targetID}
	}

	resp := &AnalyzeResponse{
		TargetID:       targetID,
		DirectDeps:     g.DirectDependencies(targetID),
		TransitiveDeps: g.TransitiveDependencies(targetID),
		Dependents:     g.Dependents(targetID),
		HasCycle:       g.HasCycle(),
	}

	order, err := g.ExecutionOrder(targetID)
	if err == nil {
		resp.ExecutionOrder = order
	}

	return resp, nil
}

// Plan computes which nodes a request for targetID would run, given a set
// of already-executed nodes to skip.
func (a *Analysis) Plan(ctx context.Context, pipelineID, targetID string, alreadyExecuted []string) (*graph.Plan, error) {
	g, err := a.buildGraph(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	plan, err := g.Plan(targetID, alreadyExecuted)
	if err != nil {
		return nil, &ServiceError{Op: "analysis.plan", Err: err}
	}

	return plan, nil
}

// ValidateGraph checks the whole pipeline graph for cycles, unknown edge
// targets, and isolated nodes.
func (a *Analysis) ValidateGraph(ctx context.Context, pipelineID string) (*graph.Report, error) {
	g, err := a.buildGraph(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	return g.Validate(), nil
}

func (a *Analysis) buildGraph(ctx context.Context, pipelineID string) (*graph.Graph, error) {
	if pipelineID == "" {
		return nil, ErrPipelineIDRequired
	}

	nodes, err := a.store.ListNodes(ctx, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("listing nodes of pipeline %q: %w", pipelineID, err)
	}

	return graph.Build(nodeDeps(nodes)), nil
}

func nodeDeps(nodes []*models.Node) []graph.NodeDeps {
	deps := make([]graph.NodeDeps, 0, len(nodes))
	for _, node := range nodes {
		deps = append(deps, graph.NodeDeps{ID: node.ID, DependsOn: node.DependsOn})
	}

	return deps
}
