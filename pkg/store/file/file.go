// Package file provides file-based store implementation: one JSON document
// per pipeline under a root directory, validated against a JSON Schema on
// load so a hand-edited document cannot smuggle malformed metadata into the
// engine.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cascadehq/cascade/pkg/models"
	"github.com/cascadehq/cascade/pkg/store"
	"github.com/xeipuuv/gojsonschema"
)

// Store implements store.Store on the local filesystem.
type Store struct {
	root   string
	schema *gojsonschema.Schema
}

// NewStore creates a file store rooted at root (a file:// prefix is
// tolerated).
func NewStore(root string) (*Store, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(pipelineSchema))
	if err != nil {
		return nil, fmt.Errorf("compile pipeline schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(cleanRoot, "pipelines"), 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}

	return &Store{root: cleanRoot, schema: schema}, nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}

func (s *Store) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (s *Store) Pipelines(ctx context.Context) ([]*models.Pipeline, error) {
	root := os.DirFS(filepath.Join(s.root, "pipelines"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline files: %w", err)
	}

	pipelines := make([]*models.Pipeline, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := strings.TrimSuffix(path.Base(file), ".json")

		pipeline, err := s.PipelineByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load pipeline %s: %w", id, err)
		}

		pipelines = append(pipelines, pipeline)
	}

	return pipelines, nil
}

func (s *Store) PipelineByID(_ context.Context, id string) (*models.Pipeline, error) {
	raw, err := os.ReadFile(s.pipelinePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &store.PipelineError{Op: "PipelineByID", PipelineID: id, Err: store.ErrPipelineNotFound}
		}

		return nil, &store.PipelineError{Op: "PipelineByID", PipelineID: id, Err: err}
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, &store.PipelineError{Op: "PipelineByID", PipelineID: id, Err: err}
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, &store.PipelineError{
			Op:         "PipelineByID",
			PipelineID: id,
			Err:        fmt.Errorf("%w: %s", store.ErrInvalidDocument, strings.Join(details, "; ")),
		}
	}

	var pipeline models.Pipeline
	if err := json.Unmarshal(raw, &pipeline); err != nil {
		return nil, &store.PipelineError{Op: "PipelineByID", PipelineID: id, Err: err}
	}

	for _, node := range pipeline.Nodes {
		if node.State == "" {
			node.State = models.StateNotExecuted
		}
	}

	return &pipeline, nil
}

func (s *Store) SavePipeline(_ context.Context, pipeline *models.Pipeline) error {
	raw, err := json.MarshalIndent(pipeline, "", "  ")
	if err != nil {
		return &store.PipelineError{Op: "SavePipeline", PipelineID: pipeline.ID, Err: err}
	}

	if err := os.WriteFile(s.pipelinePath(pipeline.ID), raw, 0o644); err != nil {
		return &store.PipelineError{Op: "SavePipeline", PipelineID: pipeline.ID, Err: err}
	}

	return nil
}

func (s *Store) ListNodes(ctx context.Context, pipelineID string) ([]*models.Node, error) {
	pipeline, err := s.PipelineByID(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	nodes := make([]*models.Node, 0, len(pipeline.Nodes))

	for _, node := range pipeline.Nodes {
		clone := *node
		clone.Code = ""
		nodes = append(nodes, &clone)
	}

	return nodes, nil
}

func (s *Store) GetNodeCode(ctx context.Context, pipelineID, nodeID string) (string, error) {
	pipeline, err := s.PipelineByID(ctx, pipelineID)
	if err != nil {
		return "", err
	}

	node := pipeline.NodeByID(nodeID)
	if node == nil {
		return "", &store.NodeError{Op: "GetNodeCode", PipelineID: pipelineID, NodeID: nodeID, Err: store.ErrNodeNotFound}
	}

	return node.Code, nil
}

func (s *Store) CommitNode(ctx context.Context, pipelineID, nodeID string, commit store.NodeCommit) error {
	pipeline, err := s.PipelineByID(ctx, pipelineID)
	if err != nil {
		return err
	}

	node := pipeline.NodeByID(nodeID)
	if node == nil {
		return &store.NodeError{Op: "CommitNode", PipelineID: pipelineID, NodeID: nodeID, Err: store.ErrNodeNotFound}
	}

	applyCommit(node, commit)
	pipeline.UpdatedAt = commit.Timestamp

	return s.SavePipeline(ctx, pipeline)
}

func applyCommit(node *models.Node, commit store.NodeCommit) {
	if commit.DependsOn != nil {
		node.DependsOn = commit.DependsOn
	}

	node.State = commit.State
	node.LastError = commit.ErrorMessage

	if commit.Result != nil {
		node.Result = commit.Result
	}

	if !commit.Timestamp.IsZero() {
		ts := commit.Timestamp
		node.LastRunAt = &ts
	}
}

func (s *Store) pipelinePath(id string) string {
	return filepath.Join(s.root, "pipelines", id+".json")
}
