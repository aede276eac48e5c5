// Package postgres provides a PostgreSQL-backed store implementation: one
// JSONB document per pipeline, mirroring the redis layout, for deployments
// that already run Postgres.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cascadehq/cascade/pkg/log"
	"github.com/cascadehq/cascade/pkg/models"
	"github.com/cascadehq/cascade/pkg/store"
	_ "github.com/lib/pq"
)

// Store implements store.Store on PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore connects to the database named by databaseURL and creates the
// schema when it does not exist yet.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, logger: log.WithModule("postgres_store")}

	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS pipelines (
			id TEXT PRIMARY KEY,
			document JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL
		)
	`)

	return err
}

func (s *Store) Close(_ context.Context) error {
	return s.db.Close()
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (s *Store) Pipelines(ctx context.Context) ([]*models.Pipeline, error) {
	query := `
		SELECT document
		FROM pipelines
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipelines: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("failed to close rows", "error", err)
		}
	}()

	pipelines := make([]*models.Pipeline, 0)

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan pipeline: %w", err)
		}

		pipeline, err := decodePipeline(raw)
		if err != nil {
			return nil, err
		}

		pipelines = append(pipelines, pipeline)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pipelines: %w", err)
	}

	return pipelines, nil
}

func (s *Store) PipelineByID(ctx context.Context, id string) (*models.Pipeline, error) {
	var raw []byte

	err := s.db.QueryRowContext(ctx, `SELECT document FROM pipelines WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &store.PipelineError{Op: "PipelineByID", PipelineID: id, Err: store.ErrPipelineNotFound}
	}

	if err != nil {
		return nil, &store.PipelineError{Op: "PipelineByID", PipelineID: id, Err: err}
	}

	pipeline, err := decodePipeline(raw)
	if err != nil {
		return nil, &store.PipelineError{Op: "PipelineByID", PipelineID: id, Err: err}
	}

	return pipeline, nil
}

func (s *Store) SavePipeline(ctx context.Context, pipeline *models.Pipeline) error {
	raw, err := json.Marshal(pipeline)
	if err != nil {
		return &store.PipelineError{Op: "SavePipeline", PipelineID: pipeline.ID, Err: err}
	}

	query := `
		INSERT INTO pipelines (id, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query, pipeline.ID, raw, pipeline.CreatedAt, pipeline.UpdatedAt)
	if err != nil {
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

// CommitNode rewrites one node inside the pipeline document under a row
// lock, so concurrent commits against the same pipeline cannot lose edges.
func (s *Store) CommitNode(ctx context.Context, pipelineID, nodeID string, commit store.NodeCommit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &store.NodeError{Op: "CommitNode", PipelineID: pipelineID, NodeID: nodeID, Err: err}
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger.Error("failed to roll back commit transaction", "error", err)
		}
	}()

	var raw []byte

	err = tx.QueryRowContext(ctx, `SELECT document FROM pipelines WHERE id = $1 FOR UPDATE`, pipelineID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return &store.PipelineError{Op: "CommitNode", PipelineID: pipelineID, Err: store.ErrPipelineNotFound}
	}

	if err != nil {
		return &store.PipelineError{Op: "CommitNode", PipelineID: pipelineID, Err: err}
	}

	pipeline, err := decodePipeline(raw)
	if err != nil {
		return &store.PipelineError{Op: "CommitNode", PipelineID: pipelineID, Err: err}
	}

	node := pipeline.NodeByID(nodeID)
	if node == nil {
		return &store.NodeError{Op: "CommitNode", PipelineID: pipelineID, NodeID: nodeID, Err: store.ErrNodeNotFound}
	}

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

	pipeline.UpdatedAt = commit.Timestamp

	updated, err := json.Marshal(pipeline)
	if err != nil {
		return &store.NodeError{Op: "CommitNode", PipelineID: pipelineID, NodeID: nodeID, Err: err}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE pipelines SET document = $1, updated_at = $2 WHERE id = $3`,
		updated, pipeline.UpdatedAt, pipelineID,
	)
	if err != nil {
		return &store.NodeError{Op: "CommitNode", PipelineID: pipelineID, NodeID: nodeID, Err: err}
	}

	return tx.Commit()
}

func decodePipeline(raw []byte) (*models.Pipeline, error) {
	var pipeline models.Pipeline
	if err := json.Unmarshal(raw, &pipeline); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline document: %w", err)
	}

	for _, node := range pipeline.Nodes {
		if node.State == "" {
			node.State = models.StateNotExecuted
		}
	}

	return &pipeline, nil
}
