// Package redis provides a redis-backed store implementation: one JSON
// document per pipeline plus an id index set, so small teams can share one
// store without a shared filesystem.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cascadehq/cascade/pkg/models"
	"github.com/cascadehq/cascade/pkg/store"
	goredis "github.com/redis/go-redis/v9"
)

const (
	pipelineKeyPrefix = "cascade:pipelines:"
	indexKey          = "cascade:pipelines"

	opTimeout = 5 * time.Second
)

// Store implements store.Store on redis.
type Store struct {
	client goredis.UniversalClient
}

// NewStore connects to the redis instance named by url
// (redis://[user:pass@]host:port/db).
func NewStore(ctx context.Context, url string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close(_ context.Context) error {
	return s.client.Close()
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Pipelines(ctx context.Context) ([]*models.Pipeline, error) {
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}

	pipelines := make([]*models.Pipeline, 0, len(ids))

	for _, id := range ids {
		pipeline, err := s.PipelineByID(ctx, id)
		if err != nil {
			if store.IsPipelineNotFound(err) {
				continue
			}

			return nil, err
		}

		pipelines = append(pipelines, pipeline)
	}

	return pipelines, nil
}

func (s *Store) PipelineByID(ctx context.Context, id string) (*models.Pipeline, error) {
	raw, err := s.client.Get(ctx, pipelineKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, &store.PipelineError{Op: "PipelineByID", PipelineID: id, Err: store.ErrPipelineNotFound}
		}

		return nil, &store.PipelineError{Op: "PipelineByID", PipelineID: id, Err: err}
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

func (s *Store) SavePipeline(ctx context.Context, pipeline *models.Pipeline) error {
	raw, err := json.Marshal(pipeline)
	if err != nil {
		return &store.PipelineError{Op: "SavePipeline", PipelineID: pipeline.ID, Err: err}
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, pipelineKeyPrefix+pipeline.ID, raw, 0)
	pipe.SAdd(ctx, indexKey, pipeline.ID)

	if _, err := pipe.Exec(ctx); err != nil {
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

	return s.SavePipeline(ctx, pipeline)
}
