package services

import (
	"context"
	"log/slog"

	"github.com/cascadehq/cascade/pkg/log"
	"github.com/cascadehq/cascade/pkg/runner"
)

// Execution fronts the runner for transport layers: it owns request
// validation and leaves orchestration entirely to the runner.
type Execution struct {
	runner *runner.Runner
	logger *slog.Logger
}

// NewExecution creates a new execution service.
func NewExecution(r *runner.Runner) *Execution {
	return &Execution{
		runner: r,
		logger: log.WithModule("execution_service"),
	}
}

// Execute runs the target node and every stale dependency above it.
// Node-level failures come back inside the result with status "failed";
// the error return means the request itself could not be carried out.
func (e *Execution) Execute(ctx context.Context, pipelineID, targetID string) (*runner.Result, error) {
	if pipelineID == "" {
		return nil, ErrPipelineIDRequired
	}

	if targetID == "" {
		return nil, ErrNodeIDRequired
	}

	result, err := e.runner.Execute(ctx, pipelineID, targetID)
	if err != nil {
		e.logger.ErrorContext(ctx, "Execution request rejected",
			"pipeline_id", pipelineID, "target_id", targetID, "error", err)

		return nil, err
	}

	return result, nil
}
