package main

import (
	"context"
	"log/slog"

	"github.com/cascadehq/cascade/pkg/eventbus"
	"github.com/cascadehq/cascade/pkg/events"
)

// startLifecycleListener subscribes the API process to its own execution
// lifecycle events and writes them to the audit log. Other consumers (UIs,
// notification services) attach to the same topic out of process.
func startLifecycleListener(ctx context.Context, bus eventbus.EventBus, logger *slog.Logger) error {
	l := logger.With("module", "lifecycle_listener")

	if err := bus.Handle(events.PipelineExecutionCompletedEvent, func(ctx context.Context, event any) error {
		completed, ok := event.(*events.PipelineExecutionCompleted)
		if !ok {
			l.ErrorContext(ctx, "Invalid event type for PipelineExecutionCompleted")

			return nil
		}

		l.InfoContext(ctx, "Pipeline execution completed",
			"pipeline_id", completed.PipelineID,
			"execution_id", completed.ExecutionID,
			"target_id", completed.TargetID,
			"executed_nodes", completed.ExecutedNodes,
			"duration", completed.Duration,
		)

		return nil
	}); err != nil {
		return err
	}

	if err := bus.Handle(events.PipelineExecutionFailedEvent, func(ctx context.Context, event any) error {
		failed, ok := event.(*events.PipelineExecutionFailed)
		if !ok {
			l.ErrorContext(ctx, "Invalid event type for PipelineExecutionFailed")

			return nil
		}

		l.WarnContext(ctx, "Pipeline execution failed",
			"pipeline_id", failed.PipelineID,
			"execution_id", failed.ExecutionID,
			"target_id", failed.TargetID,
			"failed_node_id", failed.FailedNodeID,
			"error", failed.ErrorMessage,
		)

		return nil
	}); err != nil {
		return err
	}

	if err := bus.Handle(events.NodeExecutionFailedEvent, func(ctx context.Context, event any) error {
		failed, ok := event.(*events.NodeExecutionFailed)
		if !ok {
			l.ErrorContext(ctx, "Invalid event type for NodeExecutionFailed")

			return nil
		}

		l.WarnContext(ctx, "Node execution failed",
			"pipeline_id", failed.PipelineID,
			"execution_id", failed.ExecutionID,
			"node_id", failed.NodeID,
			"failure_kind", failed.FailureKind,
			"error", failed.ErrorMessage,
		)

		return nil
	}); err != nil {
		return err
	}

	return bus.Subscribe(ctx)
}
