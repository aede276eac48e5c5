// Package events defines event types for execution lifecycle notifications.
package events

import (
	"time"
)

type EventType string

// Kafka topic for execution lifecycle events.
const Topic = "cascade.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	NodeExecutionStartedEvent  EventType = "node.execution.started"
	NodeExecutionFinishedEvent EventType = "node.execution.finished"
	NodeExecutionFailedEvent   EventType = "node.execution.failed"

	PipelineExecutionCompletedEvent EventType = "pipeline.execution.completed"
	PipelineExecutionFailedEvent    EventType = "pipeline.execution.failed"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	PipelineID string    `json:"pipeline_id"`
}

// NodeExecutionStarted fires when the orchestrator begins running one
// node's code in the live session (cache hits do not fire it).
type NodeExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
}

func (e NodeExecutionStarted) GetType() EventType {
	return NodeExecutionStartedEvent
}

type NodeExecutionFinished struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	NodeID      string        `json:"node_id"`
	Duration    time.Duration `json:"duration"`
}

func (e NodeExecutionFinished) GetType() EventType {
	return NodeExecutionFinishedEvent
}

type NodeExecutionFailed struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	NodeID       string `json:"node_id"`
	FailureKind  string `json:"failure_kind"`
	ErrorMessage string `json:"error_message"`
}

func (e NodeExecutionFailed) GetType() EventType {
	return NodeExecutionFailedEvent
}

// PipelineExecutionCompleted fires once per top-level request after the
// target node and every stale upstream node ran successfully.
type PipelineExecutionCompleted struct {
	BaseEvent

	ExecutionID   string        `json:"execution_id"`
	TargetID      string        `json:"target_id"`
	ExecutedNodes []string      `json:"executed_nodes"`
	Duration      time.Duration `json:"duration"`
}

func (e PipelineExecutionCompleted) GetType() EventType {
	return PipelineExecutionCompletedEvent
}

type PipelineExecutionFailed struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	TargetID     string `json:"target_id"`
	FailedNodeID string `json:"failed_node_id"`
	ErrorMessage string `json:"error_message"`
}

func (e PipelineExecutionFailed) GetType() EventType {
	return PipelineExecutionFailedEvent
}
