// Package runner implements the execution orchestrator: the state machine
// that takes one target node and produces a validated value for it in the
// project's live session, recursively resolving stale dependencies first.
//
// Dependency edges discovered during a run are provisional until the node
// executes, verifies, and commits; a failed node never gains edges. The
// recursion is synchronous and single-threaded per project because later
// nodes' code assumes earlier nodes' bindings already exist in the one
// shared session namespace.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/cascadehq/cascade/pkg/eventbus"
	"github.com/cascadehq/cascade/pkg/events"
	"github.com/cascadehq/cascade/pkg/graph"
	"github.com/cascadehq/cascade/pkg/infer"
	"github.com/cascadehq/cascade/pkg/kinds"
	"github.com/cascadehq/cascade/pkg/log"
	"github.com/cascadehq/cascade/pkg/models"
	"github.com/cascadehq/cascade/pkg/otelhelper"
	"github.com/cascadehq/cascade/pkg/session"
	"github.com/cascadehq/cascade/pkg/store"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultExecTimeout = 60 * time.Second

// Config carries the tunables of one Runner instance.
type Config struct {
	// ArtifactRoot is the directory the live session and the engine share
	// for persisted node artifacts.
	ArtifactRoot string

	// ExecTimeout bounds every individual Execute call on the live session.
	ExecTimeout time.Duration
}

type Runner struct {
	store      store.Store
	sessions   *session.Manager
	inferencer *infer.Inferencer
	kinds      *kinds.Registry
	bus        eventbus.EventPublisher
	tracer     trace.Tracer
	logger     *slog.Logger

	artifactRoot string
	timeout      time.Duration
}

func NewRunner(
	st store.Store,
	sessions *session.Manager,
	inferencer *infer.Inferencer,
	registry *kinds.Registry,
	bus eventbus.EventPublisher,
	tracer trace.Tracer,
	cfg Config,
) *Runner {
	timeout := cfg.ExecTimeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}

	return &Runner{
		store:        st,
		sessions:     sessions,
		inferencer:   inferencer,
		kinds:        registry,
		bus:          bus,
		tracer:       tracer,
		logger:       log.WithModule("runner"),
		artifactRoot: cfg.ArtifactRoot,
		timeout:      timeout,
	}
}

// Result is the outcome of one top-level execution request.
type Result struct {
	ExecutionID   string              `json:"execution_id"`
	Status        string              `json:"status"`
	ErrorMessage  string              `json:"error_message,omitempty"`
	FailedNodeID  string              `json:"failed_node_id,omitempty"`
	ExecutedNodes []string            `json:"executed_nodes"`
	NewEdges      map[string][]string `json:"new_edges"`
	Duration      time.Duration       `json:"duration"`
}

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// transaction is the provisional outcome of resolving one node: the edges
// discovered before execution, committed only after the node verified.
type transaction struct {
	NodeID          string
	ProvisionalDeps []string
	Committed       bool
}

// run is the mutable state of one top-level request. Nodes carry metadata
// only (code is fetched per node); executed and newEdges accumulate in
// resolution order. satisfied tracks names known to be live in the session
// as the request progresses, so a node resolved earlier in the request is
// never reloaded from its artifact over its fresh in-session binding.
type run struct {
	pipelineID  string
	executionID string
	sess        session.Session
	nodes       map[string]*models.Node
	allIDs      []string
	executed    []string
	newEdges    map[string][]string
	satisfied   map[string]bool
}

// Execute resolves and runs the target node, recursively executing every
// stale dependency first. Node-level failures are reported in the Result;
// the error return is reserved for infrastructure failures (store or
// session unavailable).
func (r *Runner) Execute(ctx context.Context, pipelineID, targetID string) (*Result, error) {
	started := time.Now()
	executionID := uuid.New().String()

	var span trace.Span

	if r.tracer != nil {
		ctx, span = otelhelper.StartSpan(ctx, r.tracer, "runner.execute",
			attribute.String(otelhelper.PipelineIDKey, pipelineID),
			attribute.String(otelhelper.NodeIDKey, targetID),
			attribute.String(otelhelper.ExecutionIDKey, executionID),
		)
		defer span.End()
	}

	logger := r.logger.With("pipeline_id", pipelineID, "target_id", targetID, "execution_id", executionID)
	logger.InfoContext(ctx, "Starting execution request")

	nodes, err := r.store.ListNodes(ctx, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("listing nodes of pipeline %q: %w", pipelineID, err)
	}

	rn := &run{
		pipelineID:  pipelineID,
		executionID: executionID,
		nodes:       make(map[string]*models.Node, len(nodes)),
		allIDs:      make([]string, 0, len(nodes)),
		newEdges:    map[string][]string{},
		satisfied:   map[string]bool{},
	}
	for _, node := range nodes {
		rn.nodes[node.ID] = node
		rn.allIDs = append(rn.allIDs, node.ID)
	}

	if _, ok := rn.nodes[targetID]; !ok {
		return nil, &graph.UnknownNodeError{ID: targetID}
	}

	sess, release, err := r.sessions.Acquire(ctx, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("acquiring session for pipeline %q: %w", pipelineID, err)
	}
	defer release()

	rn.sess = sess

	resolveErr := r.resolve(ctx, rn, targetID, nil)

	result := &Result{
		ExecutionID:   executionID,
		Status:        StatusSuccess,
		ExecutedNodes: rn.executed,
		NewEdges:      rn.newEdges,
		Duration:      time.Since(started),
	}

	if resolveErr != nil {
		result.Status = StatusFailed
		result.ErrorMessage = resolveErr.Error()
		result.FailedNodeID = FailingNode(resolveErr)

		if span != nil {
			otelhelper.SetError(span, resolveErr,
				attribute.String(otelhelper.NodeIDKey, result.FailedNodeID))
		}

		logger.ErrorContext(ctx, "Execution request failed",
			"failed_node_id", result.FailedNodeID, "error", resolveErr)

		r.publish(ctx, pipelineID, events.PipelineExecutionFailed{
			BaseEvent:    r.baseEvent(events.PipelineExecutionFailedEvent, pipelineID),
			ExecutionID:  executionID,
			TargetID:     targetID,
			FailedNodeID: result.FailedNodeID,
			ErrorMessage: resolveErr.Error(),
		})

		return result, nil
	}

	logger.InfoContext(ctx, "Execution request completed",
		"executed_nodes", rn.executed, "duration", result.Duration)

	r.publish(ctx, pipelineID, events.PipelineExecutionCompleted{
		BaseEvent:     r.baseEvent(events.PipelineExecutionCompletedEvent, pipelineID),
		ExecutionID:   executionID,
		TargetID:      targetID,
		ExecutedNodes: rn.executed,
		Duration:      result.Duration,
	})

	return result, nil
}

// resolve runs the per-node state machine. stack holds the chain of nodes
// currently resolving above this one; finding nodeID already on it means
// the dependency edges discovered so far form a cycle.
func (r *Runner) resolve(ctx context.Context, rn *run, nodeID string, stack []string) error {
	if slices.Contains(stack, nodeID) {
		return &graph.CycleError{Path: append(append([]string{}, stack...), nodeID), Dynamic: true}
	}

	node, ok := rn.nodes[nodeID]
	if !ok {
		return &graph.UnknownNodeError{ID: nodeID}
	}

	code, err := r.store.GetNodeCode(ctx, rn.pipelineID, nodeID)
	if err != nil {
		return fmt.Errorf("fetching code of node %q: %w", nodeID, err)
	}

	tx, err := r.prepare(ctx, rn, node, code)
	if err != nil {
		return err
	}

	if err := r.resolveDependencies(ctx, rn, node, tx, stack); err != nil {
		return err
	}

	return r.executeAndCommit(ctx, rn, node, code, tx)
}

// prepare covers the non-recursive steps: form check and dependency
// discovery. The returned transaction holds the provisional edges; nothing
// has been persisted yet except a form-check failure.
func (r *Runner) prepare(ctx context.Context, rn *run, node *models.Node, code string) (*transaction, error) {
	binding := r.inferencer.BindsName(ctx, code, node.ID)
	if !binding.Bound() {
		formErr := &FormError{
			NodeID: node.ID,
			Reason: fmt.Sprintf("code does not bind a value or callable under the name %q", node.ID),
		}
		r.commitFailure(ctx, rn, node, formErr.Reason)
		r.publishNodeFailed(ctx, rn, node.ID, "form", formErr.Reason)

		return nil, formErr
	}

	if node.IsCallable() && !binding.Callable {
		formErr := &FormError{
			NodeID: node.ID,
			Reason: fmt.Sprintf("node is callable-producing but code does not define %q", node.ID),
		}
		r.commitFailure(ctx, rn, node, formErr.Reason)
		r.publishNodeFailed(ctx, rn, node.ID, "form", formErr.Reason)

		return nil, formErr
	}

	deps := r.inferencer.Infer(ctx, node.ID, code, rn.allIDs, node.ExplicitDeps)

	return &transaction{NodeID: node.ID, ProvisionalDeps: deps}, nil
}

// resolveDependencies classifies the provisional dependencies against the
// live session and brings every missing one up to date, loading persisted
// artifacts where they are still trusted and recursing otherwise.
func (r *Runner) resolveDependencies(ctx context.Context, rn *run, node *models.Node, tx *transaction, stack []string) error {
	if len(tx.ProvisionalDeps) == 0 {
		return nil
	}

	resident, err := rn.sess.CheckExist(ctx, tx.ProvisionalDeps)
	if err != nil {
		return &ExecutionError{NodeID: node.ID, Err: fmt.Errorf("checking resident values: %w", err)}
	}

	childStack := append(append([]string{}, stack...), node.ID)

	for _, depID := range tx.ProvisionalDeps {
		// The resident snapshot goes stale as soon as an earlier dependency
		// in this loop executes a shared upstream node: in a diamond the
		// shared node would be revisited here and its fresh binding
		// clobbered by an artifact reload. satisfied is the live view.
		if resident[depID] || rn.satisfied[depID] {
			rn.satisfied[depID] = true

			continue
		}

		dep, ok := rn.nodes[depID]
		if !ok {
			return &graph.UnknownNodeError{ID: depID}
		}

		if dep.Validated() && artifactExists(dep.Result.Path) {
			loaded, err := r.loadArtifact(ctx, rn, dep)
			if err != nil {
				return err
			}

			if loaded {
				rn.satisfied[depID] = true

				continue
			}
			// Previously validated but now unloadable: fall through and
			// re-execute the dependency from its code.
		}

		if err := r.resolve(ctx, rn, depID, childStack); err != nil {
			return fmt.Errorf("resolving dependency %q of node %q: %w", depID, node.ID, err)
		}
	}

	return nil
}

// loadArtifact rebinds a trusted persisted artifact into the live session.
// A failed load demotes the dependency to pending validation and reports
// loaded=false so the caller re-executes it; only transport errors are
// returned.
func (r *Runner) loadArtifact(ctx context.Context, rn *run, dep *models.Node) (bool, error) {
	kind, err := r.kinds.Resolve(dep.Kind)
	if err != nil {
		return false, &ExecutionError{NodeID: dep.ID, Err: err}
	}

	res, err := rn.sess.Execute(ctx, kind.LoadCode(dep.ID, dep.Result.Path), r.timeout)
	if err != nil {
		return false, &ExecutionError{NodeID: dep.ID, Err: fmt.Errorf("loading persisted artifact: %w", err)}
	}

	if res.Status == session.StatusSuccess {
		r.logger.DebugContext(ctx, "Loaded persisted artifact",
			"pipeline_id", rn.pipelineID, "node_id", dep.ID, "path", dep.Result.Path)

		return true, nil
	}

	msg := fmt.Sprintf("persisted artifact could not be loaded: %s", res.ErrText)
	r.logger.WarnContext(ctx, "Demoting node with unloadable artifact",
		"pipeline_id", rn.pipelineID, "node_id", dep.ID, "error", res.ErrText)
	r.commitFailure(ctx, rn, dep, msg)

	return false, nil
}

// executeAndCommit covers execute, post-verification, and commit. Edges in
// tx become persistent only when every step succeeded.
func (r *Runner) executeAndCommit(ctx context.Context, rn *run, node *models.Node, code string, tx *transaction) error {
	kind, err := r.kinds.Resolve(node.Kind)
	if err != nil {
		formErr := &FormError{NodeID: node.ID, Reason: err.Error()}
		r.commitFailure(ctx, rn, node, formErr.Reason)

		return formErr
	}

	if r.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, r.tracer, "runner.execute_node",
			attribute.String(otelhelper.NodeIDKey, node.ID),
			attribute.String(otelhelper.NodeKindKey, string(node.Kind)),
		)
		defer span.End()
	}

	path := kind.ArtifactPath(r.artifactRoot, rn.pipelineID, node.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating artifact directory for node %q: %w", node.ID, err)
	}

	r.publish(ctx, rn.pipelineID, events.NodeExecutionStarted{
		BaseEvent:   r.baseEvent(events.NodeExecutionStartedEvent, rn.pipelineID),
		ExecutionID: rn.executionID,
		NodeID:      node.ID,
	})

	started := time.Now()
	combined := code + "\n\n" + kind.PersistCode(node.ID, path)

	res, err := rn.sess.Execute(ctx, combined, r.timeout)
	if err != nil {
		execErr := &ExecutionError{NodeID: node.ID, Err: err}
		r.commitFailure(ctx, rn, node, execErr.Error())
		r.publishNodeFailed(ctx, rn, node.ID, "execution", execErr.Error())

		return execErr
	}

	switch res.Status {
	case session.StatusTimeout:
		timeoutErr := &TimeoutError{NodeID: node.ID, Timeout: r.timeout}
		r.commitFailure(ctx, rn, node, timeoutErr.Error())
		r.publishNodeFailed(ctx, rn, node.ID, "timeout", timeoutErr.Error())

		return timeoutErr
	case session.StatusError:
		execErr := &ExecutionError{NodeID: node.ID, Message: res.ErrText, Output: res.Output}
		r.commitFailure(ctx, rn, node, res.ErrText)
		r.publishNodeFailed(ctx, rn, node.ID, "execution", res.ErrText)

		return execErr
	case session.StatusSuccess:
	}

	if err := r.verify(ctx, rn, node, kind, path); err != nil {
		return err
	}

	now := time.Now().UTC()
	result := &models.ResultDescriptor{Format: kind.Format(), Path: path}

	commit := store.NodeCommit{
		DependsOn: tx.ProvisionalDeps,
		State:     models.StateValidated,
		Result:    result,
		Timestamp: now,
	}
	if err := r.store.CommitNode(ctx, rn.pipelineID, node.ID, commit); err != nil {
		return fmt.Errorf("committing node %q: %w", node.ID, err)
	}

	tx.Committed = true

	node.DependsOn = tx.ProvisionalDeps
	node.State = models.StateValidated
	node.Result = result
	node.LastError = ""
	node.LastRunAt = &now

	rn.executed = append(rn.executed, node.ID)
	rn.newEdges[node.ID] = tx.ProvisionalDeps
	rn.satisfied[node.ID] = true

	r.publish(ctx, rn.pipelineID, events.NodeExecutionFinished{
		BaseEvent:   r.baseEvent(events.NodeExecutionFinishedEvent, rn.pipelineID),
		ExecutionID: rn.executionID,
		NodeID:      node.ID,
		Duration:    time.Since(started),
	})

	return nil
}

// verify confirms the executed code actually left the expected value in
// the session, and for callables, that the serialized artifact landed.
func (r *Runner) verify(ctx context.Context, rn *run, node *models.Node, kind kinds.Kind, path string) error {
	exist, err := rn.sess.CheckExist(ctx, []string{node.ID})
	if err != nil {
		return &ExecutionError{NodeID: node.ID, Err: fmt.Errorf("verifying bound value: %w", err)}
	}

	if !exist[node.ID] {
		verifyErr := &VerificationError{
			NodeID: node.ID,
			Reason: "code ran but no value is bound under the node's name",
		}
		r.commitFailure(ctx, rn, node, verifyErr.Reason)
		r.publishNodeFailed(ctx, rn, node.ID, "verification", verifyErr.Reason)

		return verifyErr
	}

	if !kind.VerifyCallable() {
		return nil
	}

	if _, err := rn.sess.GetValue(ctx, node.ID); err != nil {
		if errors.Is(err, session.ErrValueNotFound) {
			verifyErr := &VerificationError{NodeID: node.ID, Reason: "callable is not bound in the session"}
			r.commitFailure(ctx, rn, node, verifyErr.Reason)
			r.publishNodeFailed(ctx, rn, node.ID, "verification", verifyErr.Reason)

			return verifyErr
		}

		return &ExecutionError{NodeID: node.ID, Err: fmt.Errorf("verifying callable: %w", err)}
	}

	if !artifactExists(path) {
		verifyErr := &VerificationError{NodeID: node.ID, Reason: "serialized callable artifact was not written"}
		r.commitFailure(ctx, rn, node, verifyErr.Reason)
		r.publishNodeFailed(ctx, rn, node.ID, "verification", verifyErr.Reason)

		return verifyErr
	}

	return nil
}

// commitFailure marks a node pending validation with a diagnostic message.
// DependsOn stays nil so previously committed edges survive untouched.
func (r *Runner) commitFailure(ctx context.Context, rn *run, node *models.Node, message string) {
	now := time.Now().UTC()

	commit := store.NodeCommit{
		State:        models.StatePendingValidation,
		ErrorMessage: message,
		Timestamp:    now,
	}
	if err := r.store.CommitNode(ctx, rn.pipelineID, node.ID, commit); err != nil {
		r.logger.ErrorContext(ctx, "Failed to record node failure",
			"pipeline_id", rn.pipelineID, "node_id", node.ID, "error", err)

		return
	}

	node.State = models.StatePendingValidation
	node.LastError = message
	node.LastRunAt = &now
}

func (r *Runner) publishNodeFailed(ctx context.Context, rn *run, nodeID, failureKind, message string) {
	r.publish(ctx, rn.pipelineID, events.NodeExecutionFailed{
		BaseEvent:    r.baseEvent(events.NodeExecutionFailedEvent, rn.pipelineID),
		ExecutionID:  rn.executionID,
		NodeID:       nodeID,
		FailureKind:  failureKind,
		ErrorMessage: message,
	})
}

func (r *Runner) publish(ctx context.Context, pipelineID string, event eventbus.Event) {
	if r.bus == nil {
		return
	}

	if err := r.bus.Publish(ctx, pipelineID, event); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish event",
			"pipeline_id", pipelineID, "event_type", event.GetType(), "error", err)
	}
}

func (r *Runner) baseEvent(eventType events.EventType, pipelineID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		PipelineID: pipelineID,
	}
}

func artifactExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}
