// Package kinds isolates the artifact-shape-specific rules of node
// execution: the code appended to a node so its result is persisted as a
// side effect of running, the code that reloads a persisted artifact into
// a live session, and the post-execution verification policy.
//
// The set of kinds is closed. The registry is an explicit value built once
// at process start and passed to the components that need it; nothing here
// mutates global state at import time.
package kinds

import (
	"fmt"
	"path/filepath"

	"github.com/cascadehq/cascade/pkg/models"
)

// Kind is the capability interface one node kind implements.
type Kind interface {
	// Tag is the kind's identity in node metadata.
	Tag() models.NodeKind

	// Format is the serialization format tag recorded in the node's
	// result descriptor.
	Format() string

	// ArtifactPath places the node's durable artifact under the artifact
	// root.
	ArtifactPath(root, pipelineID, nodeID string) string

	// PersistCode returns the code appended to the node's own code so that
	// running the combined text captures the result durably.
	PersistCode(nodeID, path string) string

	// LoadCode returns the code that rebinds a persisted artifact under
	// the node's name in a live session.
	LoadCode(nodeID, path string) string

	// VerifyCallable reports whether post-verification must additionally
	// confirm a callable is bound and its artifact exists on disk, rather
	// than only a non-null value.
	VerifyCallable() bool
}

type dataFrameKind struct{}

func (dataFrameKind) Tag() models.NodeKind { return models.KindDataFrame }
func (dataFrameKind) Format() string       { return "parquet" }
func (dataFrameKind) VerifyCallable() bool { return false }

func (dataFrameKind) ArtifactPath(root, pipelineID, nodeID string) string {
	return artifactPath(root, pipelineID, nodeID, "parquet")
}

func (dataFrameKind) PersistCode(nodeID, path string) string {
	return fmt.Sprintf("%s.to_parquet(r'%s')", nodeID, path)
}

func (dataFrameKind) LoadCode(nodeID, path string) string {
	return fmt.Sprintf("import pandas as _cascade_pd\n%s = _cascade_pd.read_parquet(r'%s')", nodeID, path)
}

type figureKind struct{}

func (figureKind) Tag() models.NodeKind { return models.KindFigure }
func (figureKind) Format() string       { return "plotly_json" }
func (figureKind) VerifyCallable() bool { return false }

func (figureKind) ArtifactPath(root, pipelineID, nodeID string) string {
	return artifactPath(root, pipelineID, nodeID, "json")
}

func (figureKind) PersistCode(nodeID, path string) string {
	return fmt.Sprintf("%s.write_json(r'%s')", nodeID, path)
}

func (figureKind) LoadCode(nodeID, path string) string {
	return fmt.Sprintf("import plotly.io as _cascade_pio\n%s = _cascade_pio.read_json(r'%s')", nodeID, path)
}

type callableKind struct{}

func (callableKind) Tag() models.NodeKind { return models.KindCallable }
func (callableKind) Format() string       { return "dill" }
func (callableKind) VerifyCallable() bool { return true }

func (callableKind) ArtifactPath(root, pipelineID, nodeID string) string {
	return artifactPath(root, pipelineID, nodeID, "dill")
}

func (callableKind) PersistCode(nodeID, path string) string {
	return fmt.Sprintf(
		"import dill as _cascade_dill\nwith open(r'%s', 'wb') as _cascade_f:\n    _cascade_dill.dump(%s, _cascade_f)",
		path, nodeID)
}

func (callableKind) LoadCode(nodeID, path string) string {
	return fmt.Sprintf(
		"import dill as _cascade_dill\nwith open(r'%s', 'rb') as _cascade_f:\n    %s = _cascade_dill.load(_cascade_f)",
		path, nodeID)
}

type objectKind struct{}

func (objectKind) Tag() models.NodeKind { return models.KindObject }
func (objectKind) Format() string       { return "pickle" }
func (objectKind) VerifyCallable() bool { return false }

func (objectKind) ArtifactPath(root, pipelineID, nodeID string) string {
	return artifactPath(root, pipelineID, nodeID, "pkl")
}

func (objectKind) PersistCode(nodeID, path string) string {
	return fmt.Sprintf(
		"import pickle as _cascade_pickle\nwith open(r'%s', 'wb') as _cascade_f:\n    _cascade_pickle.dump(%s, _cascade_f)",
		path, nodeID)
}

func (objectKind) LoadCode(nodeID, path string) string {
	return fmt.Sprintf(
		"import pickle as _cascade_pickle\nwith open(r'%s', 'rb') as _cascade_f:\n    %s = _cascade_pickle.load(_cascade_f)",
		path, nodeID)
}

func artifactPath(root, pipelineID, nodeID, ext string) string {
	return filepath.Join(root, pipelineID, nodeID+"."+ext)
}
