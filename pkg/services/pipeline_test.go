package services

import (
	"testing"

	"github.com/cascadehq/cascade/pkg/models"
	"github.com/cascadehq/cascade/pkg/store"
	"github.com/cascadehq/cascade/pkg/store/file"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipelineFixture(t *testing.T) *Pipeline {
	t.Helper()

	st, err := file.NewStore(t.TempDir())
	require.NoError(t, err)

	return NewPipeline(st, validator.New(validator.WithRequiredStructEnabled()))
}

func TestCreate_GeneratesIDAndResetsNodeState(t *testing.T) {
	svc := newPipelineFixture(t)

	created, err := svc.Create(t.Context(), CreateRequest{
		Name: "orders",
		Nodes: []*models.Node{
			{ID: "load", Code: "load = read()", State: models.StateValidated},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	require.Len(t, created.Nodes, 1)
	assert.Equal(t, models.StateNotExecuted, created.Nodes[0].State)
	assert.Equal(t, models.KindObject, created.Nodes[0].Kind)

	fetched, err := svc.Get(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)
}

func TestCreate_RejectsMissingNameAndDuplicateIDs(t *testing.T) {
	svc := newPipelineFixture(t)

	_, err := svc.Create(t.Context(), CreateRequest{Name: ""})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = svc.Create(t.Context(), CreateRequest{
		Name: "dup",
		Nodes: []*models.Node{
			{ID: "x", Code: "x = 1"},
			{ID: "x", Code: "x = 2"},
		},
	})
	assert.ErrorIs(t, err, ErrDuplicateNodeID)
}

func TestUpsertNode_EditResetsMaterialization(t *testing.T) {
	svc := newPipelineFixture(t)

	created, err := svc.Create(t.Context(), CreateRequest{
		Name:  "orders",
		Nodes: []*models.Node{{ID: "load", Code: "load = read()"}},
	})
	require.NoError(t, err)

	node, err := svc.UpsertNode(t.Context(), UpsertNodeRequest{
		PipelineID: created.ID,
		NodeID:     "load",
		Code:       "load = read_v2()",
		Kind:       models.KindDataFrame,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StateNotExecuted, node.State)
	assert.Equal(t, models.KindDataFrame, node.Kind)

	fetched, err := svc.Get(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "load = read_v2()", fetched.NodeByID("load").Code)
}

func TestUpsertNode_AppendsNewNode(t *testing.T) {
	svc := newPipelineFixture(t)

	created, err := svc.Create(t.Context(), CreateRequest{Name: "orders"})
	require.NoError(t, err)

	_, err = svc.UpsertNode(t.Context(), UpsertNodeRequest{
		PipelineID: created.ID,
		NodeID:     "clean",
		Code:       "clean = load.dropna()",
	})
	require.NoError(t, err)

	nodes, err := svc.ListNodes(t.Context(), created.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "clean", nodes[0].ID)
	assert.Empty(t, nodes[0].Code)
}

func TestDeleteNode(t *testing.T) {
	svc := newPipelineFixture(t)

	created, err := svc.Create(t.Context(), CreateRequest{
		Name:  "orders",
		Nodes: []*models.Node{{ID: "load", Code: "load = read()"}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteNode(t.Context(), created.ID, "load"))

	err = svc.DeleteNode(t.Context(), created.ID, "load")
	assert.ErrorIs(t, err, store.ErrNodeNotFound)
	assert.True(t, IsNotFoundError(err))
}

func TestGet_UnknownPipeline(t *testing.T) {
	svc := newPipelineFixture(t)

	_, err := svc.Get(t.Context(), "missing")
	assert.ErrorIs(t, err, store.ErrPipelineNotFound)
	assert.True(t, IsNotFoundError(err))
}
