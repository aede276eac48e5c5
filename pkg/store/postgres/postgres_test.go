package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/cascadehq/cascade/pkg/models"
	"github.com/cascadehq/cascade/pkg/store"
	pgstore "github.com/cascadehq/cascade/pkg/store/postgres"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *tcpostgres.PostgresContainer

func dropTables(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS pipelines CASCADE")
	require.NoError(t, err)

	require.NoError(t, db.Close())
}

func setupTestStore(t *testing.T) (*pgstore.Store, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("cascade_test"),
			tcpostgres.WithUsername("cascade"),
			tcpostgres.WithPassword("cascade"),
			tcpostgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropTables(ctx, t, databaseURL)

	st, err := pgstore.NewStore(ctx, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropTables(ctx, t, databaseURL)
		require.NoError(t, st.Close(ctx))
		cancel()
	})

	return st, ctx
}

func testPipeline() *models.Pipeline {
	return &models.Pipeline{
		ID:   "sales",
		Name: "Sales analysis",
		Nodes: []*models.Node{
			{ID: "orders", Code: "orders = pd.read_csv('orders.csv')", Kind: models.KindDataFrame, State: models.StateNotExecuted},
			{ID: "totals", Code: "totals = orders.groupby('region').sum()", Kind: models.KindDataFrame, State: models.StateNotExecuted},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestSaveAndLoadPipeline(t *testing.T) {
	st, ctx := setupTestStore(t)

	require.NoError(t, st.SavePipeline(ctx, testPipeline()))

	loaded, err := st.PipelineByID(ctx, "sales")
	require.NoError(t, err)

	assert.Equal(t, "sales", loaded.ID)
	require.Len(t, loaded.Nodes, 2)
	assert.Equal(t, "orders", loaded.Nodes[0].ID)
	assert.Equal(t, models.StateNotExecuted, loaded.Nodes[0].State)
}

func TestSavePipeline_UpsertsExistingDocument(t *testing.T) {
	st, ctx := setupTestStore(t)

	pipeline := testPipeline()
	require.NoError(t, st.SavePipeline(ctx, pipeline))

	pipeline.Name = "Sales analysis v2"
	pipeline.UpdatedAt = time.Now().UTC()
	require.NoError(t, st.SavePipeline(ctx, pipeline))

	loaded, err := st.PipelineByID(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, "Sales analysis v2", loaded.Name)

	pipelines, err := st.Pipelines(ctx)
	require.NoError(t, err)
	assert.Len(t, pipelines, 1)
}

func TestPipelineByID_NotFound(t *testing.T) {
	st, ctx := setupTestStore(t)

	_, err := st.PipelineByID(ctx, "ghost")
	require.Error(t, err)
	assert.True(t, store.IsPipelineNotFound(err))
}

func TestListNodes_OmitsCodeKeepsOrder(t *testing.T) {
	st, ctx := setupTestStore(t)
	require.NoError(t, st.SavePipeline(ctx, testPipeline()))

	nodes, err := st.ListNodes(ctx, "sales")
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	assert.Equal(t, "orders", nodes[0].ID)
	assert.Equal(t, "totals", nodes[1].ID)
	assert.Empty(t, nodes[0].Code)
}

func TestCommitNode(t *testing.T) {
	st, ctx := setupTestStore(t)
	require.NoError(t, st.SavePipeline(ctx, testPipeline()))

	now := time.Now().UTC()
	commit := store.NodeCommit{
		DependsOn: []string{"orders"},
		State:     models.StateValidated,
		Result:    &models.ResultDescriptor{Format: "parquet", Path: "/artifacts/sales/totals.parquet"},
		Timestamp: now,
	}

	require.NoError(t, st.CommitNode(ctx, "sales", "totals", commit))

	loaded, err := st.PipelineByID(ctx, "sales")
	require.NoError(t, err)

	node := loaded.NodeByID("totals")
	require.NotNil(t, node)
	assert.Equal(t, []string{"orders"}, node.DependsOn)
	assert.Equal(t, models.StateValidated, node.State)
	require.NotNil(t, node.Result)
	assert.Equal(t, "parquet", node.Result.Format)
	require.NotNil(t, node.LastRunAt)

	// Code must survive a metadata commit untouched.
	code, err := st.GetNodeCode(ctx, "sales", "totals")
	require.NoError(t, err)
	assert.Contains(t, code, "groupby")
}

func TestCommitNode_FailureLeavesEdgesUntouched(t *testing.T) {
	st, ctx := setupTestStore(t)
	require.NoError(t, st.SavePipeline(ctx, testPipeline()))

	require.NoError(t, st.CommitNode(ctx, "sales", "totals", store.NodeCommit{
		DependsOn: []string{"orders"},
		State:     models.StateValidated,
		Timestamp: time.Now().UTC(),
	}))

	require.NoError(t, st.CommitNode(ctx, "sales", "totals", store.NodeCommit{
		State:        models.StatePendingValidation,
		ErrorMessage: "NameError: boom",
		Timestamp:    time.Now().UTC(),
	}))

	loaded, err := st.PipelineByID(ctx, "sales")
	require.NoError(t, err)

	node := loaded.NodeByID("totals")
	require.NotNil(t, node)
	assert.Equal(t, []string{"orders"}, node.DependsOn)
	assert.Equal(t, models.StatePendingValidation, node.State)
	assert.Equal(t, "NameError: boom", node.LastError)
}

func TestCommitNode_UnknownNode(t *testing.T) {
	st, ctx := setupTestStore(t)
	require.NoError(t, st.SavePipeline(ctx, testPipeline()))

	err := st.CommitNode(ctx, "sales", "ghost", store.NodeCommit{
		State:     models.StateValidated,
		Timestamp: time.Now().UTC(),
	})
	require.Error(t, err)
	assert.True(t, store.IsNodeNotFound(err))
}
