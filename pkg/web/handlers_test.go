package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/cascadehq/cascade/pkg/infer"
	"github.com/cascadehq/cascade/pkg/kinds"
	"github.com/cascadehq/cascade/pkg/mocks"
	"github.com/cascadehq/cascade/pkg/models"
	"github.com/cascadehq/cascade/pkg/runner"
	"github.com/cascadehq/cascade/pkg/services"
	"github.com/cascadehq/cascade/pkg/session"
	"github.com/cascadehq/cascade/pkg/store/file"
	"github.com/cascadehq/cascade/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, *services.Pipeline) {
	t.Helper()

	st, err := file.NewStore(t.TempDir())
	require.NoError(t, err)

	sess := mocks.NewFakeSession()
	artifactRoot := t.TempDir()
	assignRe := regexp.MustCompile(`(?m)^(\w+)\s*=[^=]`)
	pathRe := regexp.MustCompile(`r'([^']+)'`)
	sess.OnExecute = func(code string) *session.ExecResult {
		for _, m := range assignRe.FindAllStringSubmatch(code, -1) {
			sess.Bind(m[1], 1)
		}

		for _, m := range pathRe.FindAllStringSubmatch(code, -1) {
			_ = os.WriteFile(m[1], []byte("artifact"), 0o600)
		}

		return nil
	}

	manager := session.NewManager(sess.SessionFactory(), slog.Default(), 2, time.Minute)
	registry := kinds.NewRegistry()

	r := runner.NewRunner(st, manager, infer.New(), registry, nil, nil, runner.Config{
		ArtifactRoot: artifactRoot,
		ExecTimeout:  time.Second,
	})

	validate := validator.New(validator.WithRequiredStructEnabled())
	pipelineService := services.NewPipeline(st, validate)
	analysisService := services.NewAnalysis(st)
	executionService := services.NewExecution(r)

	handlers := web.NewAPIHandlers(pipelineService, analysisService, executionService, validate, registry)

	app := fiber.New()

	p := app.Group("/pipelines")
	p.Get("/", handlers.GetPipelines)
	p.Post("/", handlers.CreatePipeline)
	p.Get("/:id", handlers.GetPipeline)
	p.Get("/:id/validate", handlers.ValidateGraph)
	p.Get("/:id/nodes", handlers.GetNodes)
	p.Put("/:id/nodes/:nodeId", handlers.UpsertNode)
	p.Delete("/:id/nodes/:nodeId", handlers.DeleteNode)
	p.Get("/:id/nodes/:nodeId/analyze", handlers.AnalyzeNode)
	p.Post("/:id/nodes/:nodeId/plan", handlers.PlanNode)
	p.Post("/:id/nodes/:nodeId/execute", handlers.ExecuteNode)

	app.Get("/kinds", handlers.GetKinds)
	app.Get("/health", handlers.HealthCheck)

	return app, pipelineService
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(payload, out))
}

func createPipeline(t *testing.T, app *fiber.App, req web.CreatePipelineRequest) models.Pipeline {
	t.Helper()

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/pipelines/", req))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created models.Pipeline
	decodeBody(t, resp, &created)

	return created
}

func TestCreateAndGetPipeline(t *testing.T) {
	app, _ := setupTestApp(t)

	created := createPipeline(t, app, web.CreatePipelineRequest{
		Name: "orders",
		Nodes: []*models.Node{
			{ID: "load", Code: "load = read()", Kind: models.KindObject},
		},
	})
	require.NotEmpty(t, created.ID)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/pipelines/"+created.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var fetched models.Pipeline
	decodeBody(t, resp, &fetched)
	assert.Equal(t, "orders", fetched.Name)
	require.Len(t, fetched.Nodes, 1)
	assert.Equal(t, models.StateNotExecuted, fetched.Nodes[0].State)
}

func TestCreatePipeline_ValidationFailure(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/pipelines/", web.CreatePipelineRequest{}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetPipeline_NotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/pipelines/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestUpsertAndDeleteNode(t *testing.T) {
	app, _ := setupTestApp(t)

	created := createPipeline(t, app, web.CreatePipelineRequest{Name: "orders"})

	resp, err := app.Test(jsonRequest(t, http.MethodPut, "/pipelines/"+created.ID+"/nodes/clean", web.UpsertNodeRequest{
		Code: "clean = load.dropna()",
		Kind: models.KindDataFrame,
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var node models.Node
	decodeBody(t, resp, &node)
	assert.Equal(t, "clean", node.ID)
	assert.Equal(t, models.KindDataFrame, node.Kind)

	resp, err = app.Test(jsonRequest(t, http.MethodDelete, "/pipelines/"+created.ID+"/nodes/clean", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodDelete, "/pipelines/"+created.ID+"/nodes/clean", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestUpsertNode_RejectsUnknownKind(t *testing.T) {
	app, _ := setupTestApp(t)

	created := createPipeline(t, app, web.CreatePipelineRequest{Name: "orders"})

	resp, err := app.Test(jsonRequest(t, http.MethodPut, "/pipelines/"+created.ID+"/nodes/x", map[string]string{
		"code": "x = 1",
		"kind": "hologram",
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAnalyzeAndPlanEndpoints(t *testing.T) {
	app, _ := setupTestApp(t)

	created := createPipeline(t, app, web.CreatePipelineRequest{
		Name: "orders",
		Nodes: []*models.Node{
			{ID: "a", Code: "a = 1", DependsOn: []string{}},
			{ID: "b", Code: "b = a + 1", DependsOn: []string{"a"}},
			{ID: "c", Code: "c = b + 1", DependsOn: []string{"b"}},
		},
	})

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/pipelines/"+created.ID+"/nodes/c/analyze", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var analysis services.AnalyzeResponse
	decodeBody(t, resp, &analysis)
	assert.Equal(t, []string{"b"}, analysis.DirectDeps)
	assert.Equal(t, []string{"a", "b"}, analysis.TransitiveDeps)
	assert.Equal(t, []string{"a", "b", "c"}, analysis.ExecutionOrder)
	assert.False(t, analysis.HasCycle)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/pipelines/"+created.ID+"/nodes/c/plan", web.PlanRequest{
		AlreadyExecuted: []string{"a"},
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var plan struct {
		Order   []string `json:"execution_order"`
		ToRun   []string `json:"to_run"`
		Skipped []string `json:"skipped"`
	}
	decodeBody(t, resp, &plan)
	assert.Equal(t, []string{"a", "b", "c"}, plan.Order)
	assert.Equal(t, []string{"b", "c"}, plan.ToRun)
	assert.Equal(t, []string{"a"}, plan.Skipped)
}

func TestAnalyze_UnknownNodeReturns404(t *testing.T) {
	app, _ := setupTestApp(t)

	created := createPipeline(t, app, web.CreatePipelineRequest{Name: "orders"})

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/pipelines/"+created.ID+"/nodes/ghost/analyze", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestPlan_CyclicGraphReturns422(t *testing.T) {
	app, _ := setupTestApp(t)

	created := createPipeline(t, app, web.CreatePipelineRequest{
		Name: "tangled",
		Nodes: []*models.Node{
			{ID: "a", Code: "a = b", DependsOn: []string{"b"}},
			{ID: "b", Code: "b = a", DependsOn: []string{"a"}},
		},
	})

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/pipelines/"+created.ID+"/nodes/a/plan", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestExecuteEndpoint(t *testing.T) {
	app, _ := setupTestApp(t)

	created := createPipeline(t, app, web.CreatePipelineRequest{
		Name: "orders",
		Nodes: []*models.Node{
			{ID: "a", Code: "a = 1"},
			{ID: "b", Code: "b = a + 1"},
		},
	})

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/pipelines/"+created.ID+"/nodes/b/execute", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result runner.Result
	decodeBody(t, resp, &result)
	assert.Equal(t, runner.StatusSuccess, result.Status)
	assert.Equal(t, []string{"a", "b"}, result.ExecutedNodes)
}

func TestValidateEndpoint(t *testing.T) {
	app, _ := setupTestApp(t)

	created := createPipeline(t, app, web.CreatePipelineRequest{
		Name: "orders",
		Nodes: []*models.Node{
			{ID: "a", Code: "a = ghost", DependsOn: []string{"ghost"}},
		},
	})

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/pipelines/"+created.ID+"/validate", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var report struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors"`
	}
	decodeBody(t, resp, &report)
	assert.False(t, report.Valid)
	assert.NotEmpty(t, report.Errors)
}

func TestKindsEndpoint(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/kinds", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Kinds []web.KindResponse `json:"kinds"`
	}
	decodeBody(t, resp, &body)
	assert.Len(t, body.Kinds, 4)
}

func TestHealthEndpoint(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
