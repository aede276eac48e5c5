package web

import (
	"net/http"
	"time"

	"github.com/cascadehq/cascade/pkg/kinds"
	"github.com/cascadehq/cascade/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	pipelineService  *services.Pipeline
	analysisService  *services.Analysis
	executionService *services.Execution
	validator        *validator.Validate
	kinds            *kinds.Registry
}

func NewAPIHandlers(
	pipelineService *services.Pipeline,
	analysisService *services.Analysis,
	executionService *services.Execution,
	validate *validator.Validate,
	registry *kinds.Registry,
) *APIHandlers {
	return &APIHandlers{
		pipelineService:  pipelineService,
		analysisService:  analysisService,
		executionService: executionService,
		validator:        validate,
		kinds:            registry,
	}
}

func (h *APIHandlers) GetPipelines(c fiber.Ctx) error {
	pipelines, err := h.pipelineService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"pipelines": pipelines})
}

func (h *APIHandlers) CreatePipeline(c fiber.Ctx) error {
	var req CreatePipelineRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.pipelineService.Create(c.Context(), services.CreateRequest{
		ID:    req.ID,
		Name:  req.Name,
		Nodes: req.Nodes,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetPipeline(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Pipeline ID is required")
	}

	pipeline, err := h.pipelineService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(pipeline)
}

func (h *APIHandlers) GetNodes(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Pipeline ID is required")
	}

	nodes, err := h.pipelineService.ListNodes(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"nodes": nodes})
}

func (h *APIHandlers) UpsertNode(c fiber.Ctx) error {
	id := c.Params("id")
	nodeID := c.Params("nodeId")

	if id == "" || nodeID == "" {
		return badRequest(c, "Pipeline ID and node ID are required")
	}

	var req UpsertNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.pipelineService.UpsertNode(c.Context(), services.UpsertNodeRequest{
		PipelineID:   id,
		NodeID:       nodeID,
		Code:         req.Code,
		Kind:         req.Kind,
		ExplicitDeps: req.ExplicitDeps,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(node)
}

func (h *APIHandlers) DeleteNode(c fiber.Ctx) error {
	id := c.Params("id")
	nodeID := c.Params("nodeId")

	if id == "" || nodeID == "" {
		return badRequest(c, "Pipeline ID and node ID are required")
	}

	if err := h.pipelineService.DeleteNode(c.Context(), id, nodeID); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) AnalyzeNode(c fiber.Ctx) error {
	id := c.Params("id")
	nodeID := c.Params("nodeId")

	if id == "" || nodeID == "" {
		return badRequest(c, "Pipeline ID and node ID are required")
	}

	analysis, err := h.analysisService.Analyze(c.Context(), id, nodeID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(analysis)
}

func (h *APIHandlers) PlanNode(c fiber.Ctx) error {
	id := c.Params("id")
	nodeID := c.Params("nodeId")

	if id == "" || nodeID == "" {
		return badRequest(c, "Pipeline ID and node ID are required")
	}

	var req PlanRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	plan, err := h.analysisService.Plan(c.Context(), id, nodeID, req.AlreadyExecuted)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(plan)
}

func (h *APIHandlers) ExecuteNode(c fiber.Ctx) error {
	id := c.Params("id")
	nodeID := c.Params("nodeId")

	if id == "" || nodeID == "" {
		return badRequest(c, "Pipeline ID and node ID are required")
	}

	result, err := h.executionService.Execute(c.Context(), id, nodeID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) ValidateGraph(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Pipeline ID is required")
	}

	report, err := h.analysisService.ValidateGraph(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(report)
}

func (h *APIHandlers) GetKinds(c fiber.Ctx) error {
	tags := h.kinds.Tags()

	resp := make([]KindResponse, 0, len(tags))

	for _, tag := range tags {
		kind, err := h.kinds.Resolve(tag)
		if err != nil {
			return internalError(c, err)
		}

		resp = append(resp, KindResponse{Tag: kind.Tag(), Format: kind.Format()})
	}

	return c.JSON(fiber.Map{"kinds": resp})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	storeCheck, storeOk := h.pipelineService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Cascade API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if storeOk {
		status = "healthy"
		message = "Cascade API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"store": storeCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
