package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/airesearcher/frontend/internal/model"
	"github.com/airesearcher/frontend/internal/paper"
	"github.com/airesearcher/frontend/internal/service"
	"github.com/airesearcher/frontend/pkg/response"
)

const (
	detailJobNotFound  = "Research job not found"
	detailNotComplete  = "Research is not yet complete"
	backendServiceName = "AI-Researcher API"
)

// BackendHandler serves the research backend API used in development
type BackendHandler struct {
	service   *service.JobService
	validator *validator.Validate
	logger    *slog.Logger
}

func NewBackendHandler(svc *service.JobService, v *validator.Validate, logger *slog.Logger) *BackendHandler {
	return &BackendHandler{
		service:   svc,
		validator: v,
		logger:    logger,
	}
}

// Start handles POST /api/research/start
func (h *BackendHandler) Start(c *fiber.Ctx) error {
	var req model.ResearchStartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Detail(c, fiber.StatusUnprocessableEntity, "Invalid request body")
	}

	req.Domain = strings.TrimSpace(req.Domain)
	if err := h.validator.Struct(&req); err != nil {
		return response.Detail(c, fiber.StatusUnprocessableEntity, formatValidationErrors(err))
	}

	result, err := h.service.StartJob(c.Context(), &req)
	if err != nil {
		h.logger.Error("failed to start research job", "error", err)
		return response.Detail(c, fiber.StatusInternalServerError, err.Error())
	}

	h.logger.Info("research job queued", "job_id", result.JobID, "domain", req.Domain)
	return response.OK(c, result)
}

// Status handles GET /api/research/:jobId/status
func (h *BackendHandler) Status(c *fiber.Ctx) error {
	result, err := h.service.GetStatus(c.Context(), c.Params("jobId"))
	if err != nil {
		return h.jobError(c, err)
	}
	return response.OK(c, result)
}

// Logs handles GET /api/research/:jobId/logs?last_seen=N
func (h *BackendHandler) Logs(c *fiber.Ctx) error {
	lastSeen := c.QueryInt("last_seen", 0)

	result, err := h.service.GetLogs(c.Context(), c.Params("jobId"), lastSeen)
	if err != nil {
		return h.jobError(c, err)
	}
	return response.OK(c, result)
}

// Results handles GET /api/research/:jobId/results
func (h *BackendHandler) Results(c *fiber.Ctx) error {
	result, err := h.service.GetResults(c.Context(), c.Params("jobId"))
	if err != nil {
		return h.jobError(c, err)
	}
	return response.OK(c, result)
}

// PDF handles GET /api/research/:jobId/pdf
func (h *BackendHandler) PDF(c *fiber.Ctx) error {
	jobID := c.Params("jobId")

	result, err := h.service.GetResults(c.Context(), jobID)
	if err != nil {
		return h.jobError(c, err)
	}
	if result.Paper == nil {
		return response.Detail(c, fiber.StatusInternalServerError, "Research completed but no paper was generated.")
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="research-paper-%s.pdf"`, jobID))
	return c.Send(paper.RenderPDF(result.Paper))
}

// Health handles GET /api/health
func (h *BackendHandler) Health(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{
		"status":  "ok",
		"service": backendServiceName,
	})
}

func (h *BackendHandler) jobError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		return response.Detail(c, fiber.StatusNotFound, detailJobNotFound)
	case errors.Is(err, service.ErrJobNotCompleted):
		return response.Detail(c, fiber.StatusBadRequest, detailNotComplete)
	default:
		h.logger.Error("job lookup failed", "error", err)
		return response.Detail(c, fiber.StatusInternalServerError, err.Error())
	}
}

// NewValidator returns a validator that names fields by their JSON key
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]fiber.Map, 0, len(validationErrors))
		for _, e := range validationErrors {
			details = append(details, fiber.Map{
				"loc":  []string{"body", e.Field()},
				"msg":  e.Tag(),
				"type": "value_error",
			})
		}
		return details
	}
	return err.Error()
}
