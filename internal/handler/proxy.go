package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/airesearcher/frontend/internal/service"
	"github.com/airesearcher/frontend/pkg/response"
)

type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger,
	}
}

// Get handles GET /api/*
func (h *ProxyHandler) Get(c *fiber.Ctx) error {
	path := c.Params("*")

	reply, err := h.service.Get(c.Context(), path, string(c.Request().URI().QueryString()))
	if err != nil {
		h.logger.Error("API route error", "method", fiber.MethodGet, "path", path, "error", err)
		return response.ProxyError(c)
	}
	return writeReply(c, reply)
}

// Post handles POST /api/*
func (h *ProxyHandler) Post(c *fiber.Ctx) error {
	path := c.Params("*")

	reply, err := h.service.Post(c.Context(), path, c.Body())
	if err != nil {
		h.logger.Error("API route error", "method", fiber.MethodPost, "path", path, "error", err)
		return response.ProxyError(c)
	}
	return writeReply(c, reply)
}

func writeReply(c *fiber.Ctx, reply *service.ProxyReply) error {
	if reply.ContentDisposition != "" {
		c.Set(fiber.HeaderContentDisposition, reply.ContentDisposition)
	}
	return response.Raw(c, reply.StatusCode, reply.ContentType, reply.Body)
}
