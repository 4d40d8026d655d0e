package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/airesearcher/frontend/internal/client"
	"github.com/airesearcher/frontend/internal/model"
)

var (
	ErrInvalidRequestJSON = errors.New("request body is not valid JSON")
	ErrUnparsableReply    = errors.New("backend reply is not JSON")
)

var logsPathPattern = regexp.MustCompile(`research/([^/]+)/logs`)

// Forwarder relays a request to the backend's /api surface
type Forwarder interface {
	Forward(ctx context.Context, method, path, rawQuery string, body []byte) (*client.ForwardResponse, error)
}

// ProxyReply is what the gateway writes back to its caller
type ProxyReply struct {
	StatusCode         int
	ContentType        string
	ContentDisposition string
	Body               []byte
}

// ProxyService rewrites and relays browser calls to the research backend
type ProxyService struct {
	backend Forwarder
	logger  *slog.Logger
}

func NewProxyService(backend Forwarder, logger *slog.Logger) *ProxyService {
	return &ProxyService{
		backend: backend,
		logger:  logger,
	}
}

// Get relays GET /api/<path>. Log paths get their own handling, see logs.
func (s *ProxyService) Get(ctx context.Context, path, rawQuery string) (*ProxyReply, error) {
	if strings.Contains(path, "/logs") {
		return s.logs(ctx, path)
	}

	resp, err := s.backend.Forward(ctx, http.MethodGet, path, rawQuery, nil)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/pdf") {
		disposition := resp.Header.Get("Content-Disposition")
		if disposition == "" {
			disposition = "inline"
		}
		return &ProxyReply{
			StatusCode:         resp.StatusCode,
			ContentType:        "application/pdf",
			ContentDisposition: disposition,
			Body:               resp.Body,
		}, nil
	}

	if json.Valid(resp.Body) {
		return jsonReply(resp.StatusCode, resp.Body), nil
	}
	if resp.OK() {
		return &ProxyReply{
			StatusCode:  resp.StatusCode,
			ContentType: contentType,
			Body:        resp.Body,
		}, nil
	}
	return nil, fmt.Errorf("GET %s: status %d: %w", path, resp.StatusCode, ErrUnparsableReply)
}

// Post relays POST /api/<path>. A bare "research" is the job creation
// endpoint and goes to research/start.
func (s *ProxyService) Post(ctx context.Context, path string, body []byte) (*ProxyReply, error) {
	if path == "research" {
		path = "research/start"
	}
	if !json.Valid(body) {
		return nil, ErrInvalidRequestJSON
	}

	resp, err := s.backend.Forward(ctx, http.MethodPost, path, "", body)
	if err != nil {
		return nil, err
	}
	if !json.Valid(resp.Body) {
		return nil, fmt.Errorf("POST %s: status %d: %w", path, resp.StatusCode, ErrUnparsableReply)
	}
	return jsonReply(resp.StatusCode, resp.Body), nil
}

// logs prefers the backend's own log endpoint and falls back to a summary
// built from the job status.
func (s *ProxyService) logs(ctx context.Context, path string) (*ProxyReply, error) {
	match := logsPathPattern.FindStringSubmatch(path)
	if match == nil {
		return emptyLogs(), nil
	}
	jobID := match[1]

	resp, err := s.backend.Forward(ctx, http.MethodGet, "research/"+jobID+"/logs", "", nil)
	switch {
	case err != nil:
		s.logger.Warn("failed to fetch logs from backend", "job_id", jobID, "error", err)
	case resp.OK() && json.Valid(resp.Body):
		return jsonReply(http.StatusOK, resp.Body), nil
	default:
		s.logger.Debug("logs endpoint unavailable, using status summary", "job_id", jobID, "status", resp.StatusCode)
	}

	resp, err = s.backend.Forward(ctx, http.MethodGet, "research/"+jobID+"/status", "", nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return emptyLogs(), nil
	}

	var snap model.JobStatusSnapshot
	if err := json.Unmarshal(resp.Body, &snap); err != nil {
		return nil, fmt.Errorf("decode status for %s: %w", jobID, err)
	}

	body, err := json.Marshal(map[string][]string{"logs": statusSummary(jobID, &snap)})
	if err != nil {
		return nil, err
	}
	return jsonReply(http.StatusOK, body), nil
}

func statusSummary(jobID string, snap *model.JobStatusSnapshot) []string {
	return []string{
		"Job ID: " + jobID,
		"Status: " + string(snap.Status),
		"Current stage: " + snap.CurrentStage,
		fmt.Sprintf("Progress: %d%%", snap.Percent()),
	}
}

func jsonReply(status int, body []byte) *ProxyReply {
	return &ProxyReply{
		StatusCode:  status,
		ContentType: "application/json",
		Body:        body,
	}
}

func emptyLogs() *ProxyReply {
	return jsonReply(http.StatusOK, []byte(`{"logs":[]}`))
}
