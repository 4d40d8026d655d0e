package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/airesearcher/frontend/internal/config"
	"github.com/airesearcher/frontend/internal/model"
)

// ResearchBackend is the part of the research API the poller depends on
type ResearchBackend interface {
	StartResearch(ctx context.Context, req *model.ResearchStartRequest) (*model.ResearchStartResponse, error)
	GetStatus(ctx context.Context, jobID string) (*model.JobStatusSnapshot, error)
	GetLogs(ctx context.Context, jobID string) ([]model.LogEntry, error)
	GetResults(ctx context.Context, jobID string) (*model.JobResult, error)
}

// APIError is returned for non-2xx backend responses
type APIError struct {
	StatusCode int
	Body       []byte
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// ForwardResponse is an upstream reply relayed by the gateway
type ForwardResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *ForwardResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Document is a downloaded paper PDF
type Document struct {
	Data               []byte
	ContentType        string
	ContentDisposition string
}

// Filename returns the name suggested by Content-Disposition, if any.
func (d *Document) Filename() string {
	_, params, err := mime.ParseMediaType(d.ContentDisposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// BackendClient talks to the research backend REST API, either directly or
// through the gateway (both serve /api/...).
type BackendClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewBackendClient creates a new research backend client
func NewBackendClient(cfg *config.APIConfig, logger *slog.Logger) *BackendClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BackendClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger.With("component", "backend_client"),
	}
}

// BaseURL returns the configured backend base URL
func (c *BackendClient) BaseURL() string {
	return c.baseURL
}

// StartResearch submits a new research job
func (c *BackendClient) StartResearch(ctx context.Context, req *model.ResearchStartRequest) (*model.ResearchStartResponse, error) {
	var result model.ResearchStartResponse
	if err := c.post(ctx, "research/start", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetStatus fetches the current status snapshot of a job
func (c *BackendClient) GetStatus(ctx context.Context, jobID string) (*model.JobStatusSnapshot, error) {
	var result model.JobStatusSnapshot
	if err := c.get(ctx, jobPath(jobID, "status"), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetLogs fetches the job's log lines, normalized
func (c *BackendClient) GetLogs(ctx context.Context, jobID string) ([]model.LogEntry, error) {
	var result model.LogsResponse
	if err := c.get(ctx, jobPath(jobID, "logs"), &result); err != nil {
		return nil, err
	}
	return model.NormalizeLogs(result.Logs), nil
}

// GetResults fetches the generated paper and implementation
func (c *BackendClient) GetResults(ctx context.Context, jobID string) (*model.JobResult, error) {
	var result model.JobResult
	if err := c.get(ctx, jobPath(jobID, "results"), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DownloadPDF fetches the rendered paper
func (c *BackendClient) DownloadPDF(ctx context.Context, jobID string) (*Document, error) {
	resp, err := c.Forward(ctx, http.MethodGet, jobPath(jobID, "pdf"), "", nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, newAPIError(resp.StatusCode, resp.Body)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/pdf") {
		return nil, fmt.Errorf("expected application/pdf, got %q", contentType)
	}

	return &Document{
		Data:               resp.Body,
		ContentType:        contentType,
		ContentDisposition: resp.Header.Get("Content-Disposition"),
	}, nil
}

// Health checks GET /api/health
func (c *BackendClient) Health(ctx context.Context) error {
	var result map[string]interface{}
	return c.get(ctx, "health", &result)
}

// Forward sends a request to /api/<path> and returns the raw reply. Non-2xx
// statuses are not errors here; only transport failures are.
func (c *BackendClient) Forward(ctx context.Context, method, path, rawQuery string, body []byte) (*ForwardResponse, error) {
	target := c.baseURL + "/api/" + strings.TrimLeft(path, "/")
	if rawQuery != "" {
		target += "?" + rawQuery
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	c.logger.Debug("→ backend request", "method", method, "url", target)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("✗ backend request failed", "method", method, "url", target, "error", err)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("← backend response", "method", method, "url", target, "status", resp.StatusCode, "bytes", len(respBody))

	return &ForwardResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// post sends a POST request with JSON body
func (c *BackendClient) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bodyBytes, result)
}

// get sends a GET request and parses JSON response
func (c *BackendClient) get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *BackendClient) do(ctx context.Context, method, path string, body []byte, result interface{}) error {
	resp, err := c.Forward(ctx, method, path, "", body)
	if err != nil {
		return err
	}

	if !resp.OK() {
		return newAPIError(resp.StatusCode, resp.Body)
	}

	if err := json.Unmarshal(resp.Body, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	return &APIError{
		StatusCode: status,
		Body:       body,
		Message:    ExtractErrorMessage(status, body),
	}
}

// ExtractErrorMessage picks the most useful message from an error reply: a
// JSON "detail" field, then "message", then the raw body text, then a generic
// status line.
func ExtractErrorMessage(status int, body []byte) string {
	generic := fmt.Sprintf("HTTP error! status: %d", status)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err == nil {
		if msg := messageField(fields["detail"]); msg != "" {
			return msg
		}
		if msg := messageField(fields["message"]); msg != "" {
			return msg
		}
		return generic
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return generic
}

// messageField renders a field as text; non-string details such as
// validation error lists are kept as JSON.
func messageField(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func jobPath(jobID, action string) string {
	return "research/" + url.PathEscape(jobID) + "/" + action
}
