package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airesearcher/frontend/internal/config"
	"github.com/airesearcher/frontend/internal/logging"
	"github.com/airesearcher/frontend/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *BackendClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBackendClient(&config.APIConfig{BaseURL: srv.URL + "/"}, logging.Discard())
}

func TestStartResearch_Success(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/research/start", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"job_id":"job-1","message":"Research pipeline initiated"}`))
	})

	year := 2023
	resp, err := c.StartResearch(context.Background(), &model.ResearchStartRequest{
		Domain:          "NLP",
		SeedPapers:      []model.SeedPaper{{Title: "Attention", URL: "u", Authors: "a", Year: &year}},
		ModelPreference: model.ModelGeminiFlash,
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", resp.JobID)

	assert.Equal(t, "NLP", got["domain"])
	assert.Equal(t, "gemini-1.5-flash", got["model_preference"])
	_, hasFocus := got["research_focus"]
	assert.False(t, hasFocus, "empty research_focus must be omitted")
	papers := got["seed_papers"].([]interface{})
	require.Len(t, papers, 1)
	assert.Equal(t, float64(2023), papers[0].(map[string]interface{})["year"])
}

func TestStartResearch_ErrorMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"domain is required"}`))
	})

	_, err := c.StartResearch(context.Background(), &model.ResearchStartRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "domain is required", apiErr.Error())
}

func TestExtractErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"detail wins", `{"detail":"bad domain","message":"ignored"}`, "bad domain"},
		{"message fallback", `{"message":"backend down"}`, "backend down"},
		{"json without fields", `{"error":"An error occurred"}`, "HTTP error! status: 500"},
		{"non string detail", `{"detail":[{"loc":["body","domain"]}]}`, `[{"loc":["body","domain"]}]`},
		{"plain text", "Internal Server Error", "Internal Server Error"},
		{"empty body", "", "HTTP error! status: 500"},
		{"null detail", `{"detail":null,"message":"m"}`, "m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractErrorMessage(http.StatusInternalServerError, []byte(tt.body)))
		})
	}
}

func TestGetStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/research/job-1/status", r.URL.Path)
		w.Write([]byte(`{"job_id":"job-1","status":"running","current_stage":"gap_analysis","progress":0.25}`))
	})

	snap, err := c.GetStatus(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, snap.Status)
	assert.Equal(t, "gap_analysis", snap.CurrentStage)
	assert.InDelta(t, 0.25, snap.Progress, 1e-9)
}

func TestGetStatus_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Research job not found"}`))
	})

	_, err := c.GetStatus(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "Research job not found", err.Error())
}

func TestGetLogs_Normalizes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"logs":["hello","{\"level\":\"ERROR\",\"message\":\"boom\"}"]}`))
	})

	logs, err := c.GetLogs(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, model.RawLog("hello"), logs[0])
	assert.Equal(t, model.StructuredLog("ERROR", "boom", ""), logs[1])
}

func TestGetResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"paper":{"title":"T","content":"# T","references":3},"implementation":{"code":"print(1)"}}`))
	})

	res, err := c.GetResults(context.Background(), "job-1")
	require.NoError(t, err)
	require.NotNil(t, res.Paper)
	assert.Equal(t, "T", res.Paper.Title)
	assert.Equal(t, 3, res.Paper.References)
	assert.Equal(t, "print(1)", res.BestCode())
}

func TestDownloadPDF(t *testing.T) {
	pdf := []byte("%PDF-1.4\n\x00\x01binary\n%%EOF")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="research-paper-job-1.pdf"`)
		w.Write(pdf)
	})

	doc, err := c.DownloadPDF(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, pdf, doc.Data)
	assert.Equal(t, "research-paper-job-1.pdf", doc.Filename())
}

func TestDownloadPDF_NotPDF(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	})

	_, err := c.DownloadPDF(context.Background(), "job-1")
	require.Error(t, err)
}

func TestForward_PassesQueryAndStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "last_seen=3", r.URL.RawQuery)
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})

	resp, err := c.Forward(context.Background(), http.MethodGet, "/research/x/logs", "last_seen=3", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.False(t, resp.OK())
	assert.Equal(t, "short and stout", string(resp.Body))
}

func TestForward_TransportError(t *testing.T) {
	c := NewBackendClient(&config.APIConfig{BaseURL: "http://127.0.0.1:1"}, logging.Discard())
	_, err := c.Forward(context.Background(), http.MethodGet, "health", "", nil)
	require.Error(t, err)
}
