package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/airesearcher/frontend/internal/model"
)

// fakeAPI serves the research backend surface for two jobs: job-42
// completes on its second status poll, job-bad fails.
type fakeAPI struct {
	mu          sync.Mutex
	startBodies []model.ResearchStartRequest
	statusCalls map[string]int
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{statusCalls: make(map[string]int)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/research/start", func(w http.ResponseWriter, r *http.Request) {
		var req model.ResearchStartRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.startBodies = append(f.startBodies, req)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"job_id": "job-42", "message": "Research pipeline initiated"})
	})
	mux.HandleFunc("GET /api/research/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		f.mu.Lock()
		f.statusCalls[id]++
		calls := f.statusCalls[id]
		f.mu.Unlock()

		switch {
		case id == "job-bad":
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status": "failed", "current_stage": "gap_analysis", "progress": 0.2, "error": "quota exceeded",
			})
		case id != "job-42":
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Research job not found"})
		case calls == 1:
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status": "running", "current_stage": "implementation", "progress": 0.45,
			})
		default:
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status": "completed", "current_stage": "completed", "progress": 1.0,
			})
		}
	})
	mux.HandleFunc("GET /api/research/{id}/logs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"logs": []interface{}{
				"plain line",
				`{"level": "INFO", "message": "Stage 4/7: Implementation", "timestamp": "2024-05-01T10:00:00"}`,
			},
		})
	})
	mux.HandleFunc("GET /api/research/{id}/results", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"paper":          map[string]interface{}{"title": "Advances in graph learning", "content": "# Advances\n", "references": 11},
			"implementation": map[string]interface{}{"code": "draft()", "refined_code": "final()"},
		})
	})
	mux.HandleFunc("GET /api/research/{id}/pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="research-paper-`+r.PathValue("id")+`.pdf"`)
		_, _ = w.Write([]byte("%PDF-1.4 fake"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// setupCLI isolates config and state in a temp dir and returns the dir.
func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("STORE_DRIVER", "file")
	t.Setenv("STORE_PATH", filepath.Join(dir, "state.yaml"))
	t.Setenv("POLL_INTERVAL", "20ms")
	t.Setenv("LOG_FILE", "")
	return dir
}

// runCLI executes the command tree with args and returns stdout.
func runCLI(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()

	// flag storage outlives a single Execute
	apiURL, logLevel, storeDriver = "", "warn", ""
	startDomain, startFocus, startSeedPapers, startSeedPapersFile, startModel = "", "", "", "", ""
	startWatch = false
	resultsFormat, pdfFile = formatText, ""

	var out bytes.Buffer
	researcherCmd.SilenceErrors = true
	researcherCmd.SilenceUsage = true
	researcherCmd.SetOut(&out)
	researcherCmd.SetErr(io.Discard)
	researcherCmd.SetArgs(append(args, "--api-url", serverURL))
	err := researcherCmd.Execute()
	return out.String(), err
}

func TestStartAndWatch(t *testing.T) {
	setupCLI(t)
	api, srv := newFakeAPI(t)

	out, err := runCLI(t, srv.URL, "start",
		"--domain", "  graph learning ",
		"--focus", "over-smoothing",
		"--seed-papers", "GCN | https://arxiv.org/abs/1609.02907 | Kipf | 2017\n\nGAT",
		"--watch",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "Started research job job-42")
	assert.Contains(t, out, "==> Implementation 45%")
	assert.Contains(t, out, "[INFO] plain line")
	assert.Contains(t, out, "2024-05-01T10:00:00 [INFO] Stage 4/7: Implementation")
	assert.Contains(t, out, "Research completed.")
	assert.Contains(t, out, "Advances in graph learning")
	assert.Contains(t, out, "    final()")

	require.Len(t, api.startBodies, 1)
	req := api.startBodies[0]
	assert.Equal(t, "graph learning", req.Domain)
	assert.Equal(t, "over-smoothing", req.ResearchFocus)
	assert.Equal(t, model.ModelGeminiFlash, req.ModelPreference)
	require.Len(t, req.SeedPapers, 2)
	assert.Equal(t, "Kipf", req.SeedPapers[0].Authors)
	require.NotNil(t, req.SeedPapers[0].Year)
	assert.Equal(t, 2017, *req.SeedPapers[0].Year)
	assert.Equal(t, "GAT", req.SeedPapers[1].Title)
	assert.Nil(t, req.SeedPapers[1].Year)

	out, err = runCLI(t, srv.URL, "last")
	require.NoError(t, err)
	assert.Equal(t, "job-42\n", out)
}

func TestStart_SeedPapersFile(t *testing.T) {
	dir := setupCLI(t)
	api, srv := newFakeAPI(t)

	seeds := filepath.Join(dir, "seeds.txt")
	require.NoError(t, os.WriteFile(seeds, []byte("Attention | | Vaswani | 2017\n"), 0o644))

	out, err := runCLI(t, srv.URL, "start", "--domain", "nlp", "--seed-papers-file", seeds, "--model", "gemini-1.5-pro")
	require.NoError(t, err)
	assert.Contains(t, out, "researcher watch job-42")

	require.Len(t, api.startBodies, 1)
	assert.Equal(t, model.ModelGeminiPro, api.startBodies[0].ModelPreference)
	require.Len(t, api.startBodies[0].SeedPapers, 1)
	assert.Equal(t, "Attention", api.startBodies[0].SeedPapers[0].Title)
}

func TestStart_Validation(t *testing.T) {
	setupCLI(t)
	api, srv := newFakeAPI(t)

	_, err := runCLI(t, srv.URL, "start", "--domain", "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--domain is required")

	_, err = runCLI(t, srv.URL, "start", "--domain", "nlp", "--model", "gpt-4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ModelPreference must be one of")

	assert.Empty(t, api.startBodies)
}

func TestWatch_Failure(t *testing.T) {
	setupCLI(t)
	_, srv := newFakeAPI(t)

	out, err := runCLI(t, srv.URL, "watch", "job-bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Contains(t, out, "Research failed: quota exceeded")
}

func TestWatch_NoJob(t *testing.T) {
	setupCLI(t)
	_, srv := newFakeAPI(t)

	_, err := runCLI(t, srv.URL, "watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no job id given")

	_, err = runCLI(t, srv.URL, "last")
	require.Error(t, err)
}

func TestStatus(t *testing.T) {
	setupCLI(t)
	_, srv := newFakeAPI(t)

	out, err := runCLI(t, srv.URL, "status", "job-42")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: running")
	assert.Contains(t, out, "Progress: 45%")

	_, err = runCLI(t, srv.URL, "status", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Research job not found")
}

func TestLogs(t *testing.T) {
	setupCLI(t)
	_, srv := newFakeAPI(t)

	out, err := runCLI(t, srv.URL, "logs", "job-42")
	require.NoError(t, err)
	assert.Equal(t, "[INFO] plain line\n2024-05-01T10:00:00 [INFO] Stage 4/7: Implementation\n", out)
}

func TestResults_Formats(t *testing.T) {
	setupCLI(t)
	_, srv := newFakeAPI(t)

	out, err := runCLI(t, srv.URL, "results", "job-42", "-o", "json")
	require.NoError(t, err)
	var fromJSON model.JobResult
	require.NoError(t, json.Unmarshal([]byte(out), &fromJSON))
	assert.Equal(t, 11, fromJSON.Paper.References)

	out, err = runCLI(t, srv.URL, "results", "job-42", "-o", "yaml")
	require.NoError(t, err)
	var fromYAML model.JobResult
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))
	assert.Equal(t, "Advances in graph learning", fromYAML.Paper.Title)
	assert.Equal(t, "final()", fromYAML.BestCode())

	out, err = runCLI(t, srv.URL, "results", "job-42")
	require.NoError(t, err)
	assert.Contains(t, out, "References: 11")

	_, err = runCLI(t, srv.URL, "results", "job-42", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestPDF(t *testing.T) {
	dir := setupCLI(t)
	_, srv := newFakeAPI(t)

	out, err := runCLI(t, srv.URL, "pdf", "job-42")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved research-paper-job-42.pdf")
	data, err := os.ReadFile(filepath.Join(dir, "research-paper-job-42.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(data))

	target := filepath.Join(dir, "paper.pdf")
	_, err = runCLI(t, srv.URL, "pdf", "job-42", "-f", target)
	require.NoError(t, err)
	assert.FileExists(t, target)
}
