package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airesearcher/frontend/internal/logging"
	"github.com/airesearcher/frontend/internal/service"
	"github.com/airesearcher/frontend/internal/worker"
)

const testRedisAddr = "localhost:6379"

// setupBackend creates a dev backend app identical to cmd/devbackend, with an
// in-process worker.
func setupBackend(t *testing.T, stageDelay time.Duration) *fiber.App {
	t.Helper()
	logger := logging.Discard()

	// Redis (localhost, DB 15 to avoid collisions)
	redisClient := redis.NewClient(&redis.Options{Addr: testRedisAddr, DB: 15})
	t.Cleanup(func() { redisClient.Close() })
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skipping: redis not available: %v", err)
	}

	redisOpt := asynq.RedisClientOpt{Addr: testRedisAddr, DB: 15}
	asynqClient := asynq.NewClient(redisOpt)
	t.Cleanup(func() { asynqClient.Close() })

	jobService := service.NewJobService(redisClient, asynqClient)
	researchWorker := worker.NewResearchWorker(jobService, stageDelay, logger)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     2,
		Queues:          map[string]int{service.QueueResearch: 1},
		LogLevel:        asynq.ErrorLevel,
		ShutdownTimeout: 100 * time.Millisecond,
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeResearch, researchWorker.ProcessTask)
	require.NoError(t, srv.Start(mux))
	t.Cleanup(srv.Shutdown)

	backendHandler := NewBackendHandler(jobService, NewValidator(), logger)

	app := fiber.New()
	api := app.Group("/api")
	api.Get("/health", backendHandler.Health)
	api.Post("/research/start", backendHandler.Start)
	api.Get("/research/:jobId/status", backendHandler.Status)
	api.Get("/research/:jobId/logs", backendHandler.Logs)
	api.Get("/research/:jobId/results", backendHandler.Results)
	api.Get("/research/:jobId/pdf", backendHandler.PDF)
	return app
}

func startJob(t *testing.T, app *fiber.App) string {
	t.Helper()
	body := `{
		"domain": "reinforcement learning",
		"research_focus": "sample efficiency",
		"seed_papers": [{"title": "DQN", "url": "https://example.org/dqn", "authors": "Mnih", "year": 2015}]
	}`
	resp, err := doRequest(app, http.MethodPost, "/api/research/start", body, nil)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	jobID, _ := result["job_id"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, "Research pipeline initiated", result["message"])
	return jobID
}

func waitForStatus(t *testing.T, app *fiber.App, jobID, status string) map[string]interface{} {
	t.Helper()
	var last map[string]interface{}
	require.Eventually(t, func() bool {
		resp, err := doRequest(app, http.MethodGet, "/api/research/"+jobID+"/status", "", nil)
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		defer resp.Body.Close()
		var body map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return false
		}
		last = body
		return body["status"] == status
	}, 10*time.Second, 50*time.Millisecond)
	return last
}

func TestBackendHealth(t *testing.T) {
	app := setupBackend(t, 0)

	resp, err := doRequest(app, http.MethodGet, "/api/health", "", nil)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusOK)
	assert.Equal(t, "ok", parseJSON(t, resp)["status"])
}

func TestBackendStart_Validation(t *testing.T) {
	app := setupBackend(t, 0)

	tests := []struct {
		name string
		body string
	}{
		{"missing domain", `{"seed_papers": []}`},
		{"blank domain", `{"domain": "   "}`},
		{"unknown model", `{"domain": "nlp", "model_preference": "gpt-4"}`},
		{"not json", `{domain`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := doRequest(app, http.MethodPost, "/api/research/start", tt.body, nil)
			require.NoError(t, err)
			assertStatus(t, resp, http.StatusUnprocessableEntity)
			assert.Contains(t, parseJSON(t, resp), "detail")
		})
	}
}

func TestBackendUnknownJob(t *testing.T) {
	app := setupBackend(t, 0)

	for _, action := range []string{"status", "logs", "results", "pdf"} {
		resp, err := doRequest(app, http.MethodGet, "/api/research/does-not-exist/"+action, "", nil)
		require.NoError(t, err)
		assertStatus(t, resp, http.StatusNotFound)
		assert.Equal(t, "Research job not found", parseJSON(t, resp)["detail"])
	}
}

func TestBackendJobLifecycle(t *testing.T) {
	app := setupBackend(t, 0)
	jobID := startJob(t, app)

	status := waitForStatus(t, app, jobID, "completed")
	assert.Equal(t, "completed", status["current_stage"])
	assert.Equal(t, float64(1), status["progress"])

	// results
	resp, err := doRequest(app, http.MethodGet, "/api/research/"+jobID+"/results", "", nil)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusOK)
	results := parseJSON(t, resp)
	paperMap, ok := results["paper"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Advances in reinforcement learning: A Study of sample efficiency", paperMap["title"])
	assert.Equal(t, float64(11), paperMap["references"])

	// logs with and without last_seen
	resp, err = doRequest(app, http.MethodGet, "/api/research/"+jobID+"/logs", "", nil)
	require.NoError(t, err)
	logs := parseJSON(t, resp)
	total := int(logs["total_count"].(float64))
	assert.Greater(t, total, 7)
	assert.Equal(t, float64(total), logs["new_count"])
	assert.Equal(t, "completed", logs["job_status"])

	resp, err = doRequest(app, http.MethodGet, "/api/research/"+jobID+"/logs?last_seen=2", "", nil)
	require.NoError(t, err)
	logs = parseJSON(t, resp)
	assert.Equal(t, float64(total-2), logs["new_count"])
	assert.Len(t, logs["structured_logs"], total-2)

	resp, err = doRequest(app, http.MethodGet, "/api/research/"+jobID+"/logs?last_seen=100000", "", nil)
	require.NoError(t, err)
	logs = parseJSON(t, resp)
	assert.Equal(t, float64(0), logs["new_count"])

	// pdf
	resp, err = doRequest(app, http.MethodGet, "/api/research/"+jobID+"/pdf", "", nil)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusOK)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="research-paper-`+jobID+`.pdf"`, resp.Header.Get("Content-Disposition"))
	assert.Contains(t, readBody(t, resp), "%PDF-1.4")
}

func TestBackendResults_NotComplete(t *testing.T) {
	app := setupBackend(t, time.Minute)
	jobID := startJob(t, app)

	status := waitForStatus(t, app, jobID, "running")
	assert.Equal(t, "literature_collection", status["current_stage"])
	assert.Equal(t, 0.1, status["progress"])

	for _, action := range []string{"results", "pdf"} {
		resp, err := doRequest(app, http.MethodGet, "/api/research/"+jobID+"/"+action, "", nil)
		require.NoError(t, err)
		assertStatus(t, resp, http.StatusBadRequest)
		assert.Equal(t, "Research is not yet complete", parseJSON(t, resp)["detail"])
	}
}
