package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telhawk-systems/socdetect/common/logging"
	"github.com/telhawk-systems/socdetect/internal/config"
	"github.com/telhawk-systems/socdetect/internal/detection"
	"github.com/telhawk-systems/socdetect/internal/handlers"
	"github.com/telhawk-systems/socdetect/internal/ingestion"
	"github.com/telhawk-systems/socdetect/internal/models"
	"github.com/telhawk-systems/socdetect/internal/repository"
	"github.com/telhawk-systems/socdetect/internal/riskscore"
	"github.com/telhawk-systems/socdetect/internal/service"
)

var testNow = time.Date(2024, 2, 12, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func bruteForceLog() string {
	var b strings.Builder
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&b, "2024-02-12 10:15:%02d [AUTH] Failed password for admin from 203.0.113.45 port 22\n", 20+i)
	}
	return b.String()
}

func newTestRouter(t *testing.T) (http.Handler, *repository.MemoryRepository) {
	t.Helper()
	logger := logging.Discard()
	repo := repository.NewMemoryRepository(repository.WithMemoryClock(clock))
	svc := service.New(
		detection.NewEngine(detection.DefaultRules(), detection.WithClock(clock)),
		repo,
		ingestion.NewAdapter(repo, logger, ingestion.WithInsertDelay(0), ingestion.WithClock(clock)),
		riskscore.NewScorer(repo, logger, riskscore.WithClock(clock)),
		logger,
	)
	cfg := config.ServerConfig{CORS: config.CORSConfig{AllowedOrigins: []string{"https://soc.example.com"}}}
	return NewRouter(handlers.NewHandler(svc, logger), cfg, logger), repo
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestRouter_Metrics(t *testing.T) {
	h, _ := newTestRouter(t)

	do(t, h, http.MethodGet, "/healthz", nil)
	rec := do(t, h, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "socdetect_http_requests_total")
}

func TestRouter_Rules(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/v1/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.RulesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, detection.DefaultRules().Len(), resp.Count)
	assert.Equal(t, "brute-force-ssh", resp.Rules[0].ID)
}

func TestRouter_ParseIsDryRun(t *testing.T) {
	h, repo := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/v1/logs/parse", handlers.LogRequest{FileName: "auth.log", Content: bruteForceLog()})
	require.Equal(t, http.StatusOK, rec.Code)

	var result detection.ParsedLogResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 6, result.TotalLines)
	require.Len(t, result.Detections, 1)
	assert.Equal(t, 85, result.Detections[0].RiskScore)
	assert.Zero(t, repo.Len())
}

func TestRouter_AnalyzeStatsPurge(t *testing.T) {
	h, repo := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/v1/logs/analyze", handlers.LogRequest{FileName: "auth.log", Content: bruteForceLog()})
	require.Equal(t, http.StatusOK, rec.Code)

	var res service.AnalyzeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Summary.AlertsGenerated)
	assert.Equal(t, 1, res.Summary.SeverityBreakdown.High)
	assert.Equal(t, 1, repo.Len())

	rec = do(t, h, http.MethodGet, "/api/v1/logs/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.LogAnalysisStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalAlerts)
	require.Len(t, stats.Files, 1)
	assert.Equal(t, "auth.log", stats.Files[0].FileName)

	rec = do(t, h, http.MethodDelete, "/api/v1/logs/auth.log/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"file_name":"auth.log","deleted":1}`, rec.Body.String())
	assert.Zero(t, repo.Len())
}

func TestRouter_ScoreAlert(t *testing.T) {
	h, repo := newTestRouter(t)
	ctx := context.Background()

	alert, err := repo.InsertAlert(ctx, &models.AlertPayload{
		Title:    "[Log] Data Exfiltration Attempt",
		Source:   models.SourceForFile("egress.log"),
		Severity: "medium",
		RawData:  map[string]any{"risk_score": 60, "transfer_size_mb": 250.5},
	})
	require.NoError(t, err)

	rec := do(t, h, http.MethodPost, "/api/v1/alerts/"+alert.ID+"/risk-score", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.RiskScoringResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 60, result.OriginalScore)
	assert.Equal(t, 90, result.AdjustedScore)
	assert.True(t, result.ShouldEscalate)

	rec = do(t, h, http.MethodPost, "/api/v1/alerts/"+"0190f7c4-0000-7000-8000-000000000000"+"/risk-score", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_BadRequests(t *testing.T) {
	h, _ := newTestRouter(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"empty body", "/api/v1/logs/parse", ""},
		{"malformed json", "/api/v1/logs/analyze", "{"},
		{"missing file name", "/api/v1/logs/analyze", `{"content":"x"}`},
		{"unknown field", "/api/v1/logs/parse", `{"file_name":"a.log","content":"x","extra":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/v1/logs/analyze", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	h, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/logs/analyze", nil)
	req.Header.Set("Origin", "https://soc.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://soc.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_ServeAndShutdown(t *testing.T) {
	h, _ := newTestRouter(t)
	srv := New(h, config.ServerConfig{WriteTimeout: time.Second}, logging.Discard())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
