package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medimind/medimind-api/internal/domain/analysis"
	"github.com/medimind/medimind-api/internal/domain/auth"
	"github.com/medimind/medimind-api/internal/domain/profile"
	"github.com/medimind/medimind-api/internal/domain/records"
	"github.com/medimind/medimind-api/internal/infra/avatarstore"
	"github.com/medimind/medimind-api/internal/infra/config"
	"github.com/medimind/medimind-api/internal/infra/devicestore"
	"github.com/medimind/medimind-api/internal/infra/llm/gemini"
	"github.com/medimind/medimind-api/internal/infra/userdoc"
)

type stubGenClient struct {
	response gemini.GenerateContentResponse
	err      error
}

func (s *stubGenClient) GenerateContent(context.Context, gemini.GenerateContentRequest) (gemini.GenerateContentResponse, error) {
	return s.response, s.err
}

func predictionEnvelope(t *testing.T) gemini.GenerateContentResponse {
	t.Helper()
	payload := map[string]any{
		"predictions": []map[string]any{
			{
				"disease":         "Influenza",
				"confidence":      87.5,
				"description":     "Viral respiratory infection",
				"recovery":        []string{"Rest", "Fluids", "Paracetamol", "Isolation"},
				"matchedSymptoms": []string{"fever", "cough"},
				"severity":        3,
				"specialist":      "General Physician",
			},
		},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return gemini.GenerateContentResponse{
		Candidates: []gemini.Candidate{
			{Content: gemini.Content{Role: "model", Parts: []gemini.Part{{Text: string(raw)}}}},
		},
	}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServerConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
		Auth: config.AuthConfig{
			Secret:          "test-secret",
			TokenTTL:        time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
			ResetTokenTTL:   time.Hour,
		},
		Analysis: config.AnalysisConfig{
			MaxPredictions: 3,
			RecoverySteps:  4,
			ProgressTick:   time.Hour,
			ProgressStep:   10,
		},
	}
}

func newServerUnderTest(t *testing.T, gen analysis.GenClient) *http.Server {
	t.Helper()
	cfg := testServerConfig()
	logger := newTestLogger()
	repo := userdoc.NewMemoryRepository()
	cache := devicestore.NewMemoryStore()

	authSvc := auth.NewService(auth.Config{
		Secret:          cfg.Auth.Secret,
		TokenTTL:        cfg.Auth.TokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
		ResetTokenTTL:   cfg.Auth.ResetTokenTTL,
	}, repo, cache, logger)
	analysisSvc := analysis.NewService(analysis.Config{
		MaxPredictions: cfg.Analysis.MaxPredictions,
		RecoverySteps:  cfg.Analysis.RecoverySteps,
		ProgressTick:   cfg.Analysis.ProgressTick,
		ProgressStep:   cfg.Analysis.ProgressStep,
	}, gen, repo, logger)
	profileSvc := profile.NewService(profile.Config{MaxAvatarBytes: 1 << 20}, repo, avatarstore.NewMemoryStorage(), logger)
	recordsSvc := records.NewService(repo, logger)

	handler := NewHandler(cfg, authSvc, analysisSvc, profileSvc, recordsSvc, logger)
	return NewRouter(cfg, handler, authSvc)
}

func doJSON(t *testing.T, server *http.Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, server *http.Server, email, userType string) string {
	t.Helper()
	payload := fmt.Sprintf(`{"email":%q,"password":"pass1234","fullName":"Test User","userType":%q}`, email, userType)
	rec := doJSON(t, server, http.MethodPost, "/api/v1/auth/register", "", payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, server, http.MethodPost, "/api/v1/auth/login", "", fmt.Sprintf(`{"email":%q,"password":"pass1234"}`, email))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp auth.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestRouter_AnalyzeFlow(t *testing.T) {
	server := newServerUnderTest(t, &stubGenClient{response: predictionEnvelope(t)})
	token := registerAndLogin(t, server, "patient@example.com", "patient")

	rec := doJSON(t, server, http.MethodPost, "/api/v1/analyses", token, `{"symptoms":"fever and cough"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp analysis.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Saved)
	require.Len(t, resp.Predictions, 1)
	require.Equal(t, "Influenza", resp.Predictions[0].Disease)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/analyses", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Items []analysis.Record `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Items, 1)
	require.Equal(t, "fever and cough", history.Items[0].Symptoms)
}

func TestRouter_AnalyzeRequiresAuth(t *testing.T) {
	server := newServerUnderTest(t, &stubGenClient{})

	rec := doJSON(t, server, http.MethodPost, "/api/v1/analyses", "", `{"symptoms":"fever"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "unauthorized", errBody["error"]["code"])
}

func TestRouter_ProgressEndpoint(t *testing.T) {
	server := newServerUnderTest(t, &stubGenClient{})
	token := registerAndLogin(t, server, "patient@example.com", "patient")

	rec := doJSON(t, server, http.MethodGet, "/api/v1/analyses/progress", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var progress analysis.Progress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &progress))
	require.False(t, progress.Analyzing)
	require.Zero(t, progress.Percent)
}

func TestRouter_DoctorRoutesRequireDoctorRole(t *testing.T) {
	server := newServerUnderTest(t, &stubGenClient{response: predictionEnvelope(t)})
	patientToken := registerAndLogin(t, server, "patient@example.com", "patient")
	doctorToken := registerAndLogin(t, server, "doctor@example.com", "doctor")

	rec := doJSON(t, server, http.MethodGet, "/api/v1/doctor/stats", patientToken, "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, server, http.MethodPost, "/api/v1/analyses", patientToken, `{"symptoms":"fever and cough"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/doctor/stats", doctorToken, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats records.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, 1, stats.TotalPatients, "doctor accounts are not counted as patients")
	require.Equal(t, 1, stats.TotalAnalyses)
	require.Equal(t, 1, stats.SevereCases)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/doctor/analyses/recent?sortBy=severity", doctorToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var feed struct {
		Items []records.RecentAnalysis `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	require.Len(t, feed.Items, 1)
	require.Equal(t, "Severe", feed.Items[0].SeverityLabel)
}

func TestRouter_ProfileUpdate(t *testing.T) {
	server := newServerUnderTest(t, &stubGenClient{})
	token := registerAndLogin(t, server, "patient@example.com", "patient")

	rec := doJSON(t, server, http.MethodPatch, "/api/v1/profile", token, `{"dateOfBirth":"1991-07-20"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var p profile.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Equal(t, "1991-07-20", p.DateOfBirth)
	require.Equal(t, "Test User", p.FullName)
}

func TestRouter_Healthz(t *testing.T) {
	server := newServerUnderTest(t, &stubGenClient{})

	rec := doJSON(t, server, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWithRetry_ReplaysTransientFailures(t *testing.T) {
	var calls atomic.Int32
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	wrapped := withRetry(inner, config.RetryConfig{
		Enabled:     true,
		MaxAttempts: 3,
		Exclude:     []string{"/api/v1/analyses"},
	}, newTestLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int32(2), calls.Load())
}

func TestWithRetry_NeverReplaysAnalysisSubmission(t *testing.T) {
	var calls atomic.Int32
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	wrapped := withRetry(inner, config.RetryConfig{
		Enabled:     true,
		MaxAttempts: 3,
		Exclude:     []string{"/api/v1/analyses"},
	}, newTestLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", bytes.NewBufferString(`{"symptoms":"fever"}`))
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, int32(1), calls.Load(), "analysis submissions run exactly once")
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}
