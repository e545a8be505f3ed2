package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/careagent/internal/config"
	"github.com/ehr/careagent/internal/llm"
	"github.com/ehr/careagent/internal/pipeline"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:                  "development",
		LogLevel:             "info",
		CORSOrigins:          []string{"http://localhost:3000"},
		RequestTimeout:       5 * time.Second,
		RateLimitRPS:         100,
		RateLimitBurst:       100,
		PipelineMode:         pipeline.ModeExtended,
		LLMProvider:          llm.ProviderNone,
		LLMTimeout:           time.Second,
		HITLDegradedMinTier:  "moderate",
		HITLAbsentIsDegraded: true,
	}
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	e, err := newServer(testConfig(), zerolog.Nop(), nil, llm.None)
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	return e
}

func serve(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// =========== Server ===========

func TestServer_Health(t *testing.T) {
	e := newTestServer(t)

	rec := serve(e, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("health: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}

	rec = serve(e, http.MethodGet, "/health/db", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "disabled") {
		t.Errorf("health/db without a database: %d %s", rec.Code, rec.Body.String())
	}
}

func TestServer_TurnAndReviewQueue(t *testing.T) {
	e := newTestServer(t)

	body := `{"utterance":"chest pain that gets worse when I climb the stairs","region":"uk"}`
	rec := serve(e, http.MethodPost, "/api/v1/turns", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID          string                `json:"id"`
		UserID      string                `json:"user_id"`
		NeedsReview bool                  `json:"needs_review"`
		Output      *pipeline.AgentOutput `json:"output"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.UserID != "dev-user" {
		t.Errorf("expected dev-user, got %q", created.UserID)
	}
	if !created.NeedsReview || !strings.Contains(created.Output.Text, "999") {
		t.Errorf("expected held emergency turn, got review=%v text=%q", created.NeedsReview, created.Output.Text)
	}

	rec = serve(e, http.MethodGet, "/api/v1/review-queue", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), created.ID) {
		t.Errorf("review queue: %d %s", rec.Code, rec.Body.String())
	}
}

func TestServer_Terminology(t *testing.T) {
	e := newTestServer(t)

	rec := serve(e, http.MethodGet, "/api/v1/terminology/entities/chest%20pain", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "R07.9") {
		t.Errorf("entity lookup: %d %s", rec.Code, rec.Body.String())
	}
}

func TestServer_JWTWhenKeyConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.AuthSigningKey = "test-secret"
	e, err := newServer(cfg, zerolog.Nop(), nil, llm.None)
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	if rec := serve(e, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("public health: expected 200, got %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/api/v1/review-queue", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", rec.Code)
	}
}

func TestServer_BadCodingTable(t *testing.T) {
	cfg := testConfig()
	cfg.CodingTablePath = "does-not-exist.yaml"
	if _, err := newServer(cfg, zerolog.Nop(), nil, llm.None); err == nil {
		t.Error("expected error for a missing coding table")
	}
}

// =========== CLI ===========

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ENV", "development")
	t.Setenv("LLM_PROVIDER", "none")
	t.Setenv("CODING_TABLE_PATH", "")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_Turn(t *testing.T) {
	out, err := runCLI(t, "turn", "--region", "us", "--condition", "diabetes",
		"I've had chest pain that gets worse when I climb the stairs")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	var got pipeline.AgentOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if got.Avatar != pipeline.AvatarEmergency {
		t.Errorf("expected emergency avatar, got %s", got.Avatar)
	}
	if !strings.Contains(got.Text, "911") {
		t.Errorf("expected US emergency number in %q", got.Text)
	}
	if got.Meta.Mode != pipeline.ModeExtended {
		t.Errorf("expected extended mode, got %s", got.Meta.Mode)
	}
}

func TestCLI_TurnBaseMode(t *testing.T) {
	out, err := runCLI(t, "turn", "--mode", "base", "I have a mild headache")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	var got pipeline.AgentOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got.Data.HITL != nil || got.Data.Coding != nil {
		t.Error("base mode output must not carry extended stages")
	}
}

func TestCLI_TurnUnknownMode(t *testing.T) {
	if _, err := runCLI(t, "turn", "--mode", "turbo", "cough"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestCLI_Codes(t *testing.T) {
	out, err := runCLI(t, "codes", "chest pain")
	if err != nil {
		t.Fatalf("codes: %v", err)
	}
	if !strings.Contains(out, "R07.9") || !strings.Contains(out, "29857009") {
		t.Errorf("expected chest pain codes, got:\n%s", out)
	}

	if _, err := runCLI(t, "codes", "broken leg"); err == nil {
		t.Error("expected error for an unmapped entity")
	}

	out, err = runCLI(t, "codes")
	if err != nil {
		t.Fatalf("codes: %v", err)
	}
	if !strings.Contains(out, "version:") || !strings.Contains(out, "entries:") {
		t.Errorf("expected full table, got:\n%s", out)
	}
}

func TestCLI_InvalidConfigRejected(t *testing.T) {
	t.Setenv("PIPELINE_MODE", "turbo")
	for _, args := range [][]string{{"codes"}, {"migrate", "status"}, {"turn", "cough"}} {
		_, err := runCLI(t, args...)
		if err == nil || !strings.Contains(err.Error(), "PIPELINE_MODE") {
			t.Errorf("%v: expected config validation error, got %v", args, err)
		}
	}
}
