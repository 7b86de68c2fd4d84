package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/itrust/itrust/internal/config"
	"github.com/itrust/itrust/internal/platform/auth"
)

func testApp() *app {
	cfg := &config.Config{
		Env:            "production",
		JWTIssuer:      "itrust",
		JWTSigningKey:  strings.Repeat("k", 32),
		TokenTTL:       time.Hour,
		CORSOrigins:    []string{"http://localhost:3000"},
		RateLimitRPS:   10,
		RateLimitBurst: 20,
		BodyLimit:      "1M",
	}
	return &app{
		cfg:    cfg,
		logger: zerolog.Nop(),
		tokens: auth.NewTokenIssuer(cfg.JWTIssuer, []byte(cfg.JWTSigningKey), cfg.TokenTTL),
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := rootCmd()
	for _, path := range [][]string{{"serve"}, {"migrate", "up"}, {"migrate", "status"}, {"seed"}} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("expected command %v, got %v (%v)", path, cmd, err)
		}
	}
	seed, _, _ := root.Find([]string{"seed"})
	if f := seed.Flags().Lookup("file"); f == nil || f.DefValue != "fixtures.yaml" {
		t.Errorf("expected --file flag defaulting to fixtures.yaml, got %+v", f)
	}
}

func TestRateLimitConfig(t *testing.T) {
	rl := rateLimitConfig(&config.Config{RateLimitRPS: 5, RateLimitBurst: 7})
	if rl.RequestsPerSecond != 5 || rl.BurstSize != 7 {
		t.Errorf("unexpected config %+v", rl)
	}
	rl = rateLimitConfig(&config.Config{})
	if rl.RequestsPerSecond != 100 || rl.BurstSize != 200 {
		t.Errorf("expected defaults, got %+v", rl)
	}
}

func TestRouter_Routes(t *testing.T) {
	e := testApp().router()

	have := make(map[string]bool)
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"GET /health/db",
		"POST /api/v1/auth/login",
		"GET /api/v1/hospitals",
		"POST /api/v1/hospitals",
		"DELETE /api/v1/users/:username",
		"GET /api/v1/officevisits/:id",
		"PUT /api/v1/ophthalmologysurgeries/:id",
		"GET /api/v1/emergencyhealthrecords/:patient",
		"GET /api/v1/auditlog",
	} {
		if !have[want] {
			t.Errorf("missing route %s", want)
		}
	}
}

func TestRouter_HealthIsPublic(t *testing.T) {
	e := testApp().router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}

func TestRouter_APIRequiresToken(t *testing.T) {
	e := testApp().router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/hospitals", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}
