package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/itrust/itrust/internal/platform/apperr"
	"github.com/itrust/itrust/internal/platform/auth"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc, _, _ := newTestService()
	tokens := auth.NewTokenIssuer("itrust", []byte(testSigningKey), time.Hour)
	return NewHandler(svc, tokens), svc, echo.New()
}

func jsonRequest(ctx context.Context, method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req.WithContext(ctx)
}

func TestHandler_CreateHidesPassword(t *testing.T) {
	h, _, e := newTestHandler()
	rec := httptest.NewRecorder()
	body := `{"username":"hcp1","password":"secret1","role":"ROLE_HCP"}`
	c := e.NewContext(jsonRequest(adminCtx(), http.MethodPost, "/api/v1/users", body), rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(rec.Body.String(), "secret1") || strings.Contains(strings.ToLower(rec.Body.String()), "password") {
		t.Errorf("password leaked in response: %s", rec.Body.String())
	}
	var got User
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Username != "hcp1" || len(got.Roles) != 1 || got.Roles[0] != auth.RoleHCP {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_LoginIssuesToken(t *testing.T) {
	h, svc, e := newTestHandler()
	svc.Create(adminCtx(), patientForm)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(context.Background(), http.MethodPost, "/api/v1/auth/login",
		`{"username":"patient1","password":"123456"}`), rec)
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" || resp.Username != "patient1" {
		t.Fatalf("unexpected response %+v", resp)
	}

	// The issued token must be accepted by the bearer middleware.
	var seen auth.Principal
	mw := auth.JWTMiddleware(h.tokens.Config())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/self", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	err := mw(func(c echo.Context) error {
		seen, _ = auth.PrincipalFromContext(c.Request().Context())
		return nil
	})(e.NewContext(req, httptest.NewRecorder()))
	if err != nil {
		t.Fatalf("token rejected: %v", err)
	}
	if seen.Username != "patient1" || !seen.HasRole(auth.RolePatient) {
		t.Errorf("unexpected principal %+v", seen)
	}
}

func TestHandler_LoginRejectsBadPassword(t *testing.T) {
	h, svc, e := newTestHandler()
	svc.Create(adminCtx(), patientForm)

	c := e.NewContext(jsonRequest(context.Background(), http.MethodPost, "/api/v1/auth/login",
		`{"username":"patient1","password":"nope"}`), httptest.NewRecorder())
	if err := h.Login(c); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestHandler_LoginMissingFields(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(jsonRequest(context.Background(), http.MethodPost, "/api/v1/auth/login", `{}`), httptest.NewRecorder())
	if err := h.Login(c); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_LoginOverlongUsername(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"username":"` + strings.Repeat("x", 500) + `","password":"123456"}`
	c := e.NewContext(jsonRequest(context.Background(), http.MethodPost, "/api/v1/auth/login", body), httptest.NewRecorder())

	err := h.Login(c)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation || !ae.HasField("username") {
		t.Fatalf("expected username violation, got %v", err)
	}
}

func TestHandler_Self(t *testing.T) {
	h, _, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(adminCtx(), http.MethodGet, "/api/v1/auth/self", ""), rec)
	if err := h.Self(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"username":"admin1"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c = e.NewContext(jsonRequest(context.Background(), http.MethodGet, "/api/v1/auth/self", ""), httptest.NewRecorder())
	if err := h.Self(c); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestRoutes_NonAdminForbidden(t *testing.T) {
	h, _, e := newTestHandler()
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := auth.Principal{Username: "hcp1", Roles: []auth.Role{auth.RoleHCP}}
			c.SetRequest(c.Request().WithContext(auth.WithPrincipal(c.Request().Context(), p)))
			return next(c)
		}
	})
	h.RegisterRoutes(api)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/users"},
		{http.MethodPost, "/api/v1/users"},
		{http.MethodDelete, "/api/v1/users/nobody"},
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, jsonRequest(context.Background(), tc.method, tc.path, `{}`))
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s %s: expected 403, got %d", tc.method, tc.path, rec.Code)
		}
	}
}
