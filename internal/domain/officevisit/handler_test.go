package officevisit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/itrust/itrust/internal/platform/apperr"
	"github.com/itrust/itrust/internal/platform/auth"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc, _, _ := newTestService()
	return NewHandler(svc), svc, echo.New()
}

func jsonRequest(ctx context.Context, method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req.WithContext(ctx)
}

const checkupJSON = `{"patient":"patient1","hcp":"hcp1","hospital":"St. Mary","date":"2024-03-01T10:00:00Z",
	"type":"GENERAL_CHECKUP","hdl":55,"systolic":120}`

func TestHandler_CreateReturnsForm(t *testing.T) {
	h, _, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(hcpCtx(), http.MethodPost, "/api/v1/officevisits", checkupJSON), rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Form
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "1" || got.Patient != "patient1" || got.HDL == nil || *got.HDL != 55 {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_GetBadID(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(jsonRequest(hcpCtx(), http.MethodGet, "/", ""), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("abc")

	err := h.Get(c)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation || !ae.HasField("id") {
		t.Errorf("expected id validation error, got %v", err)
	}
}

func TestHandler_UpdateInvalidHDL(t *testing.T) {
	h, svc, e := newTestHandler()
	created, _ := svc.Create(hcpCtx(), checkupForm())

	body := strings.Replace(checkupJSON, `"hdl":55`, `"hdl":95`, 1)
	c := e.NewContext(jsonRequest(hcpCtx(), http.MethodPut, "/", body), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("1")

	err := h.Update(c)
	var ae *apperr.Error
	if !errors.As(err, &ae) || !ae.HasField("hdl") {
		t.Fatalf("expected hdl violation, got %v", err)
	}
	got, _ := svc.Get(hcpCtx(), created.ID)
	if *got.Metrics.HDL != 55 {
		t.Error("invalid update was persisted")
	}
}

func TestHandler_DeleteReturnsID(t *testing.T) {
	h, svc, e := newTestHandler()
	svc.Create(hcpCtx(), checkupForm())

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(hcpCtx(), http.MethodDelete, "/", ""), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "1" {
		t.Errorf("expected 1, got %s", rec.Body.String())
	}
}

func TestRoutes_RoleGates(t *testing.T) {
	tests := []struct {
		name   string
		roles  []auth.Role
		method string
		path   string
		body   string
		want   int
	}{
		{"od cannot create", []auth.Role{auth.RoleOD}, http.MethodPost, "/api/v1/officevisits", checkupJSON, http.StatusForbidden},
		{"patient cannot list all", []auth.Role{auth.RolePatient}, http.MethodGet, "/api/v1/officevisits", "", http.StatusForbidden},
		{"hcp cannot use mine", []auth.Role{auth.RoleHCP}, http.MethodGet, "/api/v1/officevisits/mine", "", http.StatusForbidden},
		{"admin cannot delete missing", []auth.Role{auth.RoleAdmin}, http.MethodDelete, "/api/v1/officevisits/99", "", http.StatusForbidden},
		{"patient lists own", []auth.Role{auth.RolePatient}, http.MethodGet, "/api/v1/officevisits/mine", "", http.StatusOK},
		{"hcp creates", []auth.Role{auth.RoleHCP}, http.MethodPost, "/api/v1/officevisits", checkupJSON, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, e := newTestHandler()
			ctx := ctxAs("hcp1", tt.roles...)
			if tt.roles[0] == auth.RolePatient {
				ctx = ctxAs("patient1", tt.roles...)
			}
			h.RegisterRoutes(e.Group("/api/v1"))

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, jsonRequest(ctx, tt.method, tt.path, tt.body))
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}
