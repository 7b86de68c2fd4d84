package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestCheck(t *testing.T) {
	admin := Principal{Username: "admin", Roles: []Role{RoleAdmin}}
	hcp := Principal{Username: "hcp", Roles: []Role{RoleHCP}}
	oph := Principal{Username: "oph", Roles: []Role{RoleOPH, RoleOD}}

	tests := []struct {
		name string
		p    Principal
		req  Requirement
		want Decision
	}{
		{"admin on admin", admin, HasRole(RoleAdmin), Allowed},
		{"admin has no bypass", admin, HasRole(RoleHCP), Forbidden},
		{"hcp on hcp", hcp, HasAnyRole(RoleHCP, RoleOD), Allowed},
		{"hcp on oph", hcp, HasAnyRole(RoleOD, RoleOPH), Forbidden},
		{"second role matches", oph, HasAnyRole(RoleOD), Allowed},
		{"authenticated only", hcp, Authenticated, Allowed},
		{"anonymous", Principal{}, Authenticated, Forbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Check(tt.p, tt.req); got != tt.want {
				t.Errorf("Check = %v, want %v", got, tt.want)
			}
		})
	}
}

func gate(t *testing.T, p *Principal, mw echo.MiddlewareFunc) (*httptest.ResponseRecorder, bool, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if p != nil {
		req = req.WithContext(WithPrincipal(req.Context(), *p))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	h := mw(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	})
	return rec, called, h(c)
}

func TestRequireRole_Allowed(t *testing.T) {
	rec, called, err := gate(t, &Principal{Username: "er1", Roles: []Role{RoleER}}, RequireRole(RoleER, RoleHCP))
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if !called || rec.Code != http.StatusOK {
		t.Errorf("expected handler to run, got %d", rec.Code)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	_, called, err := gate(t, &Principal{Username: "lab", Roles: []Role{RoleLabTech}}, RequireRole(RoleHCP))
	assertStatus(t, err, http.StatusForbidden)
	if called {
		t.Error("handler must not run when access is denied")
	}
}

func TestRequireRole_NoPrincipal(t *testing.T) {
	_, called, err := gate(t, nil, RequireRole(RoleHCP))
	assertStatus(t, err, http.StatusUnauthorized)
	if called {
		t.Error("handler must not run without a principal")
	}
}

func TestIsClinician(t *testing.T) {
	for _, r := range []Role{RoleHCP, RoleOD, RoleOPH} {
		if !(Principal{Username: "x", Roles: []Role{r}}).IsClinician() {
			t.Errorf("%s should be a clinician", r)
		}
	}
	for _, r := range []Role{RoleAdmin, RolePatient, RoleER, RoleLabTech} {
		if (Principal{Username: "x", Roles: []Role{r}}).IsClinician() {
			t.Errorf("%s should not be a clinician", r)
		}
	}
}

func TestValidRole(t *testing.T) {
	if !ValidRole("ROLE_LABTECH") {
		t.Error("ROLE_LABTECH should be valid")
	}
	if ValidRole("ROLE_ROOT") || ValidRole("") {
		t.Error("unknown roles must be rejected")
	}
	if len(RoleNames()) != len(AllRoles) {
		t.Error("RoleNames must cover every role")
	}
}
