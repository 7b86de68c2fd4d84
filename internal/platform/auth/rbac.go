package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Role string

const (
	RoleAdmin   Role = "ROLE_ADMIN"
	RoleHCP     Role = "ROLE_HCP"
	RolePatient Role = "ROLE_PATIENT"
	RoleOD      Role = "ROLE_OD"
	RoleOPH     Role = "ROLE_OPH"
	RoleER      Role = "ROLE_ER"
	RoleLabTech Role = "ROLE_LABTECH"
)

// AllRoles lists every role the service recognises, in display order.
var AllRoles = []Role{RolePatient, RoleHCP, RoleAdmin, RoleER, RoleLabTech, RoleOD, RoleOPH}

// ClinicianRoles are the roles that may act as the hcp on a visit.
var ClinicianRoles = []Role{RoleHCP, RoleOD, RoleOPH}

// RoleNames returns AllRoles as strings, for enum constraints.
func RoleNames() []string {
	out := make([]string, len(AllRoles))
	for i, r := range AllRoles {
		out[i] = string(r)
	}
	return out
}

// ValidRole reports whether s names a known role.
func ValidRole(s string) bool {
	for _, r := range AllRoles {
		if string(r) == s {
			return true
		}
	}
	return false
}

// Decision is the outcome of an access check.
type Decision int

const (
	Forbidden Decision = iota
	Allowed
)

// Requirement is a role predicate: the principal must hold at least one of
// the listed roles. A requirement with no roles only demands authentication.
type Requirement struct {
	AnyOf []Role
}

func HasRole(r Role) Requirement { return Requirement{AnyOf: []Role{r}} }

func HasAnyRole(rs ...Role) Requirement { return Requirement{AnyOf: rs} }

// Authenticated is satisfied by any principal.
var Authenticated = Requirement{}

// Check evaluates req against p. There is no implicit administrator bypass;
// ROLE_ADMIN passes only requirements that name it.
func Check(p Principal, req Requirement) Decision {
	if p.Username == "" {
		return Forbidden
	}
	if len(req.AnyOf) == 0 {
		return Allowed
	}
	for _, r := range req.AnyOf {
		if p.HasRole(r) {
			return Allowed
		}
	}
	return Forbidden
}

// Require returns middleware that rejects the request with 403 before the
// handler runs unless the principal satisfies req. The response never depends
// on the target resource.
func Require(req Requirement) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if Check(p, req) != Allowed {
				return echo.NewHTTPError(http.StatusForbidden, "forbidden")
			}
			return next(c)
		}
	}
}

// RequireRole is shorthand for Require(HasAnyRole(roles...)).
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return Require(HasAnyRole(roles...))
}
