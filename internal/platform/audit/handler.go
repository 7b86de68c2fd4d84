package audit

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/itrust/itrust/internal/platform/apperr"
	"github.com/itrust/itrust/internal/platform/auth"
	"github.com/itrust/itrust/pkg/pagination"
)

type Handler struct {
	log *Logger
}

func NewHandler(log *Logger) *Handler {
	return &Handler{log: log}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleAdmin))
	g.GET("/auditlog", h.Search)
}

// Search lists audit entries newest first, filtered by actor, target, type
// and an RFC 3339 time range.
func (h *Handler) Search(c echo.Context) error {
	f := Filter{
		Actor:  c.QueryParam("actor"),
		Target: c.QueryParam("target"),
		Type:   TransactionType(c.QueryParam("type")),
	}

	var violations []apperr.Violation
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"start", &f.Start}, {"end", &f.End}} {
		raw := c.QueryParam(p.name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			violations = append(violations, apperr.Violation{
				Field: p.name, Constraint: "timestamp", Message: "must be an RFC 3339 timestamp",
			})
			continue
		}
		*p.dst = &ts
	}
	if len(violations) > 0 {
		return apperr.Invalid(violations...)
	}

	pg := pagination.FromContext(c)
	if !pg.Set {
		pg = pagination.Params{Limit: pagination.DefaultLimit, Set: true}
	}
	f.Limit, f.Offset = pg.Limit, pg.Offset

	entries, total, err := h.log.Query(c.Request().Context(), f)
	if err != nil {
		return apperr.Internal("could not query audit log", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg.Limit, pg.Offset))
}
