package emergency

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/itrust/itrust/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleER, auth.RoleHCP))
	g.GET("/emergencyhealthrecords/:patient", h.Get)
}

func (h *Handler) Get(c echo.Context) error {
	patient := c.Param("patient")
	if c.Request().URL.RawPath != "" {
		if p, err := url.PathUnescape(patient); err == nil {
			patient = p
		}
	}
	rec, err := h.svc.Get(c.Request().Context(), patient)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}
