package hospital

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/itrust/itrust/internal/platform/apperr"
	"github.com/itrust/itrust/internal/platform/auth"
	"github.com/itrust/itrust/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Any signed-in user may browse hospitals.
	readGroup := api.Group("", auth.Require(auth.Authenticated))
	readGroup.GET("/hospitals", h.List)
	readGroup.GET("/hospitals/:name", h.Get)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	writeGroup.POST("/hospitals", h.Create)
	writeGroup.PUT("/hospitals/:name", h.Update)
	writeGroup.DELETE("/hospitals/:name", h.Delete)
}

// nameParam returns the decoded name. Echo routes on the raw path, and so
// leaves escapes in params, only when the request carried a RawPath.
func nameParam(c echo.Context) string {
	raw := c.Param("name")
	if c.Request().URL.RawPath == "" {
		return raw
	}
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

func (h *Handler) Create(c echo.Context) error {
	var f Form
	if err := c.Bind(&f); err != nil {
		return apperr.Malformed(err)
	}
	hosp, err := h.svc.Create(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hosp)
}

func (h *Handler) Get(c echo.Context) error {
	hosp, err := h.svc.Get(c.Request().Context(), nameParam(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hosp)
}

func (h *Handler) List(c echo.Context) error {
	items, err := h.svc.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.Apply(pagination.FromContext(c), items))
}

func (h *Handler) Update(c echo.Context) error {
	var f Form
	if err := c.Bind(&f); err != nil {
		return apperr.Malformed(err)
	}
	hosp, err := h.svc.Update(c.Request().Context(), nameParam(c), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hosp)
}

func (h *Handler) Delete(c echo.Context) error {
	name, err := h.svc.Delete(c.Request().Context(), nameParam(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, name)
}
