package ophthalmology

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/itrust/itrust/internal/domain/officevisit"
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
	clinicians := api.Group("", auth.RequireRole(auth.ClinicianRoles...))
	clinicians.GET("/ophthalmologysurgeries", h.List)

	patients := api.Group("", auth.RequireRole(auth.RolePatient))
	patients.GET("/ophthalmologysurgeries/mine", h.List)
	patients.POST("/ophthalmologysurgeries/patient/view/:id", h.MarkPatientView)

	readers := api.Group("", auth.RequireRole(auth.RoleHCP, auth.RoleOD, auth.RoleOPH, auth.RolePatient))
	readers.GET("/ophthalmologysurgeries/:id", h.Get)

	writers := api.Group("", auth.RequireRole(auth.RoleOPH))
	writers.POST("/ophthalmologysurgeries", h.Create)
	writers.PUT("/ophthalmologysurgeries/:id", h.Update)
	writers.DELETE("/ophthalmologysurgeries/:id", h.Delete)
	writers.POST("/ophthalmologysurgeries/hcp/view/:id", h.MarkHCPView)
}

func (h *Handler) Create(c echo.Context) error {
	var f Form
	if err := c.Bind(&f); err != nil {
		return apperr.Malformed(err)
	}
	s, err := h.svc.Create(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, FormOf(s))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := officevisit.IDParam(c)
	if err != nil {
		return err
	}
	s, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, FormOf(s))
}

func (h *Handler) List(c echo.Context) error {
	items, err := h.svc.List(c.Request().Context())
	if err != nil {
		return err
	}
	forms := make([]Form, len(items))
	for i := range items {
		forms[i] = FormOf(&items[i])
	}
	return c.JSON(http.StatusOK, pagination.Apply(pagination.FromContext(c), forms))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := officevisit.IDParam(c)
	if err != nil {
		return err
	}
	var f Form
	if err := c.Bind(&f); err != nil {
		return apperr.Malformed(err)
	}
	s, err := h.svc.Update(c.Request().Context(), id, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, FormOf(s))
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := officevisit.IDParam(c)
	if err != nil {
		return err
	}
	deleted, err := h.svc.Delete(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, deleted)
}

func (h *Handler) MarkHCPView(c echo.Context) error {
	id, err := officevisit.IDParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.MarkHCPView(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) MarkPatientView(c echo.Context) error {
	id, err := officevisit.IDParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.MarkPatientView(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}
