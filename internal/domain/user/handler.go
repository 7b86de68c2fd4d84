package user

import (
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/itrust/itrust/internal/platform/apperr"
	"github.com/itrust/itrust/internal/platform/auth"
	"github.com/itrust/itrust/internal/platform/validation"
	"github.com/itrust/itrust/pkg/pagination"
)

type Handler struct {
	svc    *Service
	tokens *auth.TokenIssuer
}

func NewHandler(svc *Service, tokens *auth.TokenIssuer) *Handler {
	return &Handler{svc: svc, tokens: tokens}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/login", h.Login)
	api.GET("/auth/self", h.Self, auth.Require(auth.Authenticated))

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/users", h.List)
	admin.GET("/users/:username", h.Get)
	admin.POST("/users", h.Create)
	admin.PUT("/users/:username", h.Update)
	admin.DELETE("/users/:username", h.Delete)
}

func usernameParam(c echo.Context) string {
	raw := c.Param("username")
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
	u, err := h.svc.Create(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) Get(c echo.Context) error {
	u, err := h.svc.Get(c.Request().Context(), usernameParam(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
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
	u, err := h.svc.Update(c.Request().Context(), usernameParam(c), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) Delete(c echo.Context) error {
	username, err := h.svc.Delete(c.Request().Context(), usernameParam(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, username)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginRules bound the username like account names so a failed attempt
// always fits its audit entry.
var loginRules = validation.Rules{
	validation.Required("username"),
	validation.MaxLength("username", 20),
	validation.Required("password"),
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	Username  string      `json:"username"`
	Roles     []auth.Role `json:"roles"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Malformed(err)
	}
	if err := loginRules.Check(validation.Values{"username": req.Username, "password": req.Password}); err != nil {
		return err
	}

	p, err := h.svc.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	token, exp, err := h.tokens.Issue(p)
	if err != nil {
		return apperr.Internal("issue token", err)
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, Username: p.Username, Roles: p.Roles})
}

func (h *Handler) Self(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return apperr.Unauthorized("authentication required")
	}
	return c.JSON(http.StatusOK, p)
}
