package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller of a request.
type Principal struct {
	Username string `json:"username"`
	Roles    []Role `json:"roles"`
}

func (p Principal) HasRole(r Role) bool {
	for _, have := range p.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// IsClinician reports whether p holds a role that sees visits as a provider.
func (p Principal) IsClinician() bool {
	for _, r := range ClinicianRoles {
		if p.HasRole(r) {
			return true
		}
	}
	return false
}

// System is the principal used for work not triggered by a user request,
// such as fixture seeding.
var System = Principal{Username: "system", Roles: []Role{RoleAdmin}}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok && p.Username != ""
}

// ActorFromContext returns the username of the current principal, or
// "anonymous".
func ActorFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.Username
	}
	return "anonymous"
}

// Claims are the JWT claims minted by TokenIssuer.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

type JWTConfig struct {
	Issuer     string
	SigningKey []byte
}

// PublicPaths are reachable without credentials.
var PublicPaths = []string{"/health", "/api/v1/auth/login"}

func isPublic(path string) bool {
	for _, p := range PublicPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func parseBearer(c echo.Context, cfg JWTConfig) (Principal, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}

	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	}, opts...)
	if err != nil || !token.Valid || claims.Subject == "" {
		return Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	p := Principal{Username: claims.Subject}
	for _, r := range claims.Roles {
		if ValidRole(r) {
			p.Roles = append(p.Roles, Role(r))
		}
	}
	return p, nil
}

func setPrincipal(c echo.Context, p Principal) {
	c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
	c.Set("user", p.Username)
}

// JWTMiddleware authenticates every non-public request with an HS256 bearer
// token and stores the principal on the request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isPublic(c.Request().URL.Path) {
				return next(c)
			}
			p, err := parseBearer(c, cfg)
			if err != nil {
				return err
			}
			setPrincipal(c, p)
			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development. A bearer
// token is still honoured when present; otherwise the principal comes from
// the X-Dev-User and X-Dev-Roles headers, defaulting to an administrator.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isPublic(c.Request().URL.Path) {
				return next(c)
			}
			if c.Request().Header.Get("Authorization") != "" {
				p, err := parseBearer(c, cfg)
				if err != nil {
					return err
				}
				setPrincipal(c, p)
				return next(c)
			}

			p := Principal{Username: "dev-admin", Roles: []Role{RoleAdmin}}
			if u := c.Request().Header.Get("X-Dev-User"); u != "" {
				p.Username = u
				p.Roles = nil
				for _, r := range strings.Split(c.Request().Header.Get("X-Dev-Roles"), ",") {
					if r = strings.TrimSpace(r); ValidRole(r) {
						p.Roles = append(p.Roles, Role(r))
					}
				}
			}
			setPrincipal(c, p)
			return next(c)
		}
	}
}
