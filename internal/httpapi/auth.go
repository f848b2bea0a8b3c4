package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/auth"
)

func (s *Server) requireAdmin() echo.MiddlewareFunc {
	hash := strings.TrimSpace(s.opts.AdminTokenHash)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if hash == "" {
				if s.opts.AllowOpenAdmin {
					return next(c)
				}
				return fail(c, http.StatusForbidden, "Admin access is not configured", nil)
			}

			token, ok := auth.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok || !auth.VerifyToken(token, hash) {
				return unauthorizedResponse(c)
			}
			return next(c)
		}
	}
}

func unauthorizedResponse(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="admin"`)
	return fail(c, http.StatusUnauthorized, "Authentication required", nil)
}
