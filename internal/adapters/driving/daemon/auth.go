package daemon

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
)

// sessionCookie carries the session token for browser clients.
const sessionCookie = "ragdesk_session"

// sessionKey is the echo context key holding the verified session.
const sessionKey = "session"

// requireSession validates the session token issued by `ragdesk login`.
// The token is read from the Authorization header, the session cookie, or
// the token query parameter, which websocket clients use.
func requireSession(sessions driving.SessionService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok := extractToken(c)
			if tok == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}
			session, err := sessions.Verify(tok)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired session")
			}
			c.Set(sessionKey, session)
			return next(c)
		}
	}
}

func extractToken(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if ck, err := c.Cookie(sessionCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	return c.QueryParam("token")
}
