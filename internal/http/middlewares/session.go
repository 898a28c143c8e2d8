package middlewares

import (
	"net/http"

	"github.com/geocoder89/bienesraices/internal/auth"
	"github.com/gin-gonic/gin"
)

const (
	SessionCookieName = "_token"
	LoginPath         = "/auth/login"
)

// Keep this small interface so tests can fake it easily.
type SessionVerifier interface {
	VerifySessionToken(token string) (*auth.Claims, error)
}

type SessionMiddleware struct {
	sessions SessionVerifier
}

func NewSessionMiddleware(sessions SessionVerifier) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions}
}

// RequireSession sends anonymous visitors to the login page.
func (m *SessionMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(SessionCookieName)
		if err != nil || raw == "" {
			c.Redirect(http.StatusFound, LoginPath)
			c.Abort()
			return
		}

		claims, err := m.sessions.VerifySessionToken(raw)
		if err != nil {
			ClearSessionCookie(c)
			c.Redirect(http.StatusFound, LoginPath)
			c.Abort()
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxUserName, claims.Name)

		c.Next()
	}
}

func SetSessionCookie(c *gin.Context, token string, maxAge int, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, token, maxAge, "/", "", secure, true)
}

func ClearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", false, true)
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	id := c.GetString(CtxUserID)
	return id, id != ""
}

func UserNameFromContext(c *gin.Context) string {
	return c.GetString(CtxUserName)
}
