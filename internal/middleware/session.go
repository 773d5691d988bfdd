package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"genstudio-dashboard/internal/auth"
	"genstudio-dashboard/internal/session"
)

// CookieName carries the signed session token between browser and dashboard.
const CookieName = "gs_session"

const sessionContextKey = "dashboardSession"

// SessionFromContext returns the session resolved by RequireSession.
func SessionFromContext(c *gin.Context) (*session.Session, bool) {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return nil, false
	}
	s, ok := value.(*session.Session)
	return s, ok && s != nil
}

// RequireSession resolves the session cookie to a live session and aborts
// with 401 otherwise. Every authenticated view reads identity through the
// session this middleware resolves; none fetch it on their own.
func RequireSession(sessions *session.Store, cfg auth.TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(CookieName)
		if err != nil || token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
			c.Abort()
			return
		}

		sessionID, err := auth.VerifyToken(token, cfg)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
			c.Abort()
			return
		}

		s, err := sessions.Get(sessionID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
			c.Abort()
			return
		}

		c.Set(sessionContextKey, s)
		c.Next()
	}
}
