package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"genstudio-dashboard/internal/auth"
	"genstudio-dashboard/internal/middleware"
	"genstudio-dashboard/internal/session"
	"genstudio-dashboard/internal/watch"
)

// AuthHandler owns the session lifecycle endpoints.
type AuthHandler struct {
	Sessions     *session.Store
	TokenConfig  auth.TokenConfig
	LoginLimiter *middleware.RateLimiter
	Watch        *watch.Registry
	Media        *MediaHandler
}

type credentialsBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login creates a fresh dashboard session, authenticates it upstream and, on
// success, hands the browser a signed session cookie. A failed login leaves
// no session behind.
func (h *AuthHandler) Login(c *gin.Context) {
	if h.LoginLimiter != nil && !h.LoginLimiter.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
		return
	}

	var body credentialsBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Username == "" || body.Password == "" {
		respondFail(c, http.StatusBadRequest, "username and password are required")
		return
	}

	s, err := h.Sessions.Create()
	if err != nil {
		respondFail(c, http.StatusInternalServerError, "could not create session")
		return
	}

	result, err := s.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		h.Sessions.Delete(s.ID)
		respondUnreachable(c)
		return
	}
	if !result.Success {
		h.Sessions.Delete(s.ID)
		respondOK(c, result)
		return
	}

	token, err := auth.CreateToken(s.ID, h.TokenConfig)
	if err != nil {
		h.Sessions.Delete(s.ID)
		respondFail(c, http.StatusInternalServerError, "could not issue session token")
		return
	}

	c.SetCookie(middleware.CookieName, token, int(h.TokenConfig.Expiry.Seconds()), "/", "", false, true)
	respondOK(c, gin.H{"success": true, "message": result.Message, "user": s.User()})
}

// Register creates an account upstream. It does not authenticate: the
// browser logs in afterwards, so the session used here is ephemeral.
func (h *AuthHandler) Register(c *gin.Context) {
	if h.LoginLimiter != nil && !h.LoginLimiter.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
		return
	}

	var body credentialsBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Username == "" || body.Password == "" {
		respondFail(c, http.StatusBadRequest, "username and password are required")
		return
	}

	s, err := h.Sessions.Create()
	if err != nil {
		respondFail(c, http.StatusInternalServerError, "could not create session")
		return
	}
	defer h.Sessions.Delete(s.ID)

	result, err := s.Register(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		respondUnreachable(c)
		return
	}
	respondOK(c, result)
}

// Logout tears the session down locally: CSRF cache, user record, pollers,
// media handles and the session itself. No backend endpoint is called; the
// upstream cookie dies with the session's jar.
func (h *AuthHandler) Logout(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	s.Logout()
	if h.Watch != nil {
		h.Watch.StopSession(s.ID)
	}
	if h.Media != nil {
		h.Media.DropSession(s.ID)
	}
	h.Sessions.Delete(s.ID)

	c.SetCookie(middleware.CookieName, "", -1, "/", "", false, true)
	respondOK(c, "logged out")
}

// EvictIdleSessions tears down sessions idle past maxIdle with the same
// cleanup Logout performs: pollers stopped, media handles released, the
// session and its cookie jar dropped. Browsers rarely log out, the cookie
// just expires, so this is how most sessions actually end.
func EvictIdleSessions(sessions *session.Store, registry *watch.Registry, media *MediaHandler, maxIdle time.Duration) int {
	evicted := sessions.SweepIdle(maxIdle)
	for _, s := range evicted {
		s.Logout()
		if registry != nil {
			registry.StopSession(s.ID)
		}
		if media != nil {
			media.DropSession(s.ID)
		}
	}
	return len(evicted)
}

// Me reports the session's identity, resolving it on first use. This is the
// single source of truth every view reads; the state machine runs
// unknown -> authenticated | anonymous.
func (h *AuthHandler) Me(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	if s.State() == session.StateUnknown {
		if err := s.RefreshUser(c.Request.Context()); err != nil {
			respondUnreachable(c)
			return
		}
	}
	respondOK(c, gin.H{"state": s.State(), "user": s.User()})
}

// Refresh forces an identity re-fetch, used by the profile view after
// point-consuming operations.
func (h *AuthHandler) Refresh(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	if err := s.RefreshUser(c.Request.Context()); err != nil {
		respondUnreachable(c)
		return
	}
	respondOK(c, gin.H{"state": s.State(), "user": s.User()})
}
