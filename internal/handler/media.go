package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"genstudio-dashboard/internal/media"
	"genstudio-dashboard/internal/middleware"
	"genstudio-dashboard/internal/session"
)

// MediaHandler serves authenticated media. The raw file endpoint upstream is
// cookie-gated, so the browser cannot load it directly; every display goes
// through the session's credentialed client here. Each session gets its own
// byte cache, handle store and viewer slots, all dropped at logout.
type MediaHandler struct {
	CacheTTL time.Duration

	mu    sync.Mutex
	state map[string]*sessionMedia
}

type sessionMedia struct {
	loader *media.CachingLoader
	store  *media.Store

	mu      sync.Mutex
	viewers map[string]*media.Viewer
}

func NewMediaHandler(cacheTTL time.Duration) *MediaHandler {
	return &MediaHandler{
		CacheTTL: cacheTTL,
		state:    make(map[string]*sessionMedia),
	}
}

func (h *MediaHandler) forSession(s *session.Session) *sessionMedia {
	h.mu.Lock()
	defer h.mu.Unlock()
	sm, ok := h.state[s.ID]
	if !ok {
		sm = &sessionMedia{
			loader:  media.NewCachingLoader(media.NewLoader(s.Client), h.CacheTTL),
			store:   media.NewStore(),
			viewers: make(map[string]*media.Viewer),
		}
		h.state[s.ID] = sm
	}
	return sm
}

// DropSession closes every viewer and forgets the session's media state.
func (h *MediaHandler) DropSession(sessionID string) {
	h.mu.Lock()
	sm, ok := h.state[sessionID]
	delete(h.state, sessionID)
	h.mu.Unlock()
	if !ok {
		return
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	for _, v := range sm.viewers {
		v.Close()
	}
	sm.viewers = nil
}

// Stream serves the media bytes behind an opaque file path, for direct
// <img src> use against the dashboard origin. All failure causes collapse
// into one 404 "unavailable" answer.
func (h *MediaHandler) Stream(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	filepath := c.Query("f")
	if filepath == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	blob, err := h.forSession(s).loader.Fetch(c.Request.Context(), filepath)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, blob.ContentType, blob.Data)
}

// CreateHandle fetches media and registers it under a handle, the object-URL
// analogue. The caller owns the handle and must release it when the media
// leaves the screen.
func (h *MediaHandler) CreateHandle(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	var body struct {
		Filepath string `json:"filepath"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Filepath == "" {
		respondFail(c, http.StatusBadRequest, "filepath is required")
		return
	}

	sm := h.forSession(s)
	blob, err := sm.loader.Fetch(c.Request.Context(), body.Filepath)
	if err != nil {
		respondFail(c, http.StatusNotFound, "media unavailable")
		return
	}

	handle := sm.store.Acquire(blob)
	respondOK(c, gin.H{"handleId": handle.ID})
}

// ResolveHandle streams the bytes behind a live handle.
func (h *MediaHandler) ResolveHandle(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	blob, ok := h.forSession(s).store.Get(c.Param("id"))
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, blob.ContentType, blob.Data)
}

// ReleaseHandle revokes a handle. Idempotent.
func (h *MediaHandler) ReleaseHandle(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	h.forSession(s).store.Release(c.Param("id"))
	respondOK(c, "released")
}

// ShowView points a named display slot at a file path. Racing requests for
// the same slot are safe: the viewer lets only the most recent one win, so a
// slow fetch can never clobber a newer image.
func (h *MediaHandler) ShowView(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	slot := c.Query("slot")
	filepath := c.Query("f")
	if slot == "" || filepath == "" {
		respondFail(c, http.StatusBadRequest, "slot and f are required")
		return
	}

	sm := h.forSession(s)
	sm.mu.Lock()
	viewer, ok := sm.viewers[slot]
	if !ok {
		viewer = media.NewViewer(sm.loader, sm.store)
		sm.viewers[slot] = viewer
	}
	sm.mu.Unlock()

	viewer.Show(c.Request.Context(), filepath)

	state := viewer.State()
	resp := gin.H{"state": state.String()}
	if handle, ready := viewer.Handle(); ready {
		resp["handleId"] = handle.ID
		resp["filepath"] = handle.Blob.Filepath
	}
	respondOK(c, resp)
}

// CloseView releases the slot's handle and discards any in-flight fetch.
func (h *MediaHandler) CloseView(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	slot := c.Query("slot")
	if slot == "" {
		respondFail(c, http.StatusBadRequest, "slot is required")
		return
	}

	sm := h.forSession(s)
	sm.mu.Lock()
	viewer, ok := sm.viewers[slot]
	delete(sm.viewers, slot)
	sm.mu.Unlock()
	if ok {
		viewer.Close()
	}
	respondOK(c, "closed")
}
