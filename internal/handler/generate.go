package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"genstudio-dashboard/internal/middleware"
	"genstudio-dashboard/internal/model"
	"genstudio-dashboard/internal/session"
)

// GenerateHandler submits generation requests. A successful submission means
// a new running task exists, so the poller is armed right away off a fresh
// snapshot instead of waiting for the next task-list view.
type GenerateHandler struct {
	Projects *ProjectHandler
}

func (h *GenerateHandler) Image(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	var req model.GenerateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "invalid generation request")
		return
	}
	if req.Prompt == "" || req.Model == "" || req.ProjectID <= 0 {
		respondFail(c, http.StatusBadRequest, "prompt, model and project_id are required")
		return
	}

	env, err := s.Client.GenerateImage(c.Request.Context(), req)
	if err != nil {
		respondUnreachable(c)
		return
	}
	if env.OK() {
		h.armPoller(c, s, req.ProjectID)
	}
	forward(c, env)
}

func (h *GenerateHandler) Video(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	var req model.GenerateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "invalid generation request")
		return
	}
	if req.Prompt == "" || req.Model == "" || req.ProjectID <= 0 {
		respondFail(c, http.StatusBadRequest, "prompt, model and project_id are required")
		return
	}

	env, err := s.Client.GenerateVideo(c.Request.Context(), req)
	if err != nil {
		respondUnreachable(c)
		return
	}
	if env.OK() {
		h.armPoller(c, s, req.ProjectID)
	}
	forward(c, env)
}

func (h *GenerateHandler) armPoller(c *gin.Context, s *session.Session, projectID int64) {
	if h.Projects == nil {
		return
	}
	tasks, err := s.Client.FetchTasks(c.Request.Context(), projectID)
	if err != nil {
		// The submission went through; the next task-list view re-arms.
		return
	}
	h.Projects.observe(s, projectID, tasks)
}
