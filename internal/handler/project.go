package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"genstudio-dashboard/internal/hub"
	"genstudio-dashboard/internal/middleware"
	"genstudio-dashboard/internal/model"
	"genstudio-dashboard/internal/session"
	"genstudio-dashboard/internal/watch"
)

// ProjectHandler proxies project CRUD and task listings to the backend.
type ProjectHandler struct {
	Watch *watch.Registry
	Hub   *hub.Hub
}

func (h *ProjectHandler) List(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	env, err := s.Client.Projects(c.Request.Context())
	if err != nil {
		respondUnreachable(c)
		return
	}
	forward(c, env)
}

func (h *ProjectHandler) Create(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	var body struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Title == "" {
		respondFail(c, http.StatusBadRequest, "title is required")
		return
	}

	env, err := s.Client.CreateProject(c.Request.Context(), body.Title)
	if err != nil {
		respondUnreachable(c)
		return
	}
	forward(c, env)
}

// Tasks returns the project's task list and, when the snapshot contains
// running work, arms the polling loop that keeps pushing fresh snapshots
// over the session's WebSocket until everything is terminal.
func (h *ProjectHandler) Tasks(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	projectID, valid := projectIDParam(c)
	if !valid {
		return
	}

	env, err := s.Client.ProjectTasks(c.Request.Context(), projectID)
	if err != nil {
		respondUnreachable(c)
		return
	}

	if env.OK() {
		var body struct {
			Tasks []model.Task `json:"tasks"`
		}
		if decodeErr := env.Decode(&body); decodeErr == nil {
			h.observe(s, projectID, body.Tasks)
		}
	}
	forward(c, env)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	projectID, valid := projectIDParam(c)
	if !valid {
		return
	}

	env, err := s.Client.DeleteProject(c.Request.Context(), projectID)
	if err != nil {
		respondUnreachable(c)
		return
	}
	forward(c, env)
}

// observe applies the level-triggered re-arm rule for a fetched snapshot.
func (h *ProjectHandler) observe(s *session.Session, projectID int64, tasks []model.Task) {
	if h.Watch == nil {
		return
	}
	client := s.Client
	sessionID := s.ID
	h.Watch.Observe(sessionID, projectID, tasks,
		func(ctx context.Context) ([]model.Task, error) {
			return client.FetchTasks(ctx, projectID)
		},
		func(snapshot []model.Task) {
			if h.Hub != nil {
				h.Hub.PublishTasks(sessionID, projectID, snapshot)
			}
		},
	)
}

func projectIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondFail(c, http.StatusBadRequest, "invalid project id")
		return 0, false
	}
	return id, true
}
