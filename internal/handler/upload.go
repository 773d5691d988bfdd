package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"genstudio-dashboard/internal/middleware"
)

// UploadHandler proxies reference-image uploads to the backend.
type UploadHandler struct{}

func (h *UploadHandler) Upload(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondFail(c, http.StatusBadRequest, "file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondFail(c, http.StatusBadRequest, "could not read file")
		return
	}
	defer file.Close()

	env, err := s.Client.Upload(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		respondUnreachable(c)
		return
	}
	forward(c, env)
}

// List returns previously uploaded files for the gallery view.
func (h *UploadHandler) List(c *gin.Context) {
	s, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	env, err := s.Client.Uploads(c.Request.Context())
	if err != nil {
		respondUnreachable(c)
		return
	}
	forward(c, env)
}
