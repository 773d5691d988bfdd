package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"genstudio-dashboard/internal/model"
)

// The dashboard API mirrors the backend's {code, data} envelope so the
// frontend branches on one shape everywhere.

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": model.CodeOK, "data": data})
}

func respondFail(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, gin.H{"code": code, "data": message})
}

// forward passes a backend envelope through untouched. Application-level
// failures stay failures for the browser to display; nothing is retried
// here.
func forward(c *gin.Context, env model.Envelope) {
	c.JSON(http.StatusOK, env)
}

// respondUnreachable is the one transport-failure shape: the backend could
// not be reached at all.
func respondUnreachable(c *gin.Context) {
	c.JSON(http.StatusBadGateway, gin.H{"code": http.StatusBadGateway, "data": "generation service unreachable"})
}
