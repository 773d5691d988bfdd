package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"genstudio-dashboard/internal/auth"
	"genstudio-dashboard/internal/handler"
	"genstudio-dashboard/internal/hub"
	"genstudio-dashboard/internal/middleware"
	"genstudio-dashboard/internal/session"
	"genstudio-dashboard/internal/watch"
)

type Deps struct {
	Sessions    *session.Store
	TokenConfig auth.TokenConfig
	Watch       *watch.Registry
	Hub         *hub.Hub
	Media       *handler.MediaHandler
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	loginLimiter := middleware.NewRateLimiter(10, time.Minute)
	authHandler := &handler.AuthHandler{
		Sessions:     deps.Sessions,
		TokenConfig:  deps.TokenConfig,
		LoginLimiter: loginLimiter,
		Watch:        deps.Watch,
		Media:        deps.Media,
	}

	r.POST("/api/auth/login", authHandler.Login)
	r.POST("/api/auth/register", authHandler.Register)

	protected := r.Group("/api")
	protected.Use(middleware.RequireSession(deps.Sessions, deps.TokenConfig))

	protected.POST("/auth/logout", authHandler.Logout)
	protected.GET("/auth/me", authHandler.Me)
	protected.POST("/auth/refresh", authHandler.Refresh)

	projectHandler := &handler.ProjectHandler{Watch: deps.Watch, Hub: deps.Hub}
	protected.GET("/projects", projectHandler.List)
	protected.POST("/projects", projectHandler.Create)
	protected.DELETE("/projects/:id", projectHandler.Delete)
	protected.GET("/projects/:id/tasks", projectHandler.Tasks)

	generateHandler := &handler.GenerateHandler{Projects: projectHandler}
	protected.POST("/generate/image", generateHandler.Image)
	protected.POST("/generate/video", generateHandler.Video)

	uploadHandler := &handler.UploadHandler{}
	protected.POST("/uploads", uploadHandler.Upload)
	protected.GET("/uploads", uploadHandler.List)

	protected.GET("/media", deps.Media.Stream)
	protected.POST("/media/handles", deps.Media.CreateHandle)
	protected.GET("/media/handles/:id", deps.Media.ResolveHandle)
	protected.DELETE("/media/handles/:id", deps.Media.ReleaseHandle)
	protected.GET("/media/view", deps.Media.ShowView)
	protected.DELETE("/media/view", deps.Media.CloseView)

	wsHandler := &handler.WebSocketHandler{Hub: deps.Hub, Sessions: deps.Sessions, TokenConfig: deps.TokenConfig}
	r.GET("/ws", wsHandler.Serve)

	return r
}
