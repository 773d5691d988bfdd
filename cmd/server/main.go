package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"genstudio-dashboard/internal/auth"
	"genstudio-dashboard/internal/config"
	"genstudio-dashboard/internal/handler"
	"genstudio-dashboard/internal/hub"
	"genstudio-dashboard/internal/server"
	"genstudio-dashboard/internal/session"
	"genstudio-dashboard/internal/watch"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded, relying on process environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	gin.SetMode(cfg.GinMode)

	sessions := session.NewStore(cfg.BackendBaseURL)
	registry := watch.NewRegistry(cfg.PollInterval)
	wsHub := hub.New()
	media := handler.NewMediaHandler(cfg.MediaCacheTTL)

	tokenCfg := auth.TokenConfig{
		Secret: cfg.SessionSecret,
		Expiry: cfg.SessionExpiry,
		Issuer: "genstudio-dashboard",
	}

	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if n := handler.EvictIdleSessions(sessions, registry, media, cfg.SessionExpiry); n > 0 {
				log.Printf("evicted %d idle sessions", n)
			}
		}
	}()

	router := server.NewRouter(server.Deps{
		Sessions:    sessions,
		TokenConfig: tokenCfg,
		Watch:       registry,
		Hub:         wsHub,
		Media:       media,
	})

	log.Printf("listening on %s", fmt.Sprintf(":%d", cfg.Port))
	log.Fatal(server.Run(cfg, router))
}
