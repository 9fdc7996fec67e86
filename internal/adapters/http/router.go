// Package http is the local control surface: external collaborators (UI,
// tooling) observe state and dispatch commands into the core through it.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avetan/studio/internal/app"
	"github.com/avetan/studio/internal/config"
)

// NewControlToken generates the bearer token required by the control API.
func NewControlToken() string {
	return uuid.NewString()
}

func authMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer "+token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func SetupRouter(cfg *config.Config, agent *app.Agent, token string) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	h := &controlHandlers{agent: agent}

	api := r.Group("/api", authMiddleware(token))
	{
		api.GET("/state", h.state)
		api.GET("/devices", h.devices)
		api.POST("/join", h.join)
		api.POST("/leave", h.leave)
		api.POST("/recording/start", h.startRecording)
		api.POST("/recording/stop", h.stopRecording)
		api.POST("/tracks/:kind", h.setTrack)
	}

	log.Info().Str("module", "adapters.http").Msg("control router setup")
	return r
}
