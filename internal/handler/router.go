package handler

import (
	"medcom_capture/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Register вешает API управления захватом на роутер.
func (h *Handlers) Register(router gin.IRouter, auth *middleware.AuthMiddleware) {
	router.GET("/health", h.Health.Check)

	api := router.Group("/api/v1")
	api.Use(auth.RequireControlToken())
	{
		api.GET("/info", h.Health.Info)

		recording := api.Group("/recording")
		{
			recording.GET("", h.Recording.Get)
			recording.POST("/start", h.Recording.Start)
			recording.POST("/stop", h.Recording.Stop)
		}
		api.GET("/recordings", h.Catalog.Recordings)

		scanner := api.Group("/scanner")
		{
			scanner.GET("", h.Scanner.Get)
			scanner.POST("/begin", h.Scanner.Begin)
			scanner.POST("/cancel", h.Scanner.Cancel)
			scanner.GET("/history", h.Scanner.History)
			scanner.GET("/events", h.Events.HandleEvents)
		}

		conference := api.Group("/conference")
		{
			conference.POST("/resolve", h.Conference.Resolve)
			conference.POST("/token", h.Conference.Token)
		}
	}
}
