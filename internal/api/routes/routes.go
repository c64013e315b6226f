package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yoockh/nexusbot/internal/api/handlers"
)

type Deps struct {
	Page   *handlers.PageHandler
	Widget *handlers.WidgetHandler
	WS     *handlers.WSHandler

	// RateLimit guards the widget API; nil disables it.
	RateLimit gin.HandlerFunc
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Embed surface
	r.GET("/", d.Page.Index)
	r.GET("/widget.js", d.Page.Bridge)

	api := r.Group("/api/widget")
	if d.RateLimit != nil {
		api.Use(d.RateLimit)
	}
	api.GET("/bots/:bot_id", d.Widget.Profile)
	api.POST("/bots/:bot_id/restore", d.Widget.Restore)
	api.POST("/bots/:bot_id/leads", d.Widget.SubmitLead)
	api.POST("/bots/:bot_id/messages", d.Widget.SendMessage)

	// WebSocket
	if d.WS != nil {
		r.GET("/ws/widget/sessions/:session_token", d.WS.SessionEvents)
	}
}
