package handlers

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/nexusbot/internal/services"
	"github.com/yoockh/nexusbot/internal/utils"
	"github.com/yoockh/nexusbot/internal/widget"
)

// PageHandler serves the bridge script and the page loaded inside the iframe.
type PageHandler struct {
	bots     services.BotService
	renderer *widget.Renderer
	log      logrus.FieldLogger
}

func NewPageHandler(bots services.BotService, renderer *widget.Renderer, log logrus.FieldLogger) *PageHandler {
	return &PageHandler{bots: bots, renderer: renderer, log: log}
}

func (h *PageHandler) Bridge(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", h.renderer.Bridge())
}

// Index renders the widget for embed boots and a banner otherwise.
func (h *PageHandler) Index(c *gin.Context) {
	params := widget.ParseBootParams(c.Request.URL.Query())
	if !params.Valid() {
		c.JSON(http.StatusOK, gin.H{"service": "nexusbot", "bridge": "/widget.js"})
		return
	}

	bot, err := h.bots.Get(c.Request.Context(), params.BotID)
	if err != nil {
		data := widget.PageData{Unavailable: true}
		if utils.IsCode(err, utils.CodeUnavailable) {
			data.Notice = services.NotConnectedMessage
		}
		h.render(c, utils.HTTPStatus(err), data)
		return
	}

	if len(bot.AllowedOrigins) > 0 {
		c.Header("Content-Security-Policy", "frame-ancestors "+strings.Join(bot.AllowedOrigins, " "))
	}

	fields := []string{}
	if bot.Lead.Enabled {
		fields = bot.Lead.Fields()
	}
	h.render(c, http.StatusOK, widget.PageData{Config: widget.PageConfig{
		BotID:      bot.ID,
		Name:       bot.Name,
		ThemeColor: bot.ThemeColor,
		AvatarURL:  bot.AvatarURL,
		Greeting:   bot.Greeting(),
		LeadFields: fields,
		Origin:     params.Origin,
	}})
}

func (h *PageHandler) render(c *gin.Context, status int, data widget.PageData) {
	var buf bytes.Buffer
	if err := h.renderer.RenderPage(&buf, data); err != nil {
		h.log.WithError(err).Error("widget page render failed")
		c.String(http.StatusInternalServerError, "widget unavailable")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}
