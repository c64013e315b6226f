package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/nexusbot/internal/completion"
	"github.com/yoockh/nexusbot/internal/models"
	"github.com/yoockh/nexusbot/internal/services"
	"github.com/yoockh/nexusbot/internal/token"
	"github.com/yoockh/nexusbot/internal/utils"
)

// WidgetHandler serves the JSON API the widget page calls.
type WidgetHandler struct {
	bots     services.BotService
	sessions services.SessionService
	chat     services.ChatService
	tokens   *token.Signer
}

func NewWidgetHandler(bots services.BotService, sessions services.SessionService, chat services.ChatService, tokens *token.Signer) *WidgetHandler {
	return &WidgetHandler{bots: bots, sessions: sessions, chat: chat, tokens: tokens}
}

type ProfileResponse struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	ThemeColor        string            `json:"theme_color"`
	AvatarURL         string            `json:"avatar_url,omitempty"`
	Greeting          string            `json:"greeting"`
	Lead              models.LeadConfig `json:"lead_config"`
	LeadFields        []string          `json:"lead_fields"`
	SchedulingEnabled bool              `json:"scheduling_enabled"`
}

func (h *WidgetHandler) Profile(c *gin.Context) {
	bot, err := h.bots.Get(c.Request.Context(), c.Param("bot_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	fields := bot.Lead.Fields()
	if fields == nil {
		fields = []string{}
	}
	c.JSON(http.StatusOK, ProfileResponse{
		ID:                bot.ID,
		Name:              bot.Name,
		ThemeColor:        bot.ThemeColor,
		AvatarURL:         bot.AvatarURL,
		Greeting:          bot.Greeting(),
		Lead:              bot.Lead,
		LeadFields:        fields,
		SchedulingEnabled: bot.Scheduling.Enabled,
	})
}

type RestoreRequest struct {
	SessionToken string `json:"session_token"`
}

type RestoreResponse struct {
	SessionToken string           `json:"session_token,omitempty"`
	History      []models.Message `json:"history"`
	ShowLeadForm bool             `json:"show_lead_form"`
}

func (h *WidgetHandler) Restore(c *gin.Context) {
	const op = "WidgetHandler.Restore"

	var req RestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return
	}

	bot, err := h.bots.Get(c.Request.Context(), c.Param("bot_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	// a token from another bot or secret is just a stale cache entry
	sessionID, err := h.tokens.Parse(req.SessionToken, bot.ID)
	if err != nil {
		sessionID = ""
	}

	st, err := h.sessions.RestoreOrInit(c.Request.Context(), bot, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := RestoreResponse{History: st.History, ShowLeadForm: st.ShowLeadForm}
	if st.SessionID != "" {
		// re-issue so the cached value stays bound to this bot
		tok, err := h.tokens.Issue(st.SessionID, bot.ID)
		if err != nil {
			writeError(c, utils.E(utils.CodeInternal, op, "failed to issue session token", err))
			return
		}
		resp.SessionToken = tok
	}
	c.JSON(http.StatusOK, resp)
}

type LeadRequest struct {
	UserData   map[string]string  `json:"user_data"`
	OriginURL  string             `json:"origin_url"`
	ClientInfo *models.ClientInfo `json:"client_info"`
}

type LeadResponse struct {
	SessionToken string `json:"session_token"`
}

func (h *WidgetHandler) SubmitLead(c *gin.Context) {
	const op = "WidgetHandler.SubmitLead"

	var req LeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return
	}

	bot, err := h.bots.Get(c.Request.Context(), c.Param("bot_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	sessionID, err := h.sessions.SubmitLead(c.Request.Context(), bot, services.LeadSubmission{
		UserData:   req.UserData,
		OriginURL:  req.OriginURL,
		ClientInfo: req.ClientInfo,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	tok, err := h.tokens.Issue(sessionID, bot.ID)
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to issue session token", err))
		return
	}
	c.JSON(http.StatusCreated, LeadResponse{SessionToken: tok})
}

type MessageRequest struct {
	SessionToken string             `json:"session_token"`
	Content      string             `json:"content" binding:"required"`
	OriginURL    string             `json:"origin_url"`
	ClientInfo   *models.ClientInfo `json:"client_info"`
	ClientID     string             `json:"client_id"`
	History      []completion.Turn  `json:"history"`
}

type MessageResponse struct {
	SessionToken string              `json:"session_token"`
	UserMessage  models.Message      `json:"user_message"`
	Reply        models.Message      `json:"reply"`
	Appointment  *models.Appointment `json:"appointment,omitempty"`
}

func (h *WidgetHandler) SendMessage(c *gin.Context) {
	const op = "WidgetHandler.SendMessage"

	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return
	}

	bot, err := h.bots.Get(c.Request.Context(), c.Param("bot_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	sessionID, err := h.tokens.Parse(req.SessionToken, bot.ID)
	if err != nil {
		writeError(c, utils.E(utils.CodeForbidden, op, "session does not belong to this bot", err))
		return
	}

	res, err := h.chat.Send(c.Request.Context(), bot, services.SendRequest{
		SessionID:  sessionID,
		Content:    req.Content,
		OriginURL:  req.OriginURL,
		ClientInfo: req.ClientInfo,
		ClientID:   req.ClientID,
		History:    req.History,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	tok, err := h.tokens.Issue(res.SessionID, bot.ID)
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to issue session token", err))
		return
	}
	c.JSON(http.StatusOK, MessageResponse{
		SessionToken: tok,
		UserMessage:  res.UserMessage,
		Reply:        res.Reply,
		Appointment:  res.Appointment,
	})
}
