package services

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/nexusbot/internal/models"
	"github.com/yoockh/nexusbot/internal/records"
	"github.com/yoockh/nexusbot/internal/utils"
	"gorm.io/datatypes"
)

const LeadPreviewText = "Lead form submitted"

// InitState is what the widget needs to render its first view.
type InitState struct {
	SessionID    string           `json:"session_id,omitempty"` // empty until a session exists
	History      []models.Message `json:"history"`
	ShowLeadForm bool             `json:"show_lead_form"`
}

type LeadSubmission struct {
	UserData   map[string]string
	OriginURL  string
	ClientInfo *models.ClientInfo
}

type SessionService interface {
	// RestoreOrInit resumes cachedSessionID or decides whether the lead gate opens.
	RestoreOrInit(ctx context.Context, bot *models.BotProfile, cachedSessionID string) (InitState, error)
	// SubmitLead validates the capture form and creates the session right away.
	SubmitLead(ctx context.Context, bot *models.BotProfile, sub LeadSubmission) (string, error)
	// EnsureSession returns sessionID when it is already persisted, otherwise creates one.
	// Failures yield models.TempSessionID.
	EnsureSession(ctx context.Context, bot *models.BotProfile, sessionID, firstMessage, originURL string, ci *models.ClientInfo) (id string, created bool)
	History(ctx context.Context, sessionID string) ([]models.Message, error)
	// LeadData returns the captured lead fields of a session, or an empty map.
	LeadData(ctx context.Context, sessionID string) datatypes.JSONMap
}

type sessionService struct {
	store    records.Store
	validate *validator.Validate
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewSessionService(store records.Store, log logrus.FieldLogger) SessionService {
	return &sessionService{
		store:    store,
		validate: validator.New(),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *sessionService) RestoreOrInit(ctx context.Context, bot *models.BotProfile, cachedSessionID string) (InitState, error) {
	const op = "SessionService.RestoreOrInit"

	if bot == nil {
		return InitState{}, utils.E(utils.CodeInvalidArgument, op, "bot is required", nil)
	}
	if !s.store.Connected() {
		return InitState{}, utils.E(utils.CodeUnavailable, op, NotConnectedMessage, records.ErrNotConnected)
	}

	cachedSessionID = strings.TrimSpace(cachedSessionID)
	if storedSessionID(cachedSessionID) && s.ownsSession(ctx, bot.ID, cachedSessionID) {
		history, err := s.History(ctx, cachedSessionID)
		if err != nil {
			s.log.WithError(err).WithField("session_id", cachedSessionID).Warn("history fetch failed")
			history = []models.Message{}
		}
		return InitState{SessionID: cachedSessionID, History: history}, nil
	}

	return InitState{History: []models.Message{}, ShowLeadForm: bot.Lead.Enabled}, nil
}

// ownsSession is false only when the store answered and the session is gone or
// belongs to another bot. Query errors keep the cached id.
func (s *sessionService) ownsSession(ctx context.Context, botID, sessionID string) bool {
	var rows []models.Session
	err := s.store.Select(ctx, models.CollectionSessions, records.Where(records.Eq("id", sessionID)).Take(1), &rows)
	if err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("session lookup failed")
		return true
	}
	if len(rows) == 0 || rows[0].ChatbotID != botID {
		s.log.WithFields(logrus.Fields{"session_id": sessionID, "bot_id": botID}).Info("discarding stale cached session")
		return false
	}
	return true
}

func (s *sessionService) History(ctx context.Context, sessionID string) ([]models.Message, error) {
	var out []models.Message
	q := records.Where(records.Eq("session_id", sessionID)).OrderBy(records.Asc("created_at"))
	if err := s.store.Select(ctx, models.CollectionMessages, q, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Message{}
	}
	return out, nil
}

func (s *sessionService) SubmitLead(ctx context.Context, bot *models.BotProfile, sub LeadSubmission) (string, error) {
	const op = "SessionService.SubmitLead"

	if bot == nil {
		return "", utils.E(utils.CodeInvalidArgument, op, "bot is required", nil)
	}
	if !bot.Lead.Enabled {
		return "", utils.E(utils.CodeInvalidArgument, op, "lead capture is disabled for this bot", nil)
	}
	data, err := s.validateLead(bot.Lead, sub.UserData)
	if err != nil {
		return "", utils.E(utils.CodeInvalidArgument, op, err.Error(), nil)
	}
	if err := checkOrigin(bot, sub.OriginURL); err != nil {
		return "", utils.E(utils.CodeForbidden, op, "this site may not embed the widget", err)
	}

	sess := models.Session{
		ID:          uuid.NewString(),
		ChatbotID:   bot.ID,
		CreatedAt:   s.now(),
		PreviewText: LeadPreviewText,
		OriginURL:   strings.TrimSpace(sub.OriginURL),
		UserData:    data,
		ClientInfo:  sub.ClientInfo,
	}
	if err := s.store.Insert(ctx, models.CollectionSessions, &sess); err != nil {
		s.log.WithError(err).WithField("bot_id", bot.ID).Warn("lead session insert failed")
		return models.TempSessionID, nil
	}
	return sess.ID, nil
}

type inputError string

func (e inputError) Error() string { return string(e) }

// validateLead keeps the configured fields only and checks the required ones.
func (s *sessionService) validateLead(cfg models.LeadConfig, in map[string]string) (datatypes.JSONMap, error) {
	get := func(k string) string { return strings.TrimSpace(in[k]) }

	out := datatypes.JSONMap{}
	check := func(label string, required bool, rule string) error {
		v := get(label)
		if v == "" {
			if required {
				return inputError(label + " is required")
			}
			return nil
		}
		if rule != "" {
			if err := s.validate.Var(v, rule); err != nil {
				return inputError(label + " is invalid")
			}
		}
		out[label] = v
		return nil
	}

	if err := check(models.LeadFieldName, cfg.NameRequired, "max=200"); err != nil {
		return nil, err
	}
	if err := check(models.LeadFieldEmail, cfg.EmailRequired, "email"); err != nil {
		return nil, err
	}
	if err := check(models.LeadFieldPhone, cfg.PhoneRequired, "max=40"); err != nil {
		return nil, err
	}
	if cfg.CustomField != "" {
		if err := check(cfg.CustomField, true, "max=500"); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *sessionService) EnsureSession(ctx context.Context, bot *models.BotProfile, sessionID, firstMessage, originURL string, ci *models.ClientInfo) (string, bool) {
	if storedSessionID(sessionID) {
		return sessionID, false
	}

	sess := models.Session{
		ID:          uuid.NewString(),
		ChatbotID:   bot.ID,
		CreatedAt:   s.now(),
		PreviewText: models.Preview(firstMessage),
		OriginURL:   strings.TrimSpace(originURL),
		ClientInfo:  ci,
	}
	if err := s.store.Insert(ctx, models.CollectionSessions, &sess); err != nil {
		s.log.WithError(err).WithField("bot_id", bot.ID).Warn("session insert failed, continuing in memory")
		return models.TempSessionID, false
	}
	return sess.ID, true
}

func (s *sessionService) LeadData(ctx context.Context, sessionID string) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	if !storedSessionID(sessionID) {
		return out
	}
	var rows []models.Session
	if err := s.store.Select(ctx, models.CollectionSessions, records.Where(records.Eq("id", sessionID)).Take(1), &rows); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("lead data lookup failed")
		return out
	}
	if len(rows) > 0 && rows[0].UserData != nil {
		return rows[0].UserData
	}
	return out
}

// storedSessionID reports whether id can name a stored session. Every row id is
// a UUID, so anything else cached by a widget is treated as no session at all.
func storedSessionID(id string) bool {
	if !models.IsPersistedSessionID(id) {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// checkOrigin enforces the bot's embed allow-list against the host page URL.
func checkOrigin(bot *models.BotProfile, pageURL string) error {
	if len(bot.AllowedOrigins) == 0 {
		return nil
	}
	origin := ""
	if u, err := url.Parse(strings.TrimSpace(pageURL)); err == nil && u.Scheme != "" && u.Host != "" {
		origin = u.Scheme + "://" + u.Host
	}
	if origin == "" || !bot.AllowsOrigin(origin) {
		return inputError("origin " + origin + " not allowed")
	}
	return nil
}
