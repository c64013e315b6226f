package services

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/nexusbot/internal/cache"
	"github.com/yoockh/nexusbot/internal/models"
	"github.com/yoockh/nexusbot/internal/records"
	"github.com/yoockh/nexusbot/internal/utils"
)

// NotConnectedMessage is shown inline when the service has no records backend.
const NotConnectedMessage = "No database connected. Configure the records store to use this widget."

type BotService interface {
	Get(ctx context.Context, botID string) (*models.BotProfile, error)
}

type botService struct {
	store    records.Store
	cache    cache.Cache
	ttl      time.Duration
	defaults models.ProfileDefaults
	log      logrus.FieldLogger
}

// NewBotService loads profiles through an optional cache; c may be nil.
func NewBotService(store records.Store, c cache.Cache, ttl time.Duration, defaults models.ProfileDefaults, log logrus.FieldLogger) BotService {
	return &botService{store: store, cache: c, ttl: ttl, defaults: defaults, log: log}
}

func (s *botService) Get(ctx context.Context, botID string) (*models.BotProfile, error) {
	const op = "BotService.Get"

	botID = strings.TrimSpace(botID)
	if botID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "bot id is required", nil)
	}
	if !s.store.Connected() {
		return nil, utils.E(utils.CodeUnavailable, op, NotConnectedMessage, records.ErrNotConnected)
	}

	if s.cache != nil {
		var cached models.BotProfile
		hit, err := s.cache.GetJSON(ctx, cache.BotKey(botID), &cached)
		if err != nil {
			s.log.WithError(err).WithField("bot_id", botID).Warn("bot cache read failed")
		}
		if hit {
			return &cached, nil
		}
	}

	var rows []models.Bot
	err := s.store.Select(ctx, models.CollectionBots, records.Where(records.Eq("id", botID)).Take(1), &rows)
	if err != nil {
		// malformed ids surface as query errors; the visitor sees the same terminal state
		s.log.WithError(err).WithField("bot_id", botID).Warn("bot lookup failed")
		return nil, utils.E(utils.CodeNotFound, op, "bot unavailable", err)
	}
	if len(rows) == 0 {
		return nil, utils.E(utils.CodeNotFound, op, "bot unavailable", utils.ErrNotFound)
	}

	p := rows[0].Normalize(s.defaults)
	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.SetJSON(ctx, cache.BotKey(botID), p, s.ttl); err != nil {
			s.log.WithError(err).WithField("bot_id", botID).Warn("bot cache write failed")
		}
	}
	return &p, nil
}
