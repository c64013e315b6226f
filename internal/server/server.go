package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/nexusbot/config"
	"github.com/yoockh/nexusbot/internal/api/handlers"
	"github.com/yoockh/nexusbot/internal/api/middleware"
	"github.com/yoockh/nexusbot/internal/api/routes"
	"github.com/yoockh/nexusbot/internal/booking"
	"github.com/yoockh/nexusbot/internal/cache"
	"github.com/yoockh/nexusbot/internal/completion"
	"github.com/yoockh/nexusbot/internal/events"
	"github.com/yoockh/nexusbot/internal/models"
	"github.com/yoockh/nexusbot/internal/providers/llm"
	"github.com/yoockh/nexusbot/internal/records"
	mongorepo "github.com/yoockh/nexusbot/internal/repositories/mongo"
	pgrepo "github.com/yoockh/nexusbot/internal/repositories/postgres"
	"github.com/yoockh/nexusbot/internal/scheduling"
	"github.com/yoockh/nexusbot/internal/services"
	"github.com/yoockh/nexusbot/internal/token"
	"github.com/yoockh/nexusbot/internal/widget"
)

// Server owns the HTTP handler and every connection it opened.
type Server struct {
	Handler http.Handler
	closers []func() error
}

// Close releases backends in reverse order of opening.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New wires the widget runtime. Only a malformed rate limit or template is
// fatal; unreachable backends degrade the service instead.
func New(ctx context.Context, cfg config.Config, log *logrus.Logger) (*Server, error) {
	s := &Server{}

	store := s.openRecords(ctx, cfg, log)

	var rdb *redis.Client
	if target := cfg.RedisTarget(); target != "" {
		c, err := config.NewRedis(target)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, running without cache, turn locks and live events")
		} else {
			rdb = c
			s.closers = append(s.closers, rdb.Close)
			log.Info("Redis connected")
		}
	}

	provider := s.openProvider(ctx, cfg, log)

	var (
		botCache cache.Cache
		locker   cache.Locker
		pub      events.Publisher
		sub      events.Subscriber
	)
	if rdb != nil {
		bus := events.NewRedisBus(rdb, log)
		botCache, locker, pub, sub = cache.NewRedisCache(rdb), cache.NewRedisLocker(rdb), bus, bus
	}

	renderer, err := widget.NewRenderer(cfg.AppOrigin)
	if err != nil {
		return nil, fmt.Errorf("widget templates: %w", err)
	}
	signer := token.NewSigner(cfg.WidgetTokenSecret)
	if !signer.Enabled() {
		log.Warn("WIDGET_TOKEN_SECRET not set, session ids are handed to the widget unsigned")
	}

	bots := services.NewBotService(store, botCache, cfg.BotCacheTTL, models.ProfileDefaults{Timezone: cfg.DefaultTimezone}, log)
	sessions := services.NewSessionService(store, log)
	chat := services.NewChatService(
		store,
		sessions,
		completion.NewService(provider, cfg.CompletionTimeout, log),
		scheduling.NewInjector(cfg.BookingTag),
		booking.NewExtractor(cfg.BookingTag, log),
		locker,
		pub,
		services.ChatOptions{Strict: cfg.BookingStrict, LockTTL: cfg.TurnLockTTL, LockWait: cfg.TurnLockWait},
		log,
	)

	limit, err := middleware.RateLimit(cfg.RateLimit, middleware.NewRateStore(rdb, log))
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	deps := routes.Deps{
		Page:      handlers.NewPageHandler(bots, renderer, log),
		Widget:    handlers.NewWidgetHandler(bots, sessions, chat, signer),
		RateLimit: limit,
	}
	if sub != nil {
		deps.WS = handlers.NewWSHandler(sub, signer, cfg.AppOrigin, log)
	}
	routes.RegisterRoutes(r, deps)

	s.Handler = cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         600,
	}).Handler(r)
	return s, nil
}

func (s *Server) openRecords(ctx context.Context, cfg config.Config, log *logrus.Logger) records.Store {
	switch cfg.RecordsBackend {
	case "postgres":
		db, err := config.NewPostgres(cfg.PostgresURI)
		if err != nil {
			log.WithError(err).Error("postgres unavailable, widget will report not connected")
			return records.Disconnected{}
		}
		if sqlDB, err := db.DB(); err == nil {
			s.closers = append(s.closers, sqlDB.Close)
		}
		log.Info("PostgreSQL connected")
		return pgrepo.NewRecordsRepo(db)

	case "mongo":
		client, err := config.NewMongo(cfg.MongoURI, cfg.MongoTLS12)
		if err != nil {
			log.WithError(err).Error("mongo unavailable, widget will report not connected")
			return records.Disconnected{}
		}
		s.closers = append(s.closers, func() error { return client.Disconnect(context.Background()) })
		db := client.Database(cfg.MongoDB)
		if err := config.EnsureMongoIndexes(ctx, db); err != nil {
			log.WithError(err).Warn("mongo index setup failed")
		}
		log.Info("MongoDB connected")
		return mongorepo.NewRecordsRepo(db)

	case "memory":
		log.Warn("using in-memory records, data is lost on restart")
		return records.NewMemoryStore()

	default:
		log.WithField("backend", cfg.RecordsBackend).Warn("no records backend configured")
		return records.Disconnected{}
	}
}

func (s *Server) openProvider(ctx context.Context, cfg config.Config, log *logrus.Logger) llm.Provider {
	switch cfg.CompletionProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Warn("OPENAI_API_KEY not set, replies will report the missing credential")
			return nil
		}
		return llm.NewOpenAICompatible(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)

	default:
		if cfg.GCPProjectID == "" {
			log.Warn("GCP_PROJECT_ID not set, replies will report the missing credential")
			return nil
		}
		p, err := llm.NewVertexGemini(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.GeminiModel)
		if err != nil {
			log.WithError(err).Error("vertex client init failed")
			return nil
		}
		s.closers = append(s.closers, p.Close)
		return p
	}
}
