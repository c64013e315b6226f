package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	GoEnv     string `env:"GO_ENV" envDefault:"production"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// public origin of this service; baked into the bridge as its fallback
	AppOrigin string `env:"APP_ORIGIN" envDefault:"http://localhost:8080"`

	// postgres | mongo | memory | none
	RecordsBackend string `env:"RECORDS_BACKEND" envDefault:"postgres"`
	PostgresURI    string `env:"POSTGRES_URI"`
	MongoURI       string `env:"MONGO_URI"`
	MongoDB        string `env:"MONGO_DB" envDefault:"nexusbot"`
	MongoTLS12     bool   `env:"MONGO_FORCE_TLS12"`

	RedisAddr string `env:"REDIS_ADDR"`
	RedisURI  string `env:"REDIS_URI"`
	RedisURL  string `env:"REDIS_URL"`

	// vertex | openai
	CompletionProvider string        `env:"COMPLETION_PROVIDER" envDefault:"vertex"`
	CompletionTimeout  time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"30s"`
	GCPProjectID       string        `env:"GCP_PROJECT_ID"`
	GCPLocation        string        `env:"GCP_LOCATION" envDefault:"us-central1"`
	GeminiModel        string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	OpenAIAPIKey       string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL      string        `env:"OPENAI_BASE_URL"`
	OpenAIModel        string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	BookingTag      string `env:"BOOKING_TAG" envDefault:"BOOKING"`
	BookingStrict   bool   `env:"BOOKING_STRICT" envDefault:"true"`
	DefaultTimezone string `env:"DEFAULT_TIMEZONE" envDefault:"UTC"`

	WidgetTokenSecret  string        `env:"WIDGET_TOKEN_SECRET"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	RateLimit          string        `env:"RATE_LIMIT" envDefault:"60-M"`
	BotCacheTTL        time.Duration `env:"BOT_CACHE_TTL" envDefault:"5m"`
	TurnLockTTL        time.Duration `env:"TURN_LOCK_TTL" envDefault:"90s"`
	TurnLockWait       time.Duration `env:"TURN_LOCK_WAIT" envDefault:"30s"`

	BridgeBucket string `env:"BRIDGE_BUCKET"`
}

// Load reads .env files when present, then the process environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.AppOrigin = strings.TrimRight(strings.TrimSpace(cfg.AppOrigin), "/")
	cfg.RecordsBackend = strings.ToLower(strings.TrimSpace(cfg.RecordsBackend))
	cfg.CompletionProvider = strings.ToLower(strings.TrimSpace(cfg.CompletionProvider))
	if strings.TrimSpace(cfg.BookingTag) == "" {
		cfg.BookingTag = "BOOKING"
	}
	return cfg, nil
}

// RedisTarget returns the first configured of REDIS_ADDR, REDIS_URI, REDIS_URL.
func (c Config) RedisTarget() string {
	for _, v := range []string{c.RedisAddr, c.RedisURI, c.RedisURL} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (c Config) IsDevelopment() bool { return c.GoEnv == "development" }
