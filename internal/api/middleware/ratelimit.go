package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/yoockh/nexusbot/internal/utils"
)

const rateLimitPrefix = "nexusbot:ratelimit"

// NewRateStore picks Redis when a client is given, falling back to process memory.
func NewRateStore(rdb *redis.Client, log logrus.FieldLogger) limiter.Store {
	if rdb != nil {
		store, err := sredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: rateLimitPrefix})
		if err == nil {
			return store
		}
		log.WithError(err).Warn("Failed to create Redis store for rate limiting, falling back to memory")
	}
	return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: rateLimitPrefix})
}

// RateLimit limits requests per client IP. formatted is "<limit>-<period>", e.g. "60-M".
func RateLimit(formatted string, store limiter.Store) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	return mgin.NewMiddleware(limiter.New(store, rate),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    utils.CodeRateLimited,
				"message": "too many requests, slow down",
			})
		}),
	), nil
}
