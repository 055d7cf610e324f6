package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/doodlesbykumbi/schoolhost/pkg/metrics"
)

const globalPrefix = "schoolhost:global"

// GlobalLimitConfig configures the per-address limiter that sits in front
// of every route.
type GlobalLimitConfig struct {
	RequestsPerSecond int64
	// Store is "memory" or "redis".
	Store    string
	RedisURL string
}

// NewMemoryStore returns an in-process limiter store.
func NewMemoryStore() limiter.Store {
	return memorystore.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          globalPrefix,
		CleanUpInterval: time.Minute,
	})
}

// NewRedisStore returns a limiter store shared through redis.
func NewRedisStore(url string) (limiter.Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redisstore.NewStoreWithOptions(redis.NewClient(opts), limiter.StoreOptions{
		Prefix:   globalPrefix,
		MaxRetry: 3,
	})
}

// GlobalRateLimit limits every client address to cfg.RequestsPerSecond.
// A redis store that cannot be created falls back to memory.
func GlobalRateLimit(cfg GlobalLimitConfig, logger logrus.FieldLogger, m *metrics.Metrics) mux.MiddlewareFunc {
	var store limiter.Store
	switch cfg.Store {
	case "redis":
		var err error
		store, err = NewRedisStore(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Failed to create Redis store for rate limiting, falling back to memory")
			store = NewMemoryStore()
		}
	default:
		store = NewMemoryStore()
	}

	rate := limiter.Rate{Period: time.Second, Limit: cfg.RequestsPerSecond}
	mw := stdlib.NewMiddleware(
		limiter.New(store, rate),
		stdlib.WithKeyGetter(ClientIP),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			if m != nil {
				m.GlobalLimitRejects.Inc()
			}
			writeError(w, http.StatusTooManyRequests, "too many requests")
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			logger.WithError(err).Error("global rate limiter failed")
			writeError(w, http.StatusInternalServerError, "an internal error occurred, please retry later")
		}),
	)
	return mw.Handler
}
