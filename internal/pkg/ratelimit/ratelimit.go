package ratelimit

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/CourseHaven/internal/pkg/cache"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/env"
)

const (
	DefaultMax        = 120
	DefaultExpiration = time.Minute
)

// NewStorage returns a Redis backed limiter storage on its own database so
// counters survive restarts and are shared between instances.
func NewStorage() fiber.Storage {
	// Reuse the address of the cache connection when it is configured
	cacheClient := cache.GetClient()
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	// Database 2: cache uses 0, tests use 13
	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 2,
		Reset:    false,
	})
}

// Config controls the API limiter. A nil Storage keeps counters in memory.
type Config struct {
	Max        int
	Expiration time.Duration
	Storage    fiber.Storage
}

func ConfigFromEnv(storage fiber.Storage) Config {
	return Config{
		Max:        env.GetInt("RATE_LIMIT_MAX", DefaultMax),
		Expiration: env.GetDuration("RATE_LIMIT_WINDOW", DefaultExpiration),
		Storage:    storage,
	}
}

// New builds the limiter middleware keyed by client IP. Exceeding the limit
// answers with the JSON error shape used by the rest of the API.
func New(cfg Config) fiber.Handler {
	if cfg.Max <= 0 {
		cfg.Max = DefaultMax
	}
	if cfg.Expiration <= 0 {
		cfg.Expiration = DefaultExpiration
	}
	return limiter.New(limiter.Config{
		Max:          cfg.Max,
		Expiration:   cfg.Expiration,
		Storage:      cfg.Storage,
		KeyGenerator: ClientIP,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "Too many requests, slow down",
			})
		},
	})
}

// ClientIP is the key of the limiter. Forwarding headers are never read
// here: c.IP() only honours the proxy header when the request comes from a
// trusted proxy, see ApplyProxyConfig.
func ClientIP(c *fiber.Ctx) string {
	return strings.TrimPrefix(c.IP(), "::ffff:")
}

// ApplyProxyConfig makes c.IP() report the client address from header, but
// only for requests arriving from one of the trusted proxies. Without a
// header or without trusted proxies the socket address is used.
func ApplyProxyConfig(cfg *fiber.Config, header string, trusted []string) {
	header = strings.TrimSpace(header)
	proxies := make([]string, 0, len(trusted))
	for _, p := range trusted {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	if header == "" || len(proxies) == 0 {
		return
	}
	cfg.ProxyHeader = header
	cfg.EnableTrustedProxyCheck = true
	cfg.TrustedProxies = proxies
	cfg.EnableIPValidation = true
}

// ProxyConfigFromEnv reads PROXY_HEADER and the comma separated TRUSTED_PROXIES.
func ProxyConfigFromEnv(cfg *fiber.Config) {
	ApplyProxyConfig(cfg, env.GetEnv("PROXY_HEADER", ""), strings.Split(env.GetEnv("TRUSTED_PROXIES", ""), ","))
}
