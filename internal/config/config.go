package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"courseattend/internal/logger"
)

// Check-in rate limits. Flow starts are limited per client IP, which on
// campus is usually one NAT address for a whole class; everything after the
// start is limited per hosted flow.
const (
	DefaultRateLimitPerMin     = 600
	DefaultFlowRateLimitPerMin = 60
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env             string
	HTTPPort        string
	BackendURL      string
	PublicURL       string
	StaticDir       string
	DatabaseURL     string
	RedisAddr       string
	JWTIssuer       string
	JWTSigningKey   string
	SessionTTL      time.Duration
	SessionBackend  string
	QueueBackend    string
	RateLimitPerMin int
	FlowRateLimit   int
	CampusName      string
	FlowIdleTTL     time.Duration
	GeoTimeout      time.Duration
	GeoMaximumAge   time.Duration
	APITimeout      time.Duration
}

// Load returns application config populated from environment variables with sensible defaults.
// A .env file in the working directory is read first when present.
func Load() App {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.LogWarn("could not read .env", "error", err)
	}
	return App{
		Env:             getEnv("APP_ENV", "dev"),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		BackendURL:      strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:5000/api"), "/"),
		PublicURL:       strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8080"), "/"),
		StaticDir:       getEnv("STATIC_DIR", "web"),
		DatabaseURL:     os.Getenv("DATABASE_URL"), // empty disables visit storage
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		JWTIssuer:       getEnv("JWT_ISSUER", "courseattend-console"),
		JWTSigningKey:   getEnv("JWT_SIGNING_KEY", "dev-signing-secret-change"),
		SessionTTL:      durationEnv("SESSION_TTL", 12*time.Hour),
		SessionBackend:  getEnv("SESSION_BACKEND", "redis"),
		QueueBackend:    getEnv("QUEUE_BACKEND", "redis"),
		RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", DefaultRateLimitPerMin),
		FlowRateLimit:   intEnv("FLOW_RATE_LIMIT_PER_MIN", DefaultFlowRateLimitPerMin),
		CampusName:      getEnv("CAMPUS_NAME", "the institute campus"),
		FlowIdleTTL:     durationEnv("FLOW_IDLE_TTL", 15*time.Minute),
		GeoTimeout:      durationEnv("GEO_TIMEOUT", 10*time.Second),
		GeoMaximumAge:   durationEnv("GEO_MAXIMUM_AGE", 60*time.Second),
		APITimeout:      durationEnv("API_TIMEOUT", 20*time.Second),
	}
}

// Production reports whether the app runs in a production environment.
func (a App) Production() bool {
	return a.Env == "production" || a.Env == "prod"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			logger.LogWarn("invalid duration, using fallback", "key", key, "error", err, "fallback", fallback.String())
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		logger.LogWarn("invalid int, using fallback", "key", key, "fallback", fallback)
	}
	return fallback
}
