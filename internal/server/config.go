package server

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig defines the parameters for per-connection inbound rate
// limiting: Burst frames at once, refilled one every RefillInterval.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// RedisConfig locates the directory cache. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NATSConfig locates the channel announcement feed. An empty URL disables
// the subscription.
type NATSConfig struct {
	URL     string
	Subject string
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level  string
	Format string
}

// Config holds the server configuration.
type Config struct {
	Port           string
	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      RateLimitConfig
	SendQueueSize  int
	TypingTimeout  time.Duration

	JWTSecret         string
	DatabaseURL       string
	Redis             RedisConfig
	DirectoryCacheTTL time.Duration
	NATS              NATSConfig

	Log             LogConfig
	ShutdownTimeout time.Duration
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:5173",
		},
		MaxMessageSize: 8192,
		RateLimit: RateLimitConfig{
			Burst:          10,
			RefillInterval: time.Second,
		},
		SendQueueSize:     256,
		TypingTimeout:     2 * time.Second,
		DirectoryCacheTTL: time.Minute,
		NATS: NATSConfig{
			Subject: "chat.channel.created",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		ShutdownTimeout: 15 * time.Second,
	}
}

// sanitizeConfig replaces unusable values with defaults and normalizes the
// origin allow-list.
func sanitizeConfig(cfg Config) Config {
	def := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = def.Port
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}

	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = def.SendQueueSize
	}

	if cfg.TypingTimeout <= 0 {
		cfg.TypingTimeout = def.TypingTimeout
	}

	if cfg.DirectoryCacheTTL <= 0 {
		cfg.DirectoryCacheTTL = def.DirectoryCacheTTL
	}

	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = def.NATS.Subject
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set or
// cannot be parsed.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	// Load SERVER_PORT
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}

	// Load ALLOWED_ORIGINS
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	// Load MAX_MESSAGE_SIZE
	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	// Load RATE_LIMIT_BURST
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	// Load RATE_LIMIT_REFILL_INTERVAL
	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(interval, cfg.RateLimit.RefillInterval)
	}

	// Load SEND_QUEUE_SIZE
	if size := os.Getenv("SEND_QUEUE_SIZE"); size != "" {
		cfg.SendQueueSize = parseIntValue(size, cfg.SendQueueSize)
	}

	// Load TYPING_TIMEOUT_MS
	if ms := os.Getenv("TYPING_TIMEOUT_MS"); ms != "" {
		cfg.TypingTimeout = parseMillis(ms, cfg.TypingTimeout)
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	// Load REDIS_*
	cfg.Redis.Addr = os.Getenv("REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil && n >= 0 {
			cfg.Redis.DB = n
		}
	}

	// Load DIRECTORY_CACHE_TTL
	if ttl := os.Getenv("DIRECTORY_CACHE_TTL"); ttl != "" {
		cfg.DirectoryCacheTTL = parseSeconds(ttl, cfg.DirectoryCacheTTL)
	}

	// Load NATS_URL and CHANNEL_CREATED_SUBJECT
	cfg.NATS.URL = os.Getenv("NATS_URL")
	if subject := os.Getenv("CHANNEL_CREATED_SUBJECT"); subject != "" {
		cfg.NATS.Subject = subject
	}

	// Load LOG_LEVEL and LOG_FORMAT
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Log.Format = format
	}

	// Load SHUTDOWN_TIMEOUT
	if timeout := os.Getenv("SHUTDOWN_TIMEOUT"); timeout != "" {
		cfg.ShutdownTimeout = parseSeconds(timeout, cfg.ShutdownTimeout)
	}

	return &cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func parseMillis(value string, defaultValue time.Duration) time.Duration {
	if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
