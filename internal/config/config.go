package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port        string
	LogLevel    string
	LogFormat   string
	CORSOrigins []string

	// TrustedProxies lists CIDRs whose forwarded headers name the client.
	TrustedProxies []string

	MongoURI    string
	MongoDB     string
	UserStore   string
	PostgresDSN string

	RedisAddr     string
	RedisPassword string
	RateLimit     int
	RateWindow    time.Duration

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioPublicURL string
	StoragePrivate bool

	AIServiceURL string
	AIChatPath   string
	AINotesPath  string
	AITimeout    time.Duration

	FetchTimeout    time.Duration
	FetchBackoff    time.Duration
	SignedURLExpiry time.Duration
	OTPTTL          time.Duration
	MaxUploadBytes  int64

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
}

// Load reads the environment, after loading a .env file if one is present.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		if _, statErr := os.Stat(".env"); statErr == nil {
			log.Println("warning: .env file exists but couldn't be loaded:", err)
		}
	}

	return &Config{
		Port:           getenv("PORT", "8080"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFormat:      getenv("LOG_FORMAT", "text"),
		CORSOrigins:    splitList(getenv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		TrustedProxies: splitList(getenv("TRUSTED_PROXIES", "")),

		MongoURI:    getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     getenv("MONGO_DB", "lecture_notes"),
		UserStore:   getenv("USER_STORE", "mongo"),
		PostgresDSN: getenv("POSTGRES_DSN", ""),

		RedisAddr:     getenv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RateLimit:     getint("RATE_LIMIT", 10),
		RateWindow:    getduration("RATE_WINDOW", time.Minute),

		MinioEndpoint:  getenv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "lecture-notes"),
		MinioUseSSL:    getenv("MINIO_USE_SSL", "false") == "true",
		MinioPublicURL: getenv("MINIO_PUBLIC_URL", ""),
		StoragePrivate: getenv("STORAGE_PRIVATE", "true") == "true",

		AIServiceURL: getenv("PY_BACKEND_URL", "http://127.0.0.1:8000"),
		AIChatPath:   getenv("AI_CHAT_PATH", "/chat-with-notes"),
		AINotesPath:  getenv("AI_NOTES_PATH", "/lecture/clean"),
		AITimeout:    getduration("AI_TIMEOUT", 2*time.Minute),

		FetchTimeout:    getduration("FETCH_TIMEOUT", 30*time.Second),
		FetchBackoff:    getduration("FETCH_BACKOFF", 500*time.Millisecond),
		SignedURLExpiry: getduration("SIGNED_URL_EXPIRY", 5*time.Minute),
		OTPTTL:          getduration("OTP_TTL", 30*time.Minute),
		MaxUploadBytes:  int64(getint("MAX_UPLOAD_BYTES", 32<<20)),

		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     getint("SMTP_PORT", 587),
		SMTPUsername: getenv("SMTP_USERNAME", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		EmailFrom:    getenv("EMAIL_FROM", ""),
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	switch c.UserStore {
	case "mongo":
	case "postgres":
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required when USER_STORE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("USER_STORE must be mongo or postgres, got %q", c.UserStore))
	}
	if c.RateLimit < 1 {
		errs = append(errs, errors.New("RATE_LIMIT must be positive"))
	}
	for name, d := range map[string]time.Duration{
		"AI_TIMEOUT":        c.AITimeout,
		"FETCH_TIMEOUT":     c.FetchTimeout,
		"SIGNED_URL_EXPIRY": c.SignedURLExpiry,
		"OTP_TTL":           c.OTPTTL,
		"RATE_WINDOW":       c.RateWindow,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

// StorageConfigured reports whether all three object-store credentials are set.
func (c *Config) StorageConfigured() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != ""
}

// MailConfigured reports whether OTP mail can go out over SMTP.
func (c *Config) MailConfigured() bool {
	return c.SMTPHost != "" && c.EmailFrom != ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("warning: invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("warning: invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
