package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Session   SessionConfig
	Payment   PaymentConfig
	Discogs   DiscogsConfig
	S3        S3Config
	SMTP      SMTPConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
	PublicURL   string // used to build guest reply links
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

// SessionConfig controls the anonymous basket session.
type SessionConfig struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

type PaymentConfig struct {
	Stripe StripeConfig
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	SuccessURL    string
	CancelURL     string
}

type DiscogsConfig struct {
	Token      string
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	SearchTTL  time.Duration
	ReleaseTTL time.Duration
	StaleTTL   time.Duration
}

type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	BaseURL         string // CloudFront or S3 direct URL
}

type SMTPConfig struct {
	Host       string
	Port       string
	Username   string
	Password   string
	From       string
	StaffEmail string
}

type SchedulerConfig struct {
	UnfeatureSpec  string
	ResetPurgeSpec string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
			PublicURL:   getEnv("PUBLIC_URL", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "alans"),
			Password: getEnv("DB_PASSWORD", "alans"),
			DBName:   getEnv("DB_NAME", "alans_albums"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxIdleConns:    parseInt(getEnv("DB_MAX_IDLE_CONNS", "5")),
			MaxOpenConns:    parseInt(getEnv("DB_MAX_OPEN_CONNS", "25")),
			ConnMaxLifetime: parseDuration(getEnv("DB_CONN_MAX_LIFETIME", "30m"), 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt(getEnv("REDIS_DB", "0")),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "your-secret-key"),
			AccessTokenExpiry:  parseDuration(getEnv("JWT_ACCESS_TOKEN_EXPIRY", "15m"), 15*time.Minute),
			RefreshTokenExpiry: parseDuration(getEnv("JWT_REFRESH_TOKEN_EXPIRY", "168h"), 168*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Session: SessionConfig{
			CookieName: getEnv("SESSION_COOKIE_NAME", "basket_session"),
			TTL:        parseDuration(getEnv("SESSION_TTL", "336h"), 336*time.Hour),
			Secure:     getEnv("SESSION_COOKIE_SECURE", "false") == "true",
		},
		Payment: PaymentConfig{
			Stripe: StripeConfig{
				SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
				WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
				Currency:      getEnv("STRIPE_CURRENCY", "gbp"),
				SuccessURL:    getEnv("STRIPE_SUCCESS_URL", "http://localhost:3000/basket/success"),
				CancelURL:     getEnv("STRIPE_CANCEL_URL", "http://localhost:3000/basket/cancel"),
			},
		},
		Discogs: DiscogsConfig{
			Token:      getEnv("DISCOGS_TOKEN", ""),
			BaseURL:    getEnv("DISCOGS_BASE_URL", "https://api.discogs.com"),
			UserAgent:  getEnv("DISCOGS_USER_AGENT", "alans-albums/1.0 +https://example.com"),
			Timeout:    parseDuration(getEnv("DISCOGS_TIMEOUT", "10s"), 10*time.Second),
			SearchTTL:  parseDuration(getEnv("DISCOGS_SEARCH_TTL", "1h"), time.Hour),
			ReleaseTTL: parseDuration(getEnv("DISCOGS_RELEASE_TTL", "24h"), 24*time.Hour),
			StaleTTL:   parseDuration(getEnv("DISCOGS_STALE_TTL", "72h"), 72*time.Hour),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "eu-west-2"),
			Bucket:          getEnv("AWS_S3_BUCKET", "alans-albums-uploads"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			BaseURL:         getEnv("AWS_S3_BASE_URL", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:       getEnv("SMTP_PORT", "587"),
			Username:   getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			From:       getEnv("SMTP_FROM", getEnv("SMTP_EMAIL", "")),
			StaffEmail: getEnv("STAFF_NOTIFY_EMAIL", ""),
		},
		Scheduler: SchedulerConfig{
			UnfeatureSpec:  getEnv("UNFEATURE_CRON", "*/15 * * * *"),
			ResetPurgeSpec: getEnv("RESET_PURGE_CRON", "0 3 * * *"),
		},
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Addr returns host:port for the redis client.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Enabled reports whether a Stripe secret key is configured.
func (c *StripeConfig) Enabled() bool {
	return c.SecretKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("Invalid integer %s, using 0", s)
		return 0
	}
	return n
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
