package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port int

	// public URL used to build links inside emails
	BackendURL string
	AppURL     string

	DBDriver  string
	DBURL     string
	MySQLDSN  string
	DBMigrate bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MailDelivery string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	SessionSecret string
	SessionTTL    time.Duration
	CSRFSecret    string

	// 0 keeps tokens valid until they are used
	TokenTTL time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	OTELEndpoint     string
	OTELSampleRatio  float64
	WorkerHealthPort int

	// problems found while reading the environment, reported by the caller's logger
	Warnings []string
}

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMemory   = "memory"

	DeliverySMTP  = "smtp"
	DeliveryQueue = "queue"
	DeliveryLog   = "log"
)

func Load() Config {
	l := &loader{}

	cfg := Config{
		Env:  l.getEnv("APP_ENV", "dev"),
		Port: l.getEnvInt("PORT", 3000),

		BackendURL: strings.TrimRight(l.getEnv("BACKEND_URL", "http://localhost"), "/"),
		AppURL:     strings.TrimRight(l.getEnv("APP_URL", ""), "/"),

		DBDriver:  strings.ToLower(l.getEnv("DB_DRIVER", DriverPostgres)),
		DBURL:     buildDBURL(l),
		MySQLDSN:  l.getEnv("MYSQL_DSN", "bienesraices:bienesraices@tcp(127.0.0.1:3306)/bienesraices?parseTime=true"),
		DBMigrate: l.getEnvBool("DB_MIGRATE", true),

		RedisAddr:     l.getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: l.getEnv("REDIS_PASSWORD", ""),
		RedisDB:       l.getEnvInt("REDIS_DB", 0),

		MailDelivery: strings.ToLower(l.getEnv("MAIL_DELIVERY", DeliveryLog)),
		SMTPHost:     l.getEnv("EMAIL_HOST", "localhost"),
		SMTPPort:     l.getEnvInt("EMAIL_PORT", 2525),
		SMTPUser:     l.getEnv("EMAIL_USER", ""),
		SMTPPassword: l.getEnv("EMAIL_PASS", ""),
		MailFrom:     l.getEnv("EMAIL_FROM", "BienesRaices.com <no-reply@bienesraices.com>"),

		SessionSecret: l.getEnv("SESSION_SECRET", "dev-session-secret"),
		SessionTTL:    l.getEnvDuration("SESSION_TTL", 24*time.Hour),
		CSRFSecret:    l.getEnv("CSRF_SECRET", "dev-csrf-secret"),

		TokenTTL: l.getEnvDuration("TOKEN_TTL", 0),

		RateLimitRPS:   l.getEnvFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst: l.getEnvInt("RATE_LIMIT_BURST", 10),

		OTELEndpoint:     l.getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELSampleRatio:  l.getEnvFloat("OTEL_SAMPLE_RATIO", 1),
		WorkerHealthPort: l.getEnvInt("WORKER_HEALTH_PORT", 8081),
	}

	switch cfg.DBDriver {
	case DriverPostgres, DriverMySQL, DriverMemory:
	default:
		l.warn("DB_DRIVER %q is not supported, using %q", cfg.DBDriver, DriverPostgres)
		cfg.DBDriver = DriverPostgres
	}

	switch cfg.MailDelivery {
	case DeliverySMTP, DeliveryQueue, DeliveryLog:
	default:
		l.warn("MAIL_DELIVERY %q is not supported, using %q", cfg.MailDelivery, DeliveryLog)
		cfg.MailDelivery = DeliveryLog
	}

	if cfg.Env == "prod" && (cfg.SessionSecret == "dev-session-secret" || cfg.CSRFSecret == "dev-csrf-secret") {
		l.warn("SESSION_SECRET and CSRF_SECRET should be set in prod")
	}

	cfg.Warnings = l.warnings

	return cfg
}

// PublicURL is the base for links sent by email. Without APP_URL it mirrors
// BACKEND_URL:PORT.
func (c Config) PublicURL() string {
	if c.AppURL != "" {
		return c.AppURL
	}

	return fmt.Sprintf("%s:%d", c.BackendURL, c.Port)
}

func buildDBURL(l *loader) string {
	host := l.getEnv("DB_HOST", "127.0.0.1")
	port := l.getEnv("DB_PORT", "5432")
	user := l.getEnv("DB_USER", "bienesraices")
	pass := l.getEnv("DB_PASSWORD", "bienesraices")
	name := l.getEnv("DB_NAME", "bienesraices")
	ssl := l.getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

type loader struct {
	warnings []string
}

func (l *loader) warn(format string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func (l *loader) getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func (l *loader) getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			l.warn("%s=%q is not an integer, using %d", key, v, fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func (l *loader) getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.ParseFloat(v, 64)

		if err != nil {
			l.warn("%s=%q is not a number, using %v", key, v, fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func (l *loader) getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)

		if err != nil {
			l.warn("%s=%q is not a boolean, using %t", key, v, fallback)
			return fallback
		}

		return b
	}
	return fallback
}

func (l *loader) getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)

		if err != nil || d < 0 {
			l.warn("%s=%q is not a valid duration, using %s", key, v, fallback)
			return fallback
		}

		return d
	}
	return fallback
}
