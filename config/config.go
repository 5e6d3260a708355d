package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Email         EmailConfig
	App           AppConfig
	Notifications NotificationsConfig
	Admin         AdminConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/centre?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings (only needed when NOTIFY_MODE=queue).
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings for administrators.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// EmailConfig for the SMTP transport. An empty SMTPHost selects the log-only sender.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// AppConfig holds public-facing URLs and recipients used to build notifications.
type AppConfig struct {
	Name                string
	PublicURL           string // base URL of the public site, no trailing slash
	APIURL              string // base URL of this API, used in confirmation links
	ConfirmRedirectPath string
	AdminDashboardPath  string
	AdminEmails         []string
}

// NotificationsConfig selects how workflow notifications are delivered.
type NotificationsConfig struct {
	Mode           string // "sync" or "queue"
	SendTimeoutSec int
}

// AdminConfig seeds the first super administrator at startup. Leave empty once accounts exist.
type AdminConfig struct {
	BootstrapEmail    string
	BootstrapPassword string
	BootstrapName     string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// QueueEnabled reports whether notifications go through the Redis email queue.
func (c NotificationsConfig) QueueEnabled() bool {
	return c.Mode == "queue"
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "centre"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 12),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@example.org"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Centre Social"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
		App: AppConfig{
			Name:                getEnv("APP_NAME", "Centre Social"),
			PublicURL:           strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:3000"), "/"),
			APIURL:              strings.TrimRight(getEnv("API_URL", "http://localhost:8080"), "/"),
			ConfirmRedirectPath: getEnv("CONFIRM_REDIRECT_PATH", "/inscription/confirmation"),
			AdminDashboardPath:  getEnv("ADMIN_DASHBOARD_PATH", "/admin/inscriptions"),
			AdminEmails:         splitTrim(getEnv("ADMIN_NOTIFICATION_EMAILS", ""), ","),
		},
		Notifications: NotificationsConfig{
			Mode:           strings.ToLower(getEnv("NOTIFY_MODE", "sync")),
			SendTimeoutSec: getEnvInt("EMAIL_SEND_TIMEOUT_SEC", 12),
		},
		Admin: AdminConfig{
			BootstrapEmail:    getEnv("ADMIN_BOOTSTRAP_EMAIL", ""),
			BootstrapPassword: getEnv("ADMIN_BOOTSTRAP_PASSWORD", ""),
			BootstrapName:     getEnv("ADMIN_BOOTSTRAP_NAME", "Administrateur"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Notifications.Mode {
	case "sync", "queue":
	default:
		return fmt.Errorf("invalid NOTIFY_MODE %q (want sync or queue)", c.Notifications.Mode)
	}
	if c.Notifications.SendTimeoutSec <= 0 {
		return fmt.Errorf("EMAIL_SEND_TIMEOUT_SEC must be positive")
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
