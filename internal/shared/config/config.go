package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	BaseURL         string
	Env             string
	DatabaseURL     string
	SessionSecret   string
	SigningSecret   string
	EmailVerifyTTL  time.Duration
	MaxUploadBytes  int64
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioUseSSL     bool
	MailBackend     string
	MailSMTPHost    string
	MailSMTPPort    int
	MailSMTPUser    string
	MailSMTPPass    string
	MailFrom        string
	RedisURL        string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))

	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		BaseURL:         strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		Env:             env,
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		SigningSecret:   os.Getenv("SIGNING_SECRET"),
		EmailVerifyTTL:  getDuration("EMAIL_VERIFY_TTL", 0),
		MaxUploadBytes:  int64(getInt("MAX_UPLOAD_BYTES", 30<<20)),
		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./media"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		MinioEndpoint:   getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:  getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:  getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:     getEnv("MINIO_BUCKET", "documents"),
		MinioUseSSL:     getBool("MINIO_USE_SSL", false),
		MailBackend:     normalizeMailBackend(getEnv("MAIL_BACKEND", "log")),
		MailSMTPHost:    getEnv("MAIL_SMTP_HOST", "localhost"),
		MailSMTPPort:    getInt("MAIL_SMTP_PORT", 1025),
		MailSMTPUser:    getEnv("MAIL_SMTP_USER", ""),
		MailSMTPPass:    getEnv("MAIL_SMTP_PASS", ""),
		MailFrom:        getEnv("MAIL_FROM", "from_email@example.com"),
		RedisURL:        getEnv("REDIS_URL", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
	}

	if env != "production" {
		if cfg.SessionSecret == "" {
			cfg.SessionSecret = "dev-session-secret-change-me-32b"
		}
		if cfg.SigningSecret == "" {
			cfg.SigningSecret = "dev-signing-secret"
		}
	}
	return cfg
}

// Validate reports settings that must be present before serving traffic.
func (c Config) Validate() error {
	if c.Env != "production" {
		return nil
	}
	var errs []error
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("DATABASE_URL is required in production"))
	}
	if strings.TrimSpace(c.SessionSecret) == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required in production"))
	}
	if strings.TrimSpace(c.SigningSecret) == "" {
		errs = append(errs, errors.New("SIGNING_SECRET is required in production"))
	}
	return errors.Join(errs...)
}

// GoogleEnabled reports whether Google sign-in is fully configured.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config %s invalid int: %v", key, err)
		return def
	}
	return val
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("config %s invalid bool: %v", key, err)
		return def
	}
	return val
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config %s invalid duration: %v", key, err)
		return def
	}
	return val
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "minio":
		return "minio"
	default:
		return "local"
	}
}

func normalizeMailBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "smtp":
		return "smtp"
	default:
		return "log"
	}
}
