package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Port          int
	Environment   string
	DBDriver      string
	DataDir       string
	DatabaseURL   string
	JWTSecret     string
	JWTIssuer     string
	TokenTTL      time.Duration
	SessionSecret string
	SessionMaxAge int
	SecureCookie  bool

	DefaultAdmin    string
	DefaultPassword string

	RedisURL string

	RegistryBaseURL string
	RegistryTimeout time.Duration

	PhoneBaseURL  string
	PhoneUsername string
	PhonePassword string
	PhoneTimeout  time.Duration

	AuditWriteTimeout time.Duration

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:            getEnvInt("CIVREG_PORT", 8080),
		Environment:     getEnvString("CIVREG_ENV", "development"),
		DBDriver:        getEnvString("CIVREG_DB_DRIVER", DriverSQLite),
		DataDir:         getEnvString("CIVREG_DATA_DIR", "./data"),
		DatabaseURL:     getEnvString("CIVREG_DATABASE_URL", ""),
		JWTSecret:       getEnvString("CIVREG_JWT_SECRET", ""),
		JWTIssuer:       getEnvString("CIVREG_JWT_ISSUER", "civilregistry"),
		TokenTTL:        getEnvDuration("CIVREG_TOKEN_TTL", 24*time.Hour),
		SessionSecret:   getEnvString("CIVREG_SESSION_SECRET", "change-me-in-production-32bytes!"),
		SessionMaxAge:   getEnvInt("CIVREG_SESSION_MAX_AGE", 86400), // 24 hours
		SecureCookie:    getEnvBool("CIVREG_SECURE_COOKIE", false),
		DefaultAdmin:    getEnvString("CIVREG_DEFAULT_ADMIN", "admin"),
		DefaultPassword: getEnvString("CIVREG_DEFAULT_PASSWORD", "admin123"),
		RedisURL:        getEnvString("CIVREG_REDIS_URL", ""),

		RegistryBaseURL: getEnvString("CIVREG_REGISTRY_BASE_URL", "https://api.eservice.aiocp.org/api"),
		RegistryTimeout: getEnvDuration("CIVREG_REGISTRY_TIMEOUT", 30*time.Second),

		PhoneBaseURL:  getEnvString("CIVREG_PHONE_BASE_URL", "https://e-gaza.com/api"),
		PhoneUsername: getEnvString("CIVREG_PHONE_USERNAME", ""),
		PhonePassword: getEnvString("CIVREG_PHONE_PASSWORD", ""),
		PhoneTimeout:  getEnvDuration("CIVREG_PHONE_TIMEOUT", 15*time.Second),

		AuditWriteTimeout: getEnvDuration("CIVREG_AUDIT_WRITE_TIMEOUT", 5*time.Second),

		LogLevel:  getEnvString("CIVREG_LOG_LEVEL", "info"),
		LogFormat: getEnvString("CIVREG_LOG_FORMAT", "console"),
	}

	if cfg.JWTSecret == "" && cfg.IsDevelopment() {
		cfg.JWTSecret = "dev-only-jwt-secret-change-me"
	}

	return cfg
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case DriverSQLite:
		if c.DataDir == "" {
			errs = append(errs, errors.New("CIVREG_DATA_DIR is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("CIVREG_DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, errors.New("CIVREG_DB_DRIVER must be sqlite or postgres"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("CIVREG_JWT_SECRET is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("CIVREG_TOKEN_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
