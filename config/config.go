package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Provider ProviderConfig
	Codes    CodesConfig
	Email    EmailConfig
	Session  SessionConfig
	Redis    RedisConfig
	Log      LogConfig
}

type ServerConfig struct {
	Addr              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	MinPasswordLength int
}

type DatabaseConfig struct {
	URL         string
	AutoMigrate bool
}

// ProviderConfig selects how tokens are verified: an OIDC issuer wins over
// a JWT secret, which wins over calling the provider's /user endpoint.
type ProviderConfig struct {
	URL          string
	ServiceKey   string
	AnonKey      string
	JWTSecret    string
	OIDCIssuer   string
	OIDCClientID string
	Timeout      time.Duration
}

type CodesConfig struct {
	TTL        time.Duration
	RateWindow time.Duration
	RateMax    int
	HashCost   int
}

type EmailConfig struct {
	ResendAPIKey string
	From         string
	DevFallback  bool
}

type SessionConfig struct {
	CookieName   string
	CookieDomain string
	CookieSecure bool
}

type RedisConfig struct {
	Addr     string
	Password string
}

type LogConfig struct {
	Level string
}

// LoadConfig reads configuration from the environment, after loading an
// optional .env file.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DB_AUTO_MIGRATE", false)
	v.SetDefault("PROVIDER_TIMEOUT", "10s")
	v.SetDefault("CODE_TTL", "10m")
	v.SetDefault("CODE_RATE_WINDOW", "10m")
	v.SetDefault("CODE_RATE_MAX", 3)
	v.SetDefault("CODE_HASH_COST", 10)
	v.SetDefault("MIN_PASSWORD_LENGTH", 8)
	v.SetDefault("EMAIL_DEV_FALLBACK", false)
	v.SetDefault("SESSION_COOKIE_NAME", "sb-access-token")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		Server: ServerConfig{
			Addr:              v.GetString("HTTP_ADDR"),
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			MinPasswordLength: v.GetInt("MIN_PASSWORD_LENGTH"),
		},
		Database: DatabaseConfig{
			URL:         v.GetString("DATABASE_URL"),
			AutoMigrate: v.GetBool("DB_AUTO_MIGRATE"),
		},
		Provider: ProviderConfig{
			URL:          strings.TrimRight(v.GetString("PROVIDER_URL"), "/"),
			ServiceKey:   v.GetString("PROVIDER_SERVICE_KEY"),
			AnonKey:      v.GetString("PROVIDER_ANON_KEY"),
			JWTSecret:    v.GetString("PROVIDER_JWT_SECRET"),
			OIDCIssuer:   v.GetString("PROVIDER_OIDC_ISSUER"),
			OIDCClientID: v.GetString("PROVIDER_OIDC_CLIENT_ID"),
			Timeout:      v.GetDuration("PROVIDER_TIMEOUT"),
		},
		Codes: CodesConfig{
			TTL:        v.GetDuration("CODE_TTL"),
			RateWindow: v.GetDuration("CODE_RATE_WINDOW"),
			RateMax:    v.GetInt("CODE_RATE_MAX"),
			HashCost:   v.GetInt("CODE_HASH_COST"),
		},
		Email: EmailConfig{
			ResendAPIKey: v.GetString("RESEND_API_KEY"),
			From:         v.GetString("EMAIL_FROM"),
			DevFallback:  v.GetBool("EMAIL_DEV_FALLBACK"),
		},
		Session: SessionConfig{
			CookieName:   v.GetString("SESSION_COOKIE_NAME"),
			CookieDomain: v.GetString("COOKIE_DOMAIN"),
			CookieSecure: v.GetBool("COOKIE_SECURE"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Provider.URL == "" {
		errs = append(errs, errors.New("PROVIDER_URL is required"))
	}
	if c.Provider.ServiceKey == "" {
		errs = append(errs, errors.New("PROVIDER_SERVICE_KEY is required"))
	}
	if c.Provider.OIDCIssuer != "" && c.Provider.OIDCClientID == "" {
		errs = append(errs, errors.New("PROVIDER_OIDC_CLIENT_ID is required with PROVIDER_OIDC_ISSUER"))
	}
	if c.Codes.TTL < 0 || c.Codes.RateWindow < 0 {
		errs = append(errs, errors.New("CODE_TTL and CODE_RATE_WINDOW must not be negative"))
	}
	if c.Codes.RateMax < 1 {
		errs = append(errs, errors.New("CODE_RATE_MAX must be at least 1"))
	}
	if c.Server.MinPasswordLength < 6 {
		errs = append(errs, errors.New("MIN_PASSWORD_LENGTH must be at least 6"))
	}
	return errors.Join(errs...)
}
