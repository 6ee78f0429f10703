package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "FLASHDECK"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabaseDriver    = "sqlite"
	defaultDatabaseDSN       = "flashdeck.db"
	defaultLogLevel          = "info"
	defaultLogFormat         = "json"
	defaultAuthIssuer        = "flashdeck-auth"
	defaultAuthAudience      = "flashdeck-api"
	defaultAccessTTLMinutes  = 60
	defaultRefreshTTLMinutes = 7 * 24 * 60
	defaultAllowedOrigin     = "*"
)

// Configuration keys shared by flags, env vars and config files.
const (
	KeyHTTPAddress       = "http.address"
	KeyDatabaseDriver    = "database.driver"
	KeyDatabaseDSN       = "database.dsn"
	KeyLogLevel          = "log.level"
	KeyLogFormat         = "log.format"
	KeyAuthSigningSecret = "auth.signing_secret"
	KeyAuthIssuer        = "auth.issuer"
	KeyAuthAudience      = "auth.audience"
	KeyAccessTTLMinutes  = "auth.access_ttl_minutes"
	KeyRefreshTTLMinutes = "auth.refresh_ttl_minutes"
	KeyAllowedOrigins    = "cors.allowed_origins"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	DatabaseDriver    string
	DatabaseDSN       string
	LogLevel          string
	LogFormat         string
	AuthSigningSecret string
	AuthIssuer        string
	AuthAudience      string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	AllowedOrigins    []string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault(KeyHTTPAddress, defaultHTTPAddress)
	configViper.SetDefault(KeyDatabaseDriver, defaultDatabaseDriver)
	configViper.SetDefault(KeyDatabaseDSN, defaultDatabaseDSN)
	configViper.SetDefault(KeyLogLevel, defaultLogLevel)
	configViper.SetDefault(KeyLogFormat, defaultLogFormat)
	configViper.SetDefault(KeyAuthIssuer, defaultAuthIssuer)
	configViper.SetDefault(KeyAuthAudience, defaultAuthAudience)
	configViper.SetDefault(KeyAccessTTLMinutes, defaultAccessTTLMinutes)
	configViper.SetDefault(KeyRefreshTTLMinutes, defaultRefreshTTLMinutes)
	configViper.SetDefault(KeyAllowedOrigins, defaultAllowedOrigin)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       strings.TrimSpace(configViper.GetString(KeyHTTPAddress)),
		DatabaseDriver:    strings.ToLower(strings.TrimSpace(configViper.GetString(KeyDatabaseDriver))),
		DatabaseDSN:       strings.TrimSpace(configViper.GetString(KeyDatabaseDSN)),
		LogLevel:          configViper.GetString(KeyLogLevel),
		LogFormat:         strings.ToLower(strings.TrimSpace(configViper.GetString(KeyLogFormat))),
		AuthSigningSecret: configViper.GetString(KeyAuthSigningSecret),
		AuthIssuer:        strings.TrimSpace(configViper.GetString(KeyAuthIssuer)),
		AuthAudience:      strings.TrimSpace(configViper.GetString(KeyAuthAudience)),
		AccessTokenTTL:    time.Duration(configViper.GetInt(KeyAccessTTLMinutes)) * time.Minute,
		RefreshTokenTTL:   time.Duration(configViper.GetInt(KeyRefreshTTLMinutes)) * time.Minute,
		AllowedOrigins:    splitOrigins(configViper.GetStringSlice(KeyAllowedOrigins)),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.AuthSigningSecret) == "" {
		return fmt.Errorf("%s is required", KeyAuthSigningSecret)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("%s is required", KeyDatabaseDSN)
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%s must be sqlite or postgres, got %q", KeyDatabaseDriver, c.DatabaseDriver)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("%s must be json or console, got %q", KeyLogFormat, c.LogFormat)
	}
	if c.AuthIssuer == "" || c.AuthAudience == "" {
		return fmt.Errorf("%s and %s are required", KeyAuthIssuer, KeyAuthAudience)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("%s and %s must be positive", KeyAccessTTLMinutes, KeyRefreshTTLMinutes)
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("%s must list at least one origin", KeyAllowedOrigins)
	}
	return nil
}

// splitOrigins accepts both list values and a single comma separated env value.
func splitOrigins(values []string) []string {
	origins := make([]string, 0, len(values))
	for _, value := range values {
		for _, origin := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	return origins
}
