package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set(KeyAuthSigningSecret, "secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress || cfg.DatabaseDriver != "sqlite" || cfg.DatabaseDSN != defaultDatabaseDSN {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.AccessTokenTTL != time.Hour || cfg.RefreshTokenTTL != 7*24*time.Hour {
		t.Fatalf("unexpected token ttls: %v %v", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("FLASHDECK_AUTH_SIGNING_SECRET", "env-secret")
	t.Setenv("FLASHDECK_DATABASE_DRIVER", "Postgres")
	t.Setenv("FLASHDECK_DATABASE_DSN", "postgres://flashdeck@localhost/flashdeck")
	t.Setenv("FLASHDECK_CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("FLASHDECK_AUTH_ACCESS_TTL_MINUTES", "15")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.AuthSigningSecret != "env-secret" || cfg.DatabaseDriver != "postgres" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("unexpected access ttl %v", cfg.AccessTokenTTL)
	}
	if strings.Join(cfg.AllowedOrigins, "|") != "https://a.example.com|https://b.example.com" {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
}

func TestLoadValidates(t *testing.T) {
	testCases := []struct {
		name      string
		overrides map[string]any
		contains  string
	}{
		{name: "missing secret", overrides: map[string]any{KeyAuthSigningSecret: " "}, contains: KeyAuthSigningSecret},
		{name: "unknown driver", overrides: map[string]any{KeyDatabaseDriver: "mysql"}, contains: KeyDatabaseDriver},
		{name: "blank dsn", overrides: map[string]any{KeyDatabaseDSN: ""}, contains: KeyDatabaseDSN},
		{name: "unknown log format", overrides: map[string]any{KeyLogFormat: "xml"}, contains: KeyLogFormat},
		{name: "zero ttl", overrides: map[string]any{KeyAccessTTLMinutes: 0}, contains: KeyAccessTTLMinutes},
		{name: "no origins", overrides: map[string]any{KeyAllowedOrigins: " , "}, contains: KeyAllowedOrigins},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			configViper.Set(KeyAuthSigningSecret, "secret")
			for key, value := range testCase.overrides {
				configViper.Set(key, value)
			}
			_, err := Load(configViper)
			if err == nil || !strings.Contains(err.Error(), testCase.contains) {
				t.Fatalf("expected error mentioning %q, got %v", testCase.contains, err)
			}
		})
	}
}
