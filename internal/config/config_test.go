package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:            "8264",
		Env:             "development",
		JWTSecret:       "a-development-secret-that-is-long-enough",
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 168 * time.Hour,
		ActionTokenTTL:  time.Minute,
		DBPassword:      "password",
		DBSSLMode:       "disable",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid development config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing port",
			mutate:  func(c *Config) { c.Port = "" },
			wantErr: "PORT is required",
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.JWTSecret = "" },
			wantErr: "JWT_SECRET is required",
		},
		{
			name:    "non-positive ttl",
			mutate:  func(c *Config) { c.AccessTokenTTL = 0 },
			wantErr: "token TTLs must be positive",
		},
		{
			name: "production keeps default secret",
			mutate: func(c *Config) {
				c.Env = "production"
				c.JWTSecret = "your-secret-key-change-in-production"
				c.DBPassword = "something-strong"
			},
			wantErr: "must be changed from the default",
		},
		{
			name: "production short secret",
			mutate: func(c *Config) {
				c.Env = "production"
				c.JWTSecret = "short"
				c.DBPassword = "something-strong"
			},
			wantErr: "at least 32 characters",
		},
		{
			name: "production weak db password",
			mutate: func(c *Config) {
				c.Env = "production"
				c.DBPassword = "password"
			},
			wantErr: "strong DB_PASSWORD",
		},
		{
			name: "production valid",
			mutate: func(c *Config) {
				c.Env = "production"
				c.DBPassword = "something-strong"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIsProduction(t *testing.T) {
	assert.True(t, (&Config{Env: "production"}).IsProduction())
	assert.True(t, (&Config{Env: "prod"}).IsProduction())
	assert.False(t, (&Config{Env: "development"}).IsProduction())
	assert.False(t, (&Config{Env: "test"}).IsProduction())
}

func TestLoadConfigDefaultsAndEnv(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("PORT", "9000")
	t.Setenv("JWT_SECRET", "an-environment-provided-secret-value")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "an-environment-provided-secret-value", cfg.JWTSecret)

	// Untouched values fall back to defaults.
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, time.Minute, cfg.ActionTokenTTL)
	assert.Equal(t, "localhost:6379", cfg.RedisURL)
}
