package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                   "development",
		DBSSLMode:             "disable",
		JWTSecret:             "secure-secret-at-least-32-chars-long",
		DBPassword:            "secure-password",
		Port:                  "8080",
		RedisURL:              "redis://localhost:6379",
		MaxOpenReports:        3,
		ReputationDecayRate:   0.8,
		ScanMaxBytes:          1024,
		ScanBlockMillis:       250,
		SubjectCacheTTLSecond: 5,
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateModerationBounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative report cap", func(c *Config) { c.MaxOpenReports = -1 }},
		{"decay rate above one", func(c *Config) { c.ReputationDecayRate = 1.5 }},
		{"negative scan bytes", func(c *Config) { c.ScanMaxBytes = -1 }},
		{"missing redis", func(c *Config) { c.RedisURL = "" }},
		{"missing jwt secret", func(c *Config) { c.JWTSecret = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	c := validConfig()
	c.ReputationDecayWindowHours = 72
	assert.Equal(t, 250*time.Millisecond, c.ScanBlock())
	assert.Equal(t, 72*time.Hour, c.DecayWindow())
	assert.Equal(t, 5*time.Second, c.SubjectCacheTTL())
}

func TestLoadConfig_DefaultsAndNormalization(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("DB_SSLMODE")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("DB_SSLMODE", "  DISABLE  ")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, 3, c.MaxOpenReports)
	assert.Equal(t, 4, c.EscalationThreshold)
	assert.Equal(t, "restrict", c.RestrictionFlagPrefix)
	assert.Equal(t, int64(16), c.ScanBatchSize)
	assert.Equal(t, "moderation:ingress", c.ScanIngressStream)
}
