package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBase() Config {
	cfg := Default()
	cfg.Auth.SecretKey = "jwt-secret"
	cfg.Tokens.HMACSecretKey = strings.Repeat("k", 32)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"short hmac key", func(c *Config) { c.Tokens.HMACSecretKey = "short" }, "hmac_secret_key"},
		{"missing jwt secret", func(c *Config) { c.Auth.SecretKey = "" }, "secret_key"},
		{"unsupported algorithm", func(c *Config) { c.Auth.JWTAlgorithm = "RS256" }, "jwt_algorithm"},
		{"bad qr level", func(c *Config) { c.Tokens.QRErrorCorrection = "X" }, "qr_error_correction"},
		{"tiny token size", func(c *Config) { c.Tokens.QRTokenSizeBytes = 8 }, "qr_token_size_bytes"},
		{"threshold out of range", func(c *Config) { c.OCR.ConfidenceThreshold = 1.5 }, "confidence_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBase()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("SECRET_KEY", "env-jwt-secret")
	t.Setenv("HMAC_SECRET_KEY", strings.Repeat("h", 32))

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, 24, cfg.Tokens.EntryTokenExpireHours)
	assert.Equal(t, "env-jwt-secret", cfg.Auth.SecretKey)
}

func TestLoad_YAMLAndEnvLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: "9000"
  cors_origins: ["https://olymp.example"]
auth:
  secret_key: file-secret
tokens:
  hmac_secret_key: ` + strings.Repeat("f", 32) + `
  entry_token_expire_hours: 48
redis:
  url: redis://localhost:6379/0
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	// Env wins over the file.
	t.Setenv("PORT", "9100")
	t.Setenv("OCR_CONFIDENCE_THRESHOLD", "0.85")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, "file-secret", cfg.Auth.SecretKey)
	assert.Equal(t, 48, cfg.Tokens.EntryTokenExpireHours)
	assert.Equal(t, []string{"https://olymp.example"}, cfg.Server.CORSOrigins)
	assert.InDelta(t, 0.85, cfg.OCR.ConfidenceThreshold, 1e-9)

	// Broker falls back to the Redis URL.
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.BrokerURL)
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	t.Setenv("SECRET_KEY", "env-jwt-secret")
	t.Setenv("HMAC_SECRET_KEY", "too-short")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hmac_secret_key")
}
