package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PY_BACKEND_URL", "")
	t.Setenv("OTP_TTL", "")
	t.Setenv("MINIO_ENDPOINT", "")
	t.Setenv("TRUSTED_PROXIES", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.AIServiceURL)
	assert.Equal(t, 30*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 5*time.Minute, cfg.SignedURLExpiry)
	assert.True(t, cfg.StoragePrivate)
	assert.Empty(t, cfg.TrustedProxies, "forwarded headers are ignored unless configured")
	assert.False(t, cfg.StorageConfigured())
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("AI_TIMEOUT", "15s")
	t.Setenv("RATE_LIMIT", "3")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("MINIO_ENDPOINT", "minio:9000")
	t.Setenv("MINIO_ACCESS_KEY", "ak")
	t.Setenv("MINIO_SECRET_KEY", "sk")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 172.16.0.1")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.AITimeout)
	assert.Equal(t, 3, cfg.RateLimit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.StorageConfigured())
	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.1"}, cfg.TrustedProxies)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT", "soon")
	t.Setenv("SMTP_PORT", "abc")

	cfg := Load()

	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 587, cfg.SMTPPort)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.UserStore = "postgres"
	cfg.PostgresDSN = ""
	cfg.OTPTTL = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_DSN")
	assert.Contains(t, err.Error(), "OTP_TTL")

	cfg = Load()
	cfg.UserStore = "sqlite"
	assert.ErrorContains(t, cfg.Validate(), "USER_STORE")
}
