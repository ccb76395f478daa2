package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("KIE_API_KEY", "kie-key")
	t.Setenv("KIE_BASE_URL", "https://api.kie.ai")
	t.Setenv("DATABASE_URL", "postgres://localhost/reklamai")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service-key")
	t.Setenv("SUPABASE_JWT_SECRET", "jwt-secret")
}

func TestLoadConfig_EnvOnly(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), true)
	require.NoError(t, err)

	assert.Equal(t, "kie-key", cfg.KIE.APIKey)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 10*time.Second, cfg.KIE.StatusTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Sync.StaleAfter)
	assert.Equal(t, time.Hour, cfg.Storage.SignedURLTTL)
	assert.True(t, cfg.Runtime.Dev)
	assert.False(t, cfg.StorageEnabled())
}

func TestLoadConfig_YAMLWithEnvOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("KIE_API_KEY", "from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
http:
  port: 9090
kie:
  api_key: from-file
  status_timeout: 3s
storage:
  bucket: outputs
  region: us-east-1
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := LoadConfig(path, false)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "from-env", cfg.KIE.APIKey)
	assert.Equal(t, 3*time.Second, cfg.KIE.StatusTimeout)
	assert.True(t, cfg.StorageEnabled())
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
		want  string
	}{
		{"api key", "KIE_API_KEY", "kie.api_key is required"},
		{"base url", "KIE_BASE_URL", "kie.base_url is required"},
		{"database", "DATABASE_URL", "database.url is required"},
		{"service role", "SUPABASE_SERVICE_ROLE_KEY", "auth.service_role_key is required"},
		{"jwt secret", "SUPABASE_JWT_SECRET", "auth.jwt_secret is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")

			_, err := LoadConfig("", false)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestSanitizeKIEBaseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", DefaultKIEBaseURL},
		{"https://api.kie.ai", "https://api.kie.ai"},
		{"https://api.kie.ai/api/v1/jobs", "https://api.kie.ai"},
		{"https://kie.ai", DefaultKIEBaseURL},
		{"https://www.kie.ai/market", DefaultKIEBaseURL},
		{"https://proxy.example.com/docs/x", DefaultKIEBaseURL},
		{"https://proxy.example.com:8443/v1", "https://proxy.example.com:8443"},
		{"not a url", DefaultKIEBaseURL},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeKIEBaseURL(tt.in))
		})
	}
}
