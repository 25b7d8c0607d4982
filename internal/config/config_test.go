package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644))
	return dir
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	viper.Reset()
	dir := writeConfig(t, `
jwt:
  secret: short-secret-is-fine-in-debug
storage:
  local_path: `+filepath.Join(t.TempDir(), "uploads")+`
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, int64(3600), cfg.JWT.AccessTokenTTLSeconds)
	assert.Equal(t, 5, cfg.Security.Login.MaxAttempts)
	assert.Equal(t, 30, cfg.Security.Login.LockMinutes)
	assert.Equal(t, 15, cfg.Security.Verification.TTLMinutes)
	assert.Equal(t, 30, cfg.Security.PasswordReset.TTLMinutes)
	assert.Equal(t, 60, cfg.Security.ResendCooldownSeconds)
	assert.Equal(t, int64(5*1024*1024), cfg.Storage.MaxImageBytes)
	assert.True(t, cfg.Cleanup.Enabled)

	_, err = os.Stat(cfg.Storage.LocalPath)
	assert.NoError(t, err)
}

func TestLoadConfigOverridesFromFile(t *testing.T) {
	viper.Reset()
	dir := writeConfig(t, `
server:
  mode: debug
database:
  driver: postgres
jwt:
  secret: another-secret
  access_token_ttl_seconds: 900
security:
  login:
    max_attempts: 3
    lock_minutes: 10
  device_bypass_email: demo@example.com
storage:
  local_path: `+filepath.Join(t.TempDir(), "uploads")+`
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, int64(900), cfg.JWT.AccessTokenTTLSeconds)
	assert.Equal(t, 3, cfg.Security.Login.MaxAttempts)
	assert.Equal(t, "demo@example.com", cfg.Security.DeviceBypassEmail)
}

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Mode: "release"},
		Database: DatabaseConfig{Driver: "mysql"},
		JWT: JWTConfig{
			Secret:                 "0123456789abcdef0123456789abcdef",
			AccessTokenTTLSeconds:  3600,
			RefreshTokenTTLSeconds: 86400,
		},
		Security: SecurityConfig{
			Verification:  LockoutPolicy{MaxAttempts: 5, LockMinutes: 60, TTLMinutes: 15},
			Login:         LockoutPolicy{MaxAttempts: 5, LockMinutes: 30},
			PasswordReset: LockoutPolicy{MaxAttempts: 5, LockMinutes: 60, TTLMinutes: 30},
			EmailChange:   LockoutPolicy{MaxAttempts: 5, LockMinutes: 60, TTLMinutes: 15},
		},
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	short := validConfig()
	short.JWT.Secret = "too-short"
	assert.Error(t, short.Validate())

	driver := validConfig()
	driver.Database.Driver = "sqlite"
	assert.Error(t, driver.Validate())

	lifetime := validConfig()
	lifetime.JWT.RefreshTokenTTLSeconds = 0
	assert.Error(t, lifetime.Validate())

	policy := validConfig()
	policy.Security.EmailChange.MaxAttempts = 0
	assert.Error(t, policy.Validate())
}

func TestPolicyDurations(t *testing.T) {
	p := LockoutPolicy{MaxAttempts: 5, LockMinutes: 60, TTLMinutes: 15}
	assert.Equal(t, "1h0m0s", p.LockDuration().String())
	assert.Equal(t, "15m0s", p.TTL().String())

	s := SecurityConfig{ResendCooldownSeconds: 60}
	assert.Equal(t, "1m0s", s.ResendCooldown().String())
}
