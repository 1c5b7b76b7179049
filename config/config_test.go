package config

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseCreds(t *testing.T) {
	cfg := &Config{BasicAuthCreds: "admin:secret, ops : hunter2"}

	creds, err := cfg.parseCreds()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"admin": "secret", "ops": "hunter2"}, creds)
}

func TestParseCreds_Invalid(t *testing.T) {
	for _, raw := range []string{"", "admin", "admin:a:b"} {
		cfg := &Config{BasicAuthCreds: raw}

		_, err := cfg.parseCreds()
		assert.True(t, errors.Is(err, errors.NotValid), "input %q", raw)
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("BASIC_AUTH_CREDS", "")
	t.Setenv("OPERATORS_EMAIL", "a@example.com,b@example.com")

	cfg, err := NewConfig(nil, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "log", cfg.Email.Backend)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Email.Operators)
	assert.Equal(t, 5, cfg.Poll.Concurrency)
	assert.Equal(t, map[string]string{"admin": "password"}, cfg.GetCreds())
}

func TestNewConfig_ProductionRequiresCreds(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("BASIC_AUTH_CREDS", "")

	_, err := NewConfig(nil, zap.NewNop())
	assert.Error(t, err)
}
