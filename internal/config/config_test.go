package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBackend is an in-memory ConfigBackend.
type memBackend struct {
	strs map[string]string
	ints map[string]int
}

func newMemBackend() *memBackend {
	return &memBackend{strs: map[string]string{}, ints: map[string]int{}}
}

func (m *memBackend) GetString(key string) (string, bool, error) {
	v, ok := m.strs[key]
	return v, ok, nil
}

func (m *memBackend) GetInt(key string) (int, bool, error) {
	v, ok := m.ints[key]
	return v, ok, nil
}

func (m *memBackend) SetString(key, val string) error {
	m.strs[key] = val
	return nil
}

func (m *memBackend) SetInt(key string, val int) error {
	m.ints[key] = val
	return nil
}

func (m *memBackend) Delete(key string) error {
	delete(m.strs, key)
	delete(m.ints, key)
	return nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GROQ_API_KEY", "")
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ATLAS_COMPLETION_API_KEY", "test-key")

	cfg, err := loadWith(newMemBackend())
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "development", cfg.Log.Mode)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.Completion.BaseURL)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Completion.Model)
	assert.Equal(t, 60*time.Second, cfg.Completion.TimeoutDuration())
	assert.Equal(t, "local", cfg.ObjectStore.Backend)
	assert.Equal(t, "study-materials", cfg.ObjectStore.Bucket)
	assert.Equal(t, "test-key", cfg.Completion.APIKey)
}

func TestMissingAPIKeyFailsFast(t *testing.T) {
	clearEnv(t)

	_, err := loadWith(newMemBackend())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
}

func TestLoadLocalWithoutAPIKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("ATLAS_CONFIG_FILE", filepath.Join(t.TempDir(), "config.json"))
	t.Setenv("ATLAS_AUTH_JWT_SECRET", "shh")

	cfg, err := LoadLocal()
	require.NoError(t, err)
	assert.Empty(t, cfg.Completion.APIKey)
	assert.Equal(t, "shh", cfg.Auth.JWTSecret)

	t.Setenv("ATLAS_OBJECTSTORE_BACKEND", "gcs")
	_, err = LoadLocal()
	assert.ErrorContains(t, err, "objectstore.backend")
}

func TestGroqKeyFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", "  groq-key  ")

	cfg, err := loadWith(newMemBackend())
	require.NoError(t, err)
	assert.Equal(t, "groq-key", cfg.Completion.APIKey)
}

func TestAtlasKeyWinsOverGroqKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", "groq-key")
	t.Setenv("ATLAS_COMPLETION_API_KEY", "atlas-key")

	cfg, err := loadWith(newMemBackend())
	require.NoError(t, err)
	assert.Equal(t, "atlas-key", cfg.Completion.APIKey)
}

func TestBackendValuesApplied(t *testing.T) {
	clearEnv(t)
	t.Setenv("ATLAS_COMPLETION_API_KEY", "k")

	b := newMemBackend()
	b.ints["server.port"] = 5050
	b.strs["completion.model"] = "llama-3.3-70b-versatile"
	b.strs["objectstore.backend"] = "s3"
	// Secrets are never read from the backend.
	b.strs["auth.jwt_secret"] = "from-file"

	cfg, err := loadWith(b)
	require.NoError(t, err)
	assert.Equal(t, 5050, cfg.Server.Port)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.Completion.Model)
	assert.Equal(t, "s3", cfg.ObjectStore.Backend)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestEnvOverridesBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("ATLAS_COMPLETION_API_KEY", "k")
	t.Setenv("ATLAS_SERVER_PORT", "6060")
	t.Setenv("ATLAS_COMPLETION_TIMEOUT", "5s")
	t.Setenv("ATLAS_AUTH_JWT_SECRET", "shh")

	b := newMemBackend()
	b.ints["server.port"] = 5050

	cfg, err := loadWith(b)
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Completion.TimeoutDuration())
	assert.Equal(t, "shh", cfg.Auth.JWTSecret)
}

func TestInvalidIntEnvKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("ATLAS_COMPLETION_API_KEY", "k")
	t.Setenv("ATLAS_SERVER_PORT", "not-a-number")

	cfg, err := loadWith(newMemBackend())
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("ATLAS_COMPLETION_API_KEY", "k")
	t.Setenv("ATLAS_OBJECTSTORE_BACKEND", "gcs")

	_, err := loadWith(newMemBackend())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "objectstore.backend")
}

func TestTimeoutDurationFallback(t *testing.T) {
	assert.Equal(t, 60*time.Second, CompletionConfig{Timeout: "soon"}.TimeoutDuration())
	assert.Equal(t, 60*time.Second, CompletionConfig{Timeout: "-1s"}.TimeoutDuration())
	assert.Equal(t, 90*time.Second, CompletionConfig{Timeout: "90s"}.TimeoutDuration())
}

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	b := newFileBackend(path)
	require.NoError(t, b.SetInt("server.port", 7070))
	require.NoError(t, b.SetString("log.level", "debug"))

	reloaded := newFileBackend(path)
	port, ok, err := reloaded.GetInt("server.port")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7070, port)

	level, ok, err := reloaded.GetString("log.level")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "debug", level)

	require.NoError(t, reloaded.Delete("log.level"))
	_, ok, _ = newFileBackend(path).GetString("log.level")
	assert.False(t, ok)
}

func TestFileBackendRejectsFractionalInt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server.port": 4000.5}`), 0o600))

	_, ok, err := newFileBackend(path).GetInt("server.port")
	assert.True(t, ok)
	assert.Error(t, err)
}

func TestSetKey(t *testing.T) {
	b := newMemBackend()

	require.NoError(t, setKey(b, "server.port", "4100"))
	assert.Equal(t, 4100, b.ints["server.port"])

	require.NoError(t, setKey(b, "completion.model", "m"))
	assert.Equal(t, "m", b.strs["completion.model"])

	assert.Error(t, setKey(b, "server.port", "abc"))
	assert.ErrorContains(t, setKey(b, "auth.jwt_secret", "x"), "ATLAS_AUTH_JWT_SECRET")
	assert.ErrorContains(t, setKey(b, "nope", "x"), "unknown config key")
}

func TestSetKeyValidatesChoices(t *testing.T) {
	b := newMemBackend()

	require.NoError(t, setKey(b, "log.mode", "production"))
	assert.Equal(t, "production", b.strs["log.mode"])

	assert.ErrorContains(t, setKey(b, "log.level", "verbose"), "want one of debug, info, warn, error")
	assert.ErrorContains(t, setKey(b, "objectstore.backend", "gcs"), "want one of local, s3")
	assert.ErrorContains(t, setKey(b, "server.port", "70000"), "invalid server.port")
	assert.NotContains(t, b.strs, "log.level")
}

func TestUnsetKey(t *testing.T) {
	b := newMemBackend()
	b.strs["completion.model"] = "m"

	require.NoError(t, unsetKey(b, "completion.model"))
	assert.NotContains(t, b.strs, "completion.model")

	assert.Error(t, unsetKey(b, "auth.jwt_secret"))
	assert.Error(t, unsetKey(b, "nope"))
}

func TestSetKeyWritesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("ATLAS_CONFIG_FILE", path)

	require.NoError(t, SetKey("objectstore.bucket", "notes"))

	v, ok, err := newFileBackend(path).GetString("objectstore.bucket")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "notes", v)
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Completion.APIKey = "secret"
	cfg.Auth.JWTSecret = "secret"

	shown := map[string]KeyInfo{}
	for _, ki := range ShowAll(cfg) {
		assert.NotEqual(t, "secret", ki.Value, ki.Key)
		shown[ki.Key] = ki
	}
	assert.Equal(t, "(set)", shown["completion.api_key"].Value)
	assert.True(t, shown["completion.api_key"].Secret)
	assert.Equal(t, "(not set)", shown["objectstore.s3_access_key_id"].Value)
	assert.Equal(t, "4000", shown["server.port"].Value)
	assert.Equal(t, "ATLAS_SERVER_PORT", shown["server.port"].EnvVar)
	assert.NotContains(t, ValidKeys(), "completion.api_key")
	assert.Contains(t, ValidKeys(), "server.port")
}
