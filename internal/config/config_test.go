package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// these tests mutate the environment, so no t.Parallel

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FACTURO_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	c, err := Load()
	require.NoError(t, err)
	require.InDelta(t, 0.18, c.Match.MinScore, 1e-9)
	require.InDelta(t, 0.30, c.Match.GeminiThreshold, 1e-9)
	require.True(t, c.Gemini.Enabled)
	require.Equal(t, "gemini-1.5-flash", c.Gemini.Model)
	require.Equal(t, "GEMINI_API_KEY", c.Gemini.APIKeyEnv)
	require.NotEmpty(t, c.Data.Dir)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[data]
dir = "/tmp/facturo-test"

[match]
min_score = 0.25
gemini_threshold = 0.4

[gemini]
enabled = false
model = "gemini-1.5-pro"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("FACTURO_CONFIG", path)

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/facturo-test", c.Data.Dir)
	require.InDelta(t, 0.25, c.Match.MinScore, 1e-9)
	require.InDelta(t, 0.4, c.Match.GeminiThreshold, 1e-9)
	require.False(t, c.Gemini.Enabled)
	require.Equal(t, "gemini-1.5-pro", c.Gemini.Model)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FACTURO_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("FACTURO_GEMINI_MODEL", "gemini-2.0-flash")

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, "gemini-2.0-flash", c.Gemini.Model)
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")

	c := Config{Gemini: GeminiConfig{APIKeyEnv: "GEMINI_API_KEY"}}
	require.Equal(t, "from-env", c.ResolveAPIKey(""))

	c.Gemini.APIKey = "from-config"
	require.Equal(t, "from-config", c.ResolveAPIKey(""))

	require.Equal(t, "from-flag", c.ResolveAPIKey("from-flag"))
}

func TestResolveAPIKeyCustomEnv(t *testing.T) {
	t.Setenv("MY_GEMINI_KEY", "custom")

	c := Config{Gemini: GeminiConfig{APIKeyEnv: "MY_GEMINI_KEY"}}
	require.Equal(t, "custom", c.ResolveAPIKey(""))
}

func TestResolveAPIKeyEmpty(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	c := Config{Gemini: GeminiConfig{APIKeyEnv: "GEMINI_API_KEY"}}
	require.Empty(t, c.ResolveAPIKey("   "))
}
