package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Data   DataConfig
	Match  MatchConfig
	Gemini GeminiConfig
}

// DataConfig holds storage locations.
type DataConfig struct {
	Dir string
}

// MatchConfig holds lexical matching thresholds.
type MatchConfig struct {
	MinScore        float64 `mapstructure:"min_score"`
	GeminiThreshold float64 `mapstructure:"gemini_threshold"`
}

// GeminiConfig holds arbiter settings.
type GeminiConfig struct {
	Enabled   bool
	Model     string
	APIKey    string `mapstructure:"api_key"`
	APIKeyEnv string `mapstructure:"api_key_env"`
}

// Load reads configuration from file and env. Env var overrides use prefix FACTURO_.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("data.dir", filepath.Join(os.Getenv("HOME"), ".local", "share", "facturo"))
	v.SetDefault("match.min_score", 0.18)
	v.SetDefault("match.gemini_threshold", 0.30)
	v.SetDefault("gemini.enabled", true)
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.api_key_env", "GEMINI_API_KEY")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("FACTURO_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "facturo"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("FACTURO")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// ResolveAPIKey picks the Gemini API key with explicit > config > env priority.
func (c Config) ResolveAPIKey(explicit string) string {
	if k := strings.TrimSpace(explicit); k != "" {
		return k
	}
	if k := strings.TrimSpace(c.Gemini.APIKey); k != "" {
		return k
	}
	env := c.Gemini.APIKeyEnv
	if env == "" {
		env = "GEMINI_API_KEY"
	}
	return strings.TrimSpace(os.Getenv(env))
}
