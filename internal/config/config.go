// Package config loads the CLI's YAML configuration file and applies
// environment overrides. The file is optional: every setting has a default or
// an environment fallback so the tool can run against a local backend with no
// config at all.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "epi-admin.yml"

	defaultBaseURL   = "http://localhost:8000"
	defaultRenderer  = "tui"
	defaultTokenFile = ".epi-admin-tokens.json"
	defaultPageTheme = "light"
)

// AppConfig holds runtime configuration loaded from YAML.
type AppConfig struct {
	BaseURL   string            `yaml:"base_url"`
	Renderer  string            `yaml:"renderer"`
	TokenFile string            `yaml:"token_file"`
	RedisURL  string            `yaml:"redis_url"`
	Auth      AuthConfig        `yaml:"auth"`
	AI        AIConfig          `yaml:"ai"`
	Theme     ThemeConfig       `yaml:"theme"`
	Languages []string          `yaml:"languages"`
	Headers   map[string]string `yaml:"headers"`
}

// AuthConfig carries login credentials. Password may be left empty in the
// file and supplied via EPI_ADMIN_PASSWORD instead.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// AIConfig selects the record-generation backend. An empty provider means
// generation goes through the backend's own endpoint.
type AIConfig struct {
	Provider string `yaml:"provider"` // "anthropic" | "openai" | ""
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
}

// ThemeConfig selects the HTML renderer theme and optional CSS variable
// overrides.
type ThemeConfig struct {
	Name    string            `yaml:"name"`
	CSSVars map[string]string `yaml:"css_vars"`
}

// Load reads the YAML file at path and returns the resolved configuration.
// A missing file is not an error when path is the default location.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}

	usingDefault := path == "" || path == DefaultConfigPath
	if path == "" {
		path = DefaultConfigPath
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && usingDefault:
		// run on defaults and environment alone
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyEnv() {
	setIfEnv(&c.BaseURL, "EPI_ADMIN_BASE_URL")
	setIfEnv(&c.Auth.Username, "EPI_ADMIN_USERNAME")
	setIfEnv(&c.Auth.Password, "EPI_ADMIN_PASSWORD")
	setIfEnv(&c.RedisURL, "EPI_ADMIN_REDIS_URL")
	setIfEnv(&c.AI.APIKey, "EPI_ADMIN_AI_API_KEY")

	// Fall back to the vendors' conventional variables when no explicit key
	// is configured.
	if c.AI.APIKey == "" {
		switch c.AI.Provider {
		case "anthropic":
			c.AI.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			c.AI.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

func (c *AppConfig) applyDefaults() {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Renderer == "" {
		c.Renderer = defaultRenderer
	}
	if c.TokenFile == "" {
		c.TokenFile = defaultTokenFile
	}
	if c.Theme.Name == "" {
		c.Theme.Name = defaultPageTheme
	}
}

// Validate rejects configurations the engines cannot act on.
func (c *AppConfig) Validate() error {
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("config: base_url %q must be an http(s) URL", c.BaseURL)
	}
	switch c.AI.Provider {
	case "", "anthropic", "openai":
	default:
		return fmt.Errorf("config: unknown ai provider %q", c.AI.Provider)
	}
	if c.AI.Provider != "" && c.AI.APIKey == "" {
		return errors.New("config: ai provider configured without an api key")
	}
	return nil
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
