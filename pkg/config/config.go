package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Shell  ShellConfig  `json:"shell" envPrefix:"SHELL_"`
	Bridge BridgeConfig `json:"bridge" envPrefix:"BRIDGE_"`
	Audit  AuditConfig  `json:"audit" envPrefix:"AUDIT_"`
	Log    LogConfig    `json:"log" envPrefix:"LOG_"`
}

type ShellConfig struct {
	// TimeoutSeconds bounds every spawned process.
	TimeoutSeconds int `json:"timeout_seconds" env:"TIMEOUT_SECONDS"`
	// HomeDir is the initial tracked working directory.
	HomeDir string `json:"home_dir" env:"HOME_DIR"`
	// PolicyFile optionally replaces the default allow/block lists.
	PolicyFile string `json:"policy_file,omitempty" env:"POLICY_FILE"`
	// Env is injected into every spawned process, overriding inherited
	// values. NEXIA_SHELL_ENV takes "KEY:value,KEY2:value2".
	Env map[string]string `json:"env,omitempty" env:"ENV"`
}

type BridgeConfig struct {
	ServiceURL           string `json:"service_url" env:"SERVICE_URL"`
	CookieDomain         string `json:"cookie_domain" env:"COOKIE_DOMAIN"`
	CookieFile           string `json:"cookie_file" env:"COOKIE_FILE"`
	StateFile            string `json:"state_file" env:"STATE_FILE"`
	DevToolsURL          string `json:"devtools_url,omitempty" env:"DEVTOOLS_URL"`
	ChromePath           string `json:"chrome_path,omitempty" env:"CHROME_PATH"`
	Headless             bool   `json:"headless" env:"HEADLESS"`
	DirectTimeoutSeconds int    `json:"direct_timeout_seconds" env:"DIRECT_TIMEOUT_SECONDS"`
	CookieTimeoutSeconds int    `json:"cookie_timeout_seconds" env:"COOKIE_TIMEOUT_SECONDS"`
	GuidedTimeoutSeconds int    `json:"guided_timeout_seconds" env:"GUIDED_TIMEOUT_SECONDS"`
	RefreshCron          string `json:"refresh_cron" env:"REFRESH_CRON"`
	AnthropicAPIKey      string `json:"anthropic_api_key,omitempty" env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey         string `json:"openai_api_key,omitempty" env:"OPENAI_API_KEY"`
	APIModel             string `json:"api_model,omitempty" env:"API_MODEL"`
}

type AuditConfig struct {
	Enabled bool   `json:"enabled" env:"ENABLED"`
	Path    string `json:"path" env:"PATH"`
}

type LogConfig struct {
	Level string `json:"level" env:"LEVEL"`
	File  string `json:"file,omitempty" env:"FILE"`
}

// Policy is the on-disk form of the command allow/block lists.
type Policy struct {
	Allowed []string `yaml:"allowed"`
	Blocked []string `yaml:"blocked"`
}

func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".nexia"
	}
	return filepath.Join(home, ".nexia")
}

func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.json")
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	dir := DefaultDir()
	return &Config{
		Shell: ShellConfig{
			TimeoutSeconds: 30,
			HomeDir:        home,
		},
		Bridge: BridgeConfig{
			ServiceURL:           "https://claude.ai",
			CookieDomain:         "claude.ai",
			CookieFile:           filepath.Join(dir, "claude_cookies.json"),
			StateFile:            filepath.Join(dir, "state", "bridge.json"),
			Headless:             true,
			DirectTimeoutSeconds: 10,
			CookieTimeoutSeconds: 15,
			GuidedTimeoutSeconds: 5,
			RefreshCron:          "*/30 * * * *",
			APIModel:             "",
		},
		Audit: AuditConfig{
			Enabled: true,
			Path:    filepath.Join(dir, "audit", "events.jsonl"),
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

// LoadConfig reads path over the defaults and then applies NEXIA_* environment
// overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "NEXIA_"}); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	cfg.Shell.HomeDir = expandHome(cfg.Shell.HomeDir)
	cfg.Shell.PolicyFile = expandHome(cfg.Shell.PolicyFile)
	cfg.Bridge.CookieFile = expandHome(cfg.Bridge.CookieFile)
	cfg.Bridge.StateFile = expandHome(cfg.Bridge.StateFile)
	cfg.Audit.Path = expandHome(cfg.Audit.Path)
	cfg.Log.File = expandHome(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (c *Config) Validate() error {
	if c.Shell.TimeoutSeconds <= 0 {
		return fmt.Errorf("shell.timeout_seconds must be > 0 (got %d)", c.Shell.TimeoutSeconds)
	}
	if strings.TrimSpace(c.Bridge.ServiceURL) == "" {
		return fmt.Errorf("bridge.service_url must not be empty")
	}
	if strings.TrimSpace(c.Bridge.CookieDomain) == "" {
		return fmt.Errorf("bridge.cookie_domain must not be empty")
	}
	if strings.TrimSpace(c.Bridge.CookieFile) == "" {
		return fmt.Errorf("bridge.cookie_file must not be empty")
	}
	if c.Bridge.DirectTimeoutSeconds < 0 || c.Bridge.CookieTimeoutSeconds < 0 || c.Bridge.GuidedTimeoutSeconds < 0 {
		return fmt.Errorf("bridge timeouts cannot be negative")
	}
	return nil
}

// LoadPolicy reads a YAML allow/block policy file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", path, err)
	}
	if len(p.Allowed) == 0 {
		return nil, fmt.Errorf("policy %s: allowed list is empty", path)
	}
	return &p, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
