package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

const (
	defaultRateDelayMS = 500
	defaultWorkers     = 1
)

// Settings is the resolved run configuration. Environment variables take
// precedence over the config file, so CI and one-off runs need no file.
type Settings struct {
	BaseURL   string
	Token     string
	AccountID string
	RateDelay time.Duration
	Workers   int
}

// Config represents the cwharvest configuration
type Config struct {
	file *ini.File
}

// Load reads the configuration file from ~/.cwharvest/config
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(home, ".cwharvest", "config")

	// If config file doesn't exist, return empty config (not an error)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &Config{file: ini.Empty()}, nil
	}

	file, err := ini.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	return &Config{file: file}, nil
}

// GetString retrieves a string value from the config
// section.key format (e.g., "api.token")
func (c *Config) GetString(key string) string {
	section, keyName := c.parseKey(key)
	if section == "" {
		return ""
	}

	return c.file.Section(section).Key(keyName).String()
}

// GetIntWithFallback retrieves an int value with a fallback default
func (c *Config) GetIntWithFallback(key string, fallback int) int {
	val := c.GetString(key)
	if val == "" {
		return fallback
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}

	return intVal
}

// parseKey splits a dotted key into section and key name
// e.g., "client.rate_delay_ms" -> ("client", "rate_delay_ms")
// The last dot is the separator, for Git config compatibility
func (c *Config) parseKey(key string) (string, string) {
	lastDot := strings.LastIndex(key, ".")
	if lastDot == -1 {
		return "", ""
	}

	return key[:lastDot], key[lastDot+1:]
}

// Resolve merges environment variables over the config file and validates
// the result. The three connection settings are required.
func Resolve() (*Settings, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	s := &Settings{
		BaseURL:   firstOf(os.Getenv("CHATWOOT_API_URL"), cfg.GetString("api.url")),
		Token:     firstOf(os.Getenv("CHATWOOT_ACCESS_TOKEN"), cfg.GetString("api.token")),
		AccountID: firstOf(os.Getenv("CHATWOOT_ACCOUNT_ID"), cfg.GetString("api.account_id")),
	}

	delayMS := envInt("CHATWOOT_RATE_DELAY_MS", cfg.GetIntWithFallback("client.rate_delay_ms", defaultRateDelayMS))
	if delayMS <= 0 {
		delayMS = defaultRateDelayMS
	}
	s.RateDelay = time.Duration(delayMS) * time.Millisecond

	s.Workers = envInt("CHATWOOT_WORKERS", cfg.GetIntWithFallback("client.workers", defaultWorkers))
	if s.Workers < 1 {
		s.Workers = defaultWorkers
	}

	var missing []string
	if s.BaseURL == "" {
		missing = append(missing, "CHATWOOT_API_URL")
	}
	if s.Token == "" {
		missing = append(missing, "CHATWOOT_ACCESS_TOKEN")
	}
	if s.AccountID == "" {
		missing = append(missing, "CHATWOOT_ACCOUNT_ID")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s (set the environment variables or the api section of ~/.cwharvest/config)", strings.Join(missing, ", "))
	}

	return s, nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return n
}
