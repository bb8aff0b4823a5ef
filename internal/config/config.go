// Package config loads and validates the tokenchat configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for tokenchat.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Identity IdentityConfig `json:"identity"`
	Relay    RelayConfig    `json:"relay"`
	Registry RegistryConfig `json:"registry"`
	Cache    CacheConfig    `json:"cache"`
	Bridge   BridgeConfig   `json:"bridge"`
	Metrics  MetricsConfig  `json:"metrics"`
	Send     SendConfig     `json:"send"`
}

type GeneralConfig struct {
	DataDir  string `json:"dataDir"`
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"`
}

// IdentityConfig describes the local user: display identity, linked wallets,
// and the wallet sends must come from.
type IdentityConfig struct {
	ID          string         `json:"id"`
	Username    string         `json:"username"`
	RelayWallet string         `json:"relayWallet"`
	Wallets     []WalletConfig `json:"wallets,omitempty"`
	IsBot       bool           `json:"isBot,omitempty"`
}

type WalletConfig struct {
	Address string `json:"address"`
	Label   string `json:"label,omitempty"`
}

// RelayConfig configures the relay endpoints and feed delivery.
type RelayConfig struct {
	BaseURL             string `json:"baseUrl"`
	WSURL               string `json:"wsUrl,omitempty"`
	APIKey              string `json:"apiKey,omitempty"`
	UsePush             bool   `json:"usePush"` // websocket stream instead of HTTP polling
	PollIntervalSeconds int    `json:"pollIntervalSeconds"`
	FetchTimeoutSeconds int    `json:"fetchTimeoutSeconds"`
}

// RegistryConfig points at the collection definitions directory.
type RegistryConfig struct {
	Dir string `json:"dir"`
}

type CacheConfig struct {
	Path              string `json:"path"`
	ProfileTTLMinutes int    `json:"profileTtlMinutes"`
	AssetTTLMinutes   int    `json:"assetTtlMinutes"`
}

// BridgeConfig configures the read-only Telegram mirror.
type BridgeConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chatId,omitempty"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
	Port     int    `json:"port"`
}

// SendConfig tunes the submission throttle.
type SendConfig struct {
	MaxBurst      int     `json:"maxBurst"`
	RatePerMinute float64 `json:"ratePerMinute"`
}

// DefaultConfigDir returns the default config directory (~/.tokenchat).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tokenchat"
	}
	return filepath.Join(home, ".tokenchat")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.DataDir = ExpandPath(cfg.General.DataDir)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Registry.Dir = ExpandPath(cfg.Registry.Dir)
	cfg.Cache.Path = ExpandPath(cfg.Cache.Path)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Relay.BaseURL == "" {
		errs = append(errs, "relay.baseUrl is required")
	}
	if cfg.Relay.UsePush && cfg.Relay.WSURL == "" {
		errs = append(errs, "relay.wsUrl is required when relay.usePush is set")
	}
	if cfg.Relay.PollIntervalSeconds < 1 || cfg.Relay.PollIntervalSeconds > 300 {
		errs = append(errs, "relay.pollIntervalSeconds must be between 1 and 300")
	}
	if cfg.Relay.FetchTimeoutSeconds < 1 {
		errs = append(errs, "relay.fetchTimeoutSeconds must be >= 1")
	}

	if !cfg.Identity.IsBot && cfg.Identity.RelayWallet == "" && len(cfg.Identity.Wallets) > 0 {
		errs = append(errs, "identity.relayWallet is required when wallets are linked")
	}
	for i, w := range cfg.Identity.Wallets {
		if !strings.HasPrefix(strings.ToLower(w.Address), "0x") {
			errs = append(errs, fmt.Sprintf("identity.wallets.%d: address must start with 0x", i))
		}
	}

	if cfg.Cache.ProfileTTLMinutes < 1 {
		errs = append(errs, "cache.profileTtlMinutes must be >= 1")
	}
	if cfg.Cache.AssetTTLMinutes < 1 {
		errs = append(errs, "cache.assetTtlMinutes must be >= 1")
	}

	if cfg.Bridge.Enabled {
		if cfg.Bridge.Token == "" {
			errs = append(errs, "bridge.token is required when bridge.enabled is set")
		}
		if cfg.Bridge.ChatID == 0 {
			errs = append(errs, "bridge.chatId is required when bridge.enabled is set")
		}
	}

	if cfg.Metrics.Port < 0 || cfg.Metrics.Port > 65535 {
		errs = append(errs, "metrics.port must be between 0 and 65535")
	}

	if cfg.Send.MaxBurst < 1 {
		errs = append(errs, "send.maxBurst must be >= 1")
	}
	if cfg.Send.RatePerMinute <= 0 {
		errs = append(errs, "send.ratePerMinute must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
