// Package config resolves the tool configuration from the optional
// ~/.config/scout/config.toml file, built-in defaults, and SCOUT_* overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bnema/scout-cli/internal/domain"
	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"

	keyHost            = "server.host"
	keyPort            = "server.port"
	keyStateDir        = "state.dir"
	keyCeiling         = "delegate.ceiling"
	keyTimeoutSeconds  = "delegate.timeout_seconds"
	keyAgentBin        = "delegate.agent_bin"
	keyPromptPaths     = "delegate.prompt_paths"
	keyRequestSeconds  = "server.timeout_seconds"
	envDepth           = "SCOUT_DEPTH"
	envNested          = "SCOUT_NESTED"
	defaultHost        = "127.0.0.1"
	defaultPort        = 3002
	defaultStateDir    = ".scout/state"
	defaultCeiling     = 2
	defaultAgentBin    = "claude"
	defaultDelegateSec = 120
	defaultRequestSec  = 30
)

// Config is the fully resolved tool configuration.
type Config struct {
	Host     string
	Port     int
	StateDir string

	Instance    string
	AgentBin    string
	AgentPrompt string
	PromptPaths []string

	Ceiling         int
	DelegateTimeout time.Duration
	RequestTimeout  time.Duration
}

// Load reads the config file if present, applies defaults, and lets SCOUT_*
// environment variables win over both.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(filepath.Join(".", ".scout"))
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "scout"))
	}

	v.SetDefault(keyHost, defaultHost)
	v.SetDefault(keyPort, defaultPort)
	v.SetDefault(keyStateDir, defaultStateDir)
	v.SetDefault(keyCeiling, defaultCeiling)
	v.SetDefault(keyTimeoutSeconds, defaultDelegateSec)
	v.SetDefault(keyRequestSeconds, defaultRequestSec)
	v.SetDefault(keyAgentBin, defaultAgentBin)

	bindings := map[string]string{
		keyHost:           "SCOUT_HOST",
		keyPort:           "SCOUT_PORT",
		keyStateDir:       "SCOUT_STATE_DIR",
		keyCeiling:        "SCOUT_MAX_DEPTH",
		keyTimeoutSeconds: "SCOUT_DELEGATE_TIMEOUT",
		keyAgentBin:       "SCOUT_AGENT_BIN",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Host:            v.GetString(keyHost),
		Port:            v.GetInt(keyPort),
		StateDir:        v.GetString(keyStateDir),
		Instance:        os.Getenv("SCOUT_INSTANCE"),
		AgentBin:        v.GetString(keyAgentBin),
		AgentPrompt:     os.Getenv("SCOUT_AGENT_PROMPT"),
		PromptPaths:     v.GetStringSlice(keyPromptPaths),
		Ceiling:         v.GetInt(keyCeiling),
		DelegateTimeout: time.Duration(v.GetInt(keyTimeoutSeconds)) * time.Second,
		RequestTimeout:  time.Duration(v.GetInt(keyRequestSeconds)) * time.Second,
	}

	if len(cfg.PromptPaths) == 0 {
		cfg.PromptPaths = defaultPromptPaths()
	}

	return cfg, nil
}

// DelegationContext hydrates the recursion bounds for this process from the
// environment. The depth counter is scoped to a single top-level call chain
// and is never persisted to disk.
func (c Config) DelegationContext() domain.DelegationContext {
	depth := 0
	if raw := os.Getenv(envDepth); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			depth = parsed
		}
	}

	return domain.DelegationContext{
		Depth:   depth,
		Ceiling: c.Ceiling,
		Nested:  os.Getenv(envNested) == "1",
	}
}

func defaultPromptPaths() []string {
	paths := []string{filepath.Join(".scout", "agents", "subquery.md")}
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "scout", "agents", "subquery.md"))
	}
	return paths
}
