package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Backend names accepted in Config.Backend.
const (
	BackendLlama  = "llama"
	BackendServer = "server"
)

// Config holds runtime parameters for the CLI.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Backend          string  `json:"backend" yaml:"backend" toml:"backend"`
	ModelID          string  `json:"model_id" yaml:"model_id" toml:"model_id"`
	FullPrecision    bool    `json:"full_precision" yaml:"full_precision" toml:"full_precision"`
	CacheDir         string  `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	ServerURL        string  `json:"server_url" yaml:"server_url" toml:"server_url"`
	APIKey           string  `json:"api_key" yaml:"api_key" toml:"api_key"`
	Threads          int     `json:"threads" yaml:"threads" toml:"threads"`
	CtxSize          int     `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	AllowLocalModels bool    `json:"allow_local_models" yaml:"allow_local_models" toml:"allow_local_models"`
	UseCache         *bool   `json:"use_cache" yaml:"use_cache" toml:"use_cache"`
	LoadMode         string  `json:"load_mode" yaml:"load_mode" toml:"load_mode"`
	MaxNewTokens     int     `json:"max_new_tokens" yaml:"max_new_tokens" toml:"max_new_tokens"`
	Temperature      float32 `json:"temperature" yaml:"temperature" toml:"temperature"`
	Greedy           bool    `json:"greedy" yaml:"greedy" toml:"greedy"`
	LoadTimeoutSec   int     `json:"load_timeout_sec" yaml:"load_timeout_sec" toml:"load_timeout_sec"`
	GenTimeoutSec    int     `json:"generate_timeout_sec" yaml:"generate_timeout_sec" toml:"generate_timeout_sec"`
	LogLevel         string  `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat        string  `json:"log_format" yaml:"log_format" toml:"log_format"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, cfg.Validate()
}

// Validate rejects values no default can repair.
func (c Config) Validate() error {
	switch c.Backend {
	case "", BackendLlama, BackendServer:
	default:
		return fmt.Errorf("unknown backend %q (want %s|%s)", c.Backend, BackendLlama, BackendServer)
	}
	if c.Threads < 0 || c.CtxSize < 0 || c.MaxNewTokens < 0 {
		return fmt.Errorf("threads, ctx_size and max_new_tokens must not be negative")
	}
	if c.Temperature < 0 {
		return fmt.Errorf("temperature must not be negative")
	}
	if c.LoadTimeoutSec < 0 || c.GenTimeoutSec < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}
