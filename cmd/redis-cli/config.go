package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "REDISCLI_"

// Config is the CLI configuration.
//
// Sources, later ones winning: defaults, YAML or TOML file, REDISCLI_* environment
// variables, command-line flags.
type Config struct {
	URL        string        `koanf:"url"`
	Timeout    time.Duration `koanf:"timeout"`
	PoolSize   int32         `koanf:"pool"`
	RESP3      bool          `koanf:"resp3"`
	ClientName string        `koanf:"name"`
	Metrics    string        `koanf:"metrics"` // Address serving /metrics, disabled when empty
	Verbose    bool          `koanf:"verbose"`
}

func defaultConfig() Config {
	return Config{
		URL:      "redis://localhost:6379/0",
		Timeout:  5 * time.Second,
		PoolSize: 4,
	}
}

func loadConfig(path string, overrides map[string]any) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := loadFile(k, path); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// REDISCLI_TIMEOUT -> timeout
	transform := func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}
	if err := k.Load(env.Provider(envPrefix, ".", transform), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	if err := k.Load(mapProvider(overrides), nil); err != nil {
		return Config{}, fmt.Errorf("load flags: %w", err)
	}

	cfg := defaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.PoolSize <= 0 {
		return Config{}, fmt.Errorf("invalid pool size %d", cfg.PoolSize)
	}
	return cfg, nil
}

// loadFile reads a .toml file with the toml decoder, anything else as YAML.
func loadFile(k *koanf.Koanf, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var raw map[string]any
		if _, err := toml.DecodeFile(path, &raw); err != nil {
			return err
		}
		return k.Load(mapProvider(raw), nil)
	}
	return k.Load(file.Provider(path), yaml.Parser())
}

var errReadBytesNotSupported = errors.New("map provider does not support ReadBytes")

// mapProvider is a koanf provider over an in-memory map.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
