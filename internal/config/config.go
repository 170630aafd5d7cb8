// Package config loads the .rivets/tethys.yaml project file: indexing
// defaults, exclude patterns, and metrics settings that would otherwise
// have to be repeated as CLI flags on every invocation.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tethysdb/tethys/internal/terrors"
)

const (
	configDir     = ".rivets"
	configFile    = "tethys.yaml"
	configVersion = "1"
)

// Config is the .rivets/tethys.yaml project file.
type Config struct {
	Version  string         `yaml:"version"`
	Indexing IndexingConfig `yaml:"indexing"`
	Metrics  MetricsConfig  `yaml:"metrics,omitempty"`
}

// IndexingConfig controls what IndexDirectory walks and how hard it works.
type IndexingConfig struct {
	Languages   []string `yaml:"languages,omitempty"`     // empty means all supported languages
	Workers     int      `yaml:"workers,omitempty"`       // 0 means runtime.NumCPU()
	MaxFileSize int64    `yaml:"max_file_size,omitempty"` // bytes; 0 means no limit
	Exclude     []string `yaml:"exclude,omitempty"`       // glob patterns, matched against relative paths
	Streaming   bool     `yaml:"streaming,omitempty"`     // true: bounded-memory streaming writer instead of batch mode
	BatchSize   int      `yaml:"batch_size,omitempty"`    // streaming drain threshold; 0 means the engine default (100)
}

// MetricsConfig controls the optional Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr,omitempty"` // e.g. "localhost:9090"
}

// Default returns a Config with sensible defaults for local use.
func Default() *Config {
	return &Config{
		Version: configVersion,
		Indexing: IndexingConfig{
			MaxFileSize: 1 << 20, // 1MB
			BatchSize:   100,
			Exclude: []string{
				".git/**",
				"target/**",
				"bin/**",
				"obj/**",
				"node_modules/**",
				"vendor/**",
			},
		},
	}
}

// Load reads the config file at path, or returns Default() if path doesn't
// exist. A malformed file (bad YAML, unsupported version) is always an
// error; a missing file is not.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, terrors.Wrap(terrors.KindConfig, err, "read config %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, terrors.Wrap(terrors.KindConfig, err, "parse config %s", path)
	}
	if cfg.Version != configVersion {
		return nil, terrors.New(terrors.KindConfig, fmt.Sprintf("config %s", path),
			fmt.Errorf("unsupported version %q (expected %q)", cfg.Version, configVersion))
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating its parent directory if needed.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return terrors.Wrap(terrors.KindInternal, err, "marshal config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return terrors.Wrap(terrors.KindIO, err, "create config directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return terrors.Wrap(terrors.KindIO, err, "write config %s", path)
	}
	return nil
}

// PathIn returns the config file path inside repoRoot: <repoRoot>/.rivets/tethys.yaml.
func PathIn(repoRoot string) string {
	return filepath.Join(repoRoot, configDir, configFile)
}
