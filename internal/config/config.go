// Package config loads .strata.yaml.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up at the repository root.
const FileName = ".strata.yaml"

// Defaults.
const (
	DefaultDatabase    = ".strata/graph.db"
	DefaultBinary      = "sourcekitten"
	DefaultMaxDepth    = 32
	defaultRootNSObj   = "NSObject"
	defaultRootNSProxy = "NSProxy"
)

// Config is the on-disk configuration. Relative paths are resolved against
// the directory holding the config file.
type Config struct {
	Database    string    `yaml:"database"`
	Invocations string    `yaml:"invocations"`
	Module      string    `yaml:"module"`
	SourceKit   SourceKit `yaml:"sourcekit"`
	Probe       Probe     `yaml:"probe"`
}

type SourceKit struct {
	Binary string `yaml:"binary"`
}

type Probe struct {
	TerminalRoots []string `yaml:"terminal_roots"`
	MaxDepth      int      `yaml:"max_depth"`
	ScratchDir    string   `yaml:"scratch_dir"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Database:  DefaultDatabase,
		SourceKit: SourceKit{Binary: DefaultBinary},
		Probe: Probe{
			TerminalRoots: []string{defaultRootNSObj, defaultRootNSProxy},
			MaxDepth:      DefaultMaxDepth,
		},
	}
}

// Load reads FileName from dir. A missing file yields Default().
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default().resolve(dir), nil
		}
		return nil, errors.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Errorf("%s: %w", path, err)
	}
	return cfg.resolve(dir), nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	var file Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Errorf("parse config: %w", err)
	}

	if file.Database != "" {
		cfg.Database = file.Database
	}
	if file.Invocations != "" {
		cfg.Invocations = file.Invocations
	}
	if file.Module != "" {
		cfg.Module = file.Module
	}
	if file.SourceKit.Binary != "" {
		cfg.SourceKit.Binary = file.SourceKit.Binary
	}
	if len(file.Probe.TerminalRoots) > 0 {
		cfg.Probe.TerminalRoots = file.Probe.TerminalRoots
	}
	if file.Probe.MaxDepth < 0 {
		return nil, errors.Errorf("probe.max_depth must be positive, got %d", file.Probe.MaxDepth)
	}
	if file.Probe.MaxDepth > 0 {
		cfg.Probe.MaxDepth = file.Probe.MaxDepth
	}
	if file.Probe.ScratchDir != "" {
		cfg.Probe.ScratchDir = file.Probe.ScratchDir
	}
	return cfg, nil
}

func (c *Config) resolve(dir string) *Config {
	c.Database = absFrom(dir, c.Database)
	c.Invocations = absFrom(dir, c.Invocations)
	c.Probe.ScratchDir = absFrom(dir, c.Probe.ScratchDir)
	return c
}

func absFrom(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
