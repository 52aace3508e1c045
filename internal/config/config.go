// Package config reads and writes the access layer configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration for an application embedding the access
// layer.
type Config struct {
	AppName  string         `toml:"app_name"`
	LogDir   string         `toml:"log_dir"`
	Cache    CacheConfig    `toml:"cache"`
	Identity IdentityConfig `toml:"identity"`
}

// CacheConfig selects the LocalCache implementation. This uses a tagged
// union pattern - the Type field determines which other fields are relevant.
type CacheConfig struct {
	Type string `toml:"type"` // "memory" or "filesystem"

	// Filesystem-specific fields (only used when Type == "filesystem")
	Dir string `toml:"dir,omitempty"`
}

// IdentityConfig selects the IdentityClient implementation. This uses a
// tagged union pattern - the Type field determines which other fields are
// relevant.
type IdentityConfig struct {
	Type string `toml:"type"` // "http"

	// HTTP-specific fields (only used when Type == "http")
	Endpoint string `toml:"endpoint,omitempty"`
}

// NewConfig creates a Config with sensible defaults for the given app.
func NewConfig(appName, baseDir string) *Config {
	return &Config{
		AppName: appName,
		LogDir:  filepath.Join(baseDir, "log"),
		Cache: CacheConfig{
			Type: "filesystem",
			Dir:  filepath.Join(baseDir, "sessions"),
		},
		Identity: IdentityConfig{Type: "http"},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Init initializes a new config file at the specified path, refusing to
// overwrite an existing one.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
