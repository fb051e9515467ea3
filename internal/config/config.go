package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for vortex.
type Config struct {
	BaseDir    string        `toml:"base_dir"`
	LogDir     string        `toml:"log_dir"`
	LogLevel   string        `toml:"log_level"`   // "debug", "info" (default), "warn" or "error"
	NamePrefix string        `toml:"name_prefix"` // label for suggested restore point names
	Gateway    GatewayConfig `toml:"gateway"`
	Catalog    CatalogConfig `toml:"catalog"`
	Audit      AuditConfig   `toml:"audit"`
	Server     ServerConfig  `toml:"server"`
}

// GatewayConfig controls how PowerShell commands are executed.
type GatewayConfig struct {
	Shell          string `toml:"shell"`           // interpreter executable, default "powershell"
	TimeoutSeconds int    `toml:"timeout_seconds"` // per-command limit; 0 disables
}

// CatalogConfig controls restore point listing.
type CatalogConfig struct {
	CorrelationToleranceSeconds int `toml:"correlation_tolerance_seconds"`
}

// AuditConfig represents configuration for the audit journal store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type AuditConfig struct {
	Type    string `toml:"type"`               // "json" (default), "sqlite" or "memory"
	Path    string `toml:"path,omitempty"`     // only used for type=json
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Defaults for fields that NewConfig fills in.
const (
	DefaultShell            = "powershell"
	DefaultTimeoutSeconds   = 600
	DefaultToleranceSeconds = 120
	DefaultServerAddr       = "127.0.0.1:7420"
	DefaultNamePrefix       = "Vortex Restore Point"
	DefaultLogLevel         = "info"
	defaultAuditFileName    = "logs.json"
)

// NewConfig creates a new Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		LogLevel:   DefaultLogLevel,
		NamePrefix: DefaultNamePrefix,
		Gateway: GatewayConfig{
			Shell:          DefaultShell,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Catalog: CatalogConfig{
			CorrelationToleranceSeconds: DefaultToleranceSeconds,
		},
		Audit: AuditConfig{
			Type: "json",
			Path: filepath.Join(baseDir, defaultAuditFileName),
		},
		Server: ServerConfig{Addr: DefaultServerAddr},
	}
}

// Timeout returns the per-command gateway timeout.
func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// Tolerance returns the restore point / shadow copy correlation window.
func (c CatalogConfig) Tolerance() time.Duration {
	return time.Duration(c.CorrelationToleranceSeconds) * time.Second
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

// LoadOrDefault reads the config at path, laid over the defaults for baseDir.
// A missing file yields the defaults unchanged.
func LoadOrDefault(path, baseDir string) (*Config, error) {
	cfg := NewConfig(baseDir)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if _, err := toml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
