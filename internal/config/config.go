// Package config manages the repository configuration and the .recstore
// data directory that holds the metadata database and the index
// journal.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	DataDir      = ".recstore"
	ConfigFile   = "config"
	DatabaseFile = "recstore.db"
	JournalFile  = "index-journal.db"
)

// DefaultInlineThreshold is the largest payload (in bytes) stored
// inline in the metadata database when no object store is configured
// explicitly.
const DefaultInlineThreshold = 512 * 1024

// Config is the repository configuration, stored as TOML in the
// .recstore directory.
type Config struct {
	// WeaviateURL is the search index endpoint. Empty disables
	// indexing.
	WeaviateURL string `toml:"weaviate_url"`

	// IdentifierServiceURL is the identifier authority consulted for
	// record and provider existence. Empty means every well-formed id
	// is accepted.
	IdentifierServiceURL string `toml:"identifier_service_url,omitempty"`

	// InlineThresholdBytes routes payloads up to this size into the
	// metadata database; larger ones go to the object store.
	InlineThresholdBytes int64 `toml:"inline_threshold_bytes"`

	ObjectStore ObjectStoreConfig `toml:"object_store"`
	Index       IndexConfig       `toml:"index"`

	path string // path to the .recstore directory
}

// ObjectStoreConfig configures the S3-compatible backend for large
// payloads. An empty endpoint disables the backend and keeps
// everything inline.
type ObjectStoreConfig struct {
	Endpoint  string `toml:"endpoint,omitempty"`
	AccessKey string `toml:"access_key,omitempty"`
	SecretKey string `toml:"secret_key,omitempty"`
	Bucket    string `toml:"bucket,omitempty"`
	UseSSL    bool   `toml:"use_ssl,omitempty"`
}

// IndexConfig tunes the asynchronous index synchronizer.
type IndexConfig struct {
	Workers           int `toml:"workers"`
	QueueSize         int `toml:"queue_size"`
	SweepIntervalSecs int `toml:"sweep_interval_seconds"`
}

// FindRoot finds the .recstore directory by walking up from the current
// directory.
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		dataPath := filepath.Join(dir, DataDir)
		if info, err := os.Stat(dataPath); err == nil && info.IsDir() {
			return dataPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a record repository (or any parent up to root)")
		}
		dir = parent
	}
}

// Load loads the configuration from the .recstore directory.
func Load() (*Config, error) {
	dataPath, err := FindRoot()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(dataPath, ConfigFile)
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.path = dataPath
	return &cfg, nil
}

// Save saves the configuration to disk.
func (c *Config) Save() error {
	configPath := filepath.Join(c.path, ConfigFile)
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// DataPath returns the path to the .recstore directory.
func (c *Config) DataPath() string {
	return c.path
}

// DatabasePath returns the path to the metadata database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.path, DatabaseFile)
}

// JournalPath returns the path to the index journal database.
func (c *Config) JournalPath() string {
	return filepath.Join(c.path, JournalFile)
}

// SweepInterval returns the journal sweep interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Index.SweepIntervalSecs) * time.Second
}

// HasObjectStore reports whether the object-store backend is
// configured.
func (c *Config) HasObjectStore() bool {
	return c.ObjectStore.Endpoint != ""
}

func (c *Config) applyDefaults() {
	if c.InlineThresholdBytes <= 0 {
		c.InlineThresholdBytes = DefaultInlineThreshold
	}
	if c.Index.Workers <= 0 {
		c.Index.Workers = 2
	}
	if c.Index.QueueSize <= 0 {
		c.Index.QueueSize = 256
	}
	if c.Index.SweepIntervalSecs <= 0 {
		c.Index.SweepIntervalSecs = 60
	}
}

// Initialize creates a new .recstore directory with initial
// configuration.
func Initialize(weaviateURL string) (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	dataPath := filepath.Join(cwd, DataDir)

	// Check if already initialized
	if _, err := os.Stat(dataPath); err == nil {
		return nil, fmt.Errorf("record repository already exists")
	}

	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .recstore directory: %w", err)
	}

	cfg := &Config{
		WeaviateURL: weaviateURL,
		path:        dataPath,
	}
	cfg.applyDefaults()

	if err := cfg.Save(); err != nil {
		// Cleanup on failure
		os.RemoveAll(dataPath)
		return nil, err
	}

	return cfg, nil
}
