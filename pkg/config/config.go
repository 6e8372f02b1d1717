// Package config loads the TOML configuration file. Every field has a
// working default so a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Logging controls the slog handler.
type Logging struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// Config holds everything the CLI needs to find the library.
type Config struct {
	// LibraryRoot is the directory holding the book archives plus the
	// covers/ and images/ subdirectories.
	LibraryRoot string `toml:"library_root"`
	// DatabasePath is the DuckDB catalog file.
	DatabasePath string  `toml:"database_path"`
	Logging      Logging `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		LibraryRoot:  filepath.Join(home, "flibrary"),
		DatabasePath: filepath.Join(home, "flibrary", "catalog.db"),
		Logging:      Logging{Level: "info", Format: "text"},
	}
}

// Load reads the TOML file at path on top of the defaults. An empty path or
// a missing file yields the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
