package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/Veraticus/burnup/internal/common"
)

// Settings are the process-wide options shared by every command.
type Settings struct {
	DatabasePath string
	Driver       string
	ScopesDir    string
	Workers      int
}

// Default values for Settings.
const (
	DefaultDatabasePath = "~/.local/share/burnup/burnup.db"
	DefaultScopesDir    = "~/.config/burnup/scopes"
	DefaultDriver       = "sqlite3"
)

// DefaultWorkers is the engine worker count when none is configured.
func DefaultWorkers() int {
	return min(4, runtime.NumCPU())
}

// LoadSettings loads settings from Viper and environment variables.
// It follows this precedence:
// 1. Viper configuration (from config file or BURNUP_ env vars)
// 2. Direct environment variables (BURNUP_DB)
// 3. Default values
func LoadSettings() (*Settings, error) {
	settings := &Settings{
		DatabasePath: DefaultDatabasePath,
		Driver:       DefaultDriver,
		ScopesDir:    DefaultScopesDir,
		Workers:      DefaultWorkers(),
	}

	if v := viper.GetString("database.path"); v != "" {
		settings.DatabasePath = v
	} else if v := os.Getenv("BURNUP_DB"); v != "" {
		settings.DatabasePath = v
	}
	if v := viper.GetString("database.driver"); v != "" {
		settings.Driver = v
	}
	if v := viper.GetString("scopes.dir"); v != "" {
		settings.ScopesDir = v
	}
	if v := viper.GetInt("engine.workers"); v != 0 {
		settings.Workers = v
	}

	// Relative paths in a config file are relative to that file.
	base := ""
	if used := viper.ConfigFileUsed(); used != "" {
		base = filepath.Dir(used)
	}
	settings.DatabasePath = ResolvePath(settings.DatabasePath, base)
	settings.ScopesDir = ResolvePath(settings.ScopesDir, base)

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate checks the settings for values the engine cannot run with.
func (s *Settings) Validate() error {
	if s.DatabasePath == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	switch s.Driver {
	case "sqlite3", "sqlite":
	default:
		return fmt.Errorf("%w: database.driver must be sqlite3 or sqlite, got %q", common.ErrInvalidConfig, s.Driver)
	}
	if s.Workers < 1 {
		return fmt.Errorf("%w: engine.workers must be positive, got %d", common.ErrInvalidConfig, s.Workers)
	}
	return nil
}
