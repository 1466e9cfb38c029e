package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process-level configuration, read from environment
// variables. User-facing preferences live in the settings file
// instead; this covers paths and wiring only.
type Config struct {
	DataDir      string        `env:"REMINDD_DATA_DIR"`
	DBPath       string        `env:"REMINDD_DB_PATH"`
	SettingsPath string        `env:"REMINDD_SETTINGS_PATH"`
	BackupDir    string        `env:"REMINDD_BACKUP_DIR"`
	TokenPath    string        `env:"REMINDD_TOKEN_PATH"`
	ServerURL    string        `env:"REMINDD_SERVER_URL" envDefault:"http://localhost:8000"`
	LogLevel     string        `env:"REMINDD_LOG_LEVEL" envDefault:"info"`
	LogPath      string        `env:"REMINDD_LOG_PATH"`
	TickInterval time.Duration `env:"REMINDD_TICK_INTERVAL" envDefault:"1s"`
}

// Load reads configuration from the environment and fills in
// path defaults under the user data directory.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}

	if cfg.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve data dir: %w", err)
		}
		cfg.DataDir = filepath.Join(base, "remindd")
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "events.db")
	}
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = filepath.Join(cfg.DataDir, "settings.yaml")
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = filepath.Join(cfg.DataDir, "backups")
	}
	if cfg.TokenPath == "" {
		cfg.TokenPath = filepath.Join(cfg.DataDir, "token")
	}

	return cfg, nil
}

// EnsureDirs creates the data and backup directories if missing.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.BackupDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}
