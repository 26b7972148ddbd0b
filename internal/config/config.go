package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/julianstephens/ididit/internal/constants"
)

// Confirmation controls the "ほんとに？" gate shown before recording an achievement.
type Confirmation struct {
	Mode        string  `yaml:"mode" env:"IDIDIT_CONFIRMATION_MODE" env-default:"random" env-description:"random, always or never"`
	Probability float64 `yaml:"probability" env:"IDIDIT_CONFIRMATION_PROBABILITY" env-default:"0.3" env-description:"chance of asking in random mode"`
}

// Server configures `ididit serve`.
type Server struct {
	Host          string        `yaml:"host" env:"IDIDIT_SERVER_HOST" env-default:"127.0.0.1"`
	Port          int           `yaml:"port" env:"IDIDIT_SERVER_PORT" env-default:"8484"`
	JWTSecret     string        `yaml:"jwt_secret,omitempty" env:"IDIDIT_JWT_SECRET" env-description:"HS256 signing secret, generated and stored when empty"`
	SessionTTL    time.Duration `yaml:"session_ttl" env:"IDIDIT_SESSION_TTL" env-default:"168h"`
	PurgeInterval time.Duration `yaml:"purge_interval" env:"IDIDIT_PURGE_INTERVAL" env-default:"1h"`
}

// Config is the merged result of defaults, the YAML file and IDIDIT_* variables.
type Config struct {
	Database      string        `yaml:"database,omitempty" env:"IDIDIT_DB_CONNECTION" env-description:"SQLite path or PostgreSQL connection string"`
	Timezone      string        `yaml:"timezone" env:"IDIDIT_TIMEZONE" env-default:"Local"`
	RemoteTimeout time.Duration `yaml:"remote_timeout" env:"IDIDIT_REMOTE_TIMEOUT" env-default:"30s"`
	LogLevel      string        `yaml:"log_level,omitempty" env:"IDIDIT_LOG_LEVEL"`
	Debug         bool          `yaml:"debug" env:"IDIDIT_DEBUG"`
	Confirmation  Confirmation  `yaml:"confirmation"`
	Server        Server        `yaml:"server"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Timezone:      "Local",
		RemoteTimeout: constants.DefaultRemoteTimeout,
		Confirmation: Confirmation{
			Mode:        constants.ConfirmationModeRandom,
			Probability: constants.ConfirmationProbability,
		},
		Server: Server{
			Host:          constants.DefaultServerHost,
			Port:          constants.DefaultServerPort,
			SessionTTL:    constants.DefaultSessionTTL,
			PurgeInterval: constants.DefaultPurgeInterval,
		},
	}
}

// DefaultPath returns ~/.config/ididit/config.yaml.
func DefaultPath() string {
	return ExpandHome(filepath.Join(constants.DefaultConfigDir, constants.DefaultConfigFile))
}

// Load reads path (when it exists) and then the environment.
// A missing file is not an error.
func Load(path string) (Config, error) {
	var cfg Config
	path = ExpandHome(path)

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return Config{}, fmt.Errorf("failed to access config %s: %w", path, err)
	}

	cfg.Database = ExpandHome(cfg.Database)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch c.Confirmation.Mode {
	case constants.ConfirmationModeRandom, constants.ConfirmationModeAlways, constants.ConfirmationModeNever:
	default:
		return fmt.Errorf("invalid confirmation mode %q (want random, always or never)", c.Confirmation.Mode)
	}
	if c.Confirmation.Probability < 0 || c.Confirmation.Probability > 1 {
		return fmt.Errorf("confirmation probability must be between 0 and 1, got %v", c.Confirmation.Probability)
	}
	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("remote_timeout must be positive, got %v", c.RemoteTimeout)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d is outside valid range (1-65535)", c.Server.Port)
	}
	if c.Server.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive, got %v", c.Server.SessionTTL)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Server.JWTSecret != "" {
		c.Server.JWTSecret = "****"
	}
	return c
}

// Marshal renders the config as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteDefault writes the default configuration to path unless a file is already there.
func WriteDefault(path string) (bool, error) {
	path = ExpandHome(path)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := Default().Marshal()
	if err != nil {
		return false, fmt.Errorf("failed to encode default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return false, fmt.Errorf("failed to write config: %w", err)
	}
	return true, nil
}

// Dir returns the directory holding the config file.
func Dir(path string) string {
	return filepath.Dir(ExpandHome(path))
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
