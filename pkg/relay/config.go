package relay

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/util/ptr"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"
)

// Config is the relay's YAML configuration.
type Config struct {
	// Alias is a human-readable name for this relay, used as the initial
	// device display name on login/registration.
	Alias string `yaml:"alias"`
	// Handle is the relay's own Matrix user ID (e.g. @relay:example.org).
	Handle string `yaml:"handle"`
	// Homeserver is the base URL of the Matrix homeserver.
	Homeserver string `yaml:"homeserver"`
	// Coordinator is the default room for sends and the room joined on
	// startup.
	Coordinator string `yaml:"coordinator"`
	// Path points at the local store used for the encryption database.
	Path string `yaml:"path"`
	// Autojoin accepts room invites addressed to Handle automatically.
	Autojoin bool `yaml:"autojoin"`
	// Connect controls whether Start performs network startup at all.
	// With connect disabled the adapter still runs its dispatch loop, so
	// it can be embedded and fed synthetic events.
	Connect bool `yaml:"connect"`
	// Token is a pre-issued access token. Optional: actors may log in
	// through the command surface instead.
	Token string `yaml:"token"`

	Constraints    Constraints       `yaml:"constraints"`
	RequestTimeout time.Duration     `yaml:"request_timeout"`
	Encryption     EncryptionConfig  `yaml:"encryption"`
	Logging        zeroconfig.Config `yaml:"logging"`
}

type Constraints struct {
	Sync SyncConstraints `yaml:"sync"`
}

type SyncConstraints struct {
	// Limit bounds the per-room timeline backfill requested from sync.
	Limit int `yaml:"limit"`
}

type EncryptionConfig struct {
	Enabled   bool   `yaml:"enabled"`
	PickleKey string `yaml:"pickle_key"`
}

const (
	defaultSyncLimit      = 20
	defaultRequestTimeout = 30 * time.Second
)

// LoadConfig reads and validates a config file, filling in defaults.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) ApplyDefaults() {
	if cfg.Constraints.Sync.Limit <= 0 {
		cfg.Constraints.Sync.Limit = defaultSyncLimit
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if len(cfg.Logging.Writers) == 0 {
		cfg.Logging = zeroconfig.Config{
			MinLevel: ptr.Ptr(zerolog.DebugLevel),
			Writers: []zeroconfig.WriterConfig{{
				Type:   zeroconfig.WriterTypeStdout,
				Format: zeroconfig.LogFormatPrettyColored,
			}},
		}
	}
}

func (cfg *Config) Validate() error {
	if cfg.Coordinator == "" {
		return &ValidationError{Field: "coordinator"}
	}
	if cfg.Connect {
		if cfg.Homeserver == "" {
			return &ValidationError{Field: "homeserver"}
		}
		if cfg.Handle == "" {
			return &ValidationError{Field: "handle"}
		}
	}
	if cfg.Encryption.Enabled && cfg.Path == "" {
		return &ValidationError{Field: "path"}
	}
	return nil
}
