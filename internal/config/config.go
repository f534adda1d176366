// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and the environment on top of the defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"time"
)

// Backends for the spreadsheet and sign-in collaborators.
const (
	BackendMemory = "memory"
	BackendGoogle = "google"
)

// Audit sink backends.
const (
	AuditSheet  = "sheet"
	AuditSQLite = "sqlite"
	AuditMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// SettingsPath is the JSON file holding every ledger's settings.
	SettingsPath string `koanf:"settings_path"`

	// Backend selects the spreadsheet, sign-in sheet and form clients.
	Backend string `koanf:"backend"`

	// CredentialsFile is the service account key used by the google backend.
	CredentialsFile string `koanf:"credentials_file"`

	// MappingKey is the process-wide secret question map tokens are sealed with.
	MappingKey string `koanf:"mapping_key"`

	// PublishEnabled writes snapshots back after every successful command.
	PublishEnabled bool `koanf:"publish_enabled"`

	// RefreshIntervalSec schedules a background full reload per ledger; 0 disables it.
	RefreshIntervalSec int `koanf:"refresh_interval_sec"`

	// PollCommands executes commands authored in the spreadsheet command regions.
	PollCommands bool `koanf:"poll_commands"`

	// WorkerCount sets the number of background job workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory job queue.
	QueueSize int `koanf:"queue_size"`

	// AuditBackend selects where narrated messages are persisted.
	AuditBackend string `koanf:"audit_backend"`

	// AuditDBPath is the sqlite database used by the sqlite audit backend.
	AuditDBPath string `koanf:"audit_db_path"`

	// OperationTimeoutMS bounds HTTP-triggered operations; 0 disables it.
	OperationTimeoutMS int `koanf:"operation_timeout_ms"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		SettingsPath:       "settings.json",
		Backend:            BackendMemory,
		MappingKey:         "tally-default-mapping-key",
		PublishEnabled:     true,
		RefreshIntervalSec: 0,
		PollCommands:       false,
		WorkerCount:        4,
		QueueSize:          1024,
		AuditBackend:       AuditSheet,
		AuditDBPath:        "data/audit.db",
		OperationTimeoutMS: 30_000,
	}
}

// RefreshInterval returns the background refresh period.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSec) * time.Second
}

// OperationTimeout returns the bound on HTTP-triggered operations.
func (c *Config) OperationTimeout() time.Duration {
	return time.Duration(c.OperationTimeoutMS) * time.Millisecond
}

// Validate checks field values and combinations.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.SettingsPath == "":
		return fmt.Errorf("%w: settings_path must not be empty", ErrInvalidConfig)
	case c.MappingKey == "":
		return fmt.Errorf("%w: mapping_key must not be empty", ErrInvalidConfig)
	case c.Backend != BackendMemory && c.Backend != BackendGoogle:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	case c.Backend == BackendGoogle && c.CredentialsFile == "":
		return fmt.Errorf("%w: credentials_file is required by the google backend", ErrInvalidConfig)
	case c.AuditBackend != AuditSheet && c.AuditBackend != AuditSQLite && c.AuditBackend != AuditMemory:
		return fmt.Errorf("%w: unknown audit_backend %q", ErrInvalidConfig, c.AuditBackend)
	case c.AuditBackend == AuditSQLite && c.AuditDBPath == "":
		return fmt.Errorf("%w: audit_db_path is required by the sqlite audit backend", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.RefreshIntervalSec < 0 || c.OperationTimeoutMS < 0:
		return fmt.Errorf("%w: intervals must not be negative", ErrInvalidConfig)
	}
	return nil
}
