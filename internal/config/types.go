package config

import "time"

// Config represents the complete slackline configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Server  ServerConfig  `yaml:"server"`
	Archive ArchiveConfig `yaml:"archive"`
	Slack   SlackConfig   `yaml:"slack"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Ledger  LedgerConfig  `yaml:"ledger"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

// ServerConfig defines HTTP listener settings.
type ServerConfig struct {
	Listen string `yaml:"listen"`

	// APIKey guards the observability endpoints (/events, /healthz).
	// The webhook route itself is guarded by the Slack signature, not this key.
	APIKey string `yaml:"api_key,omitempty"`
}

// ArchiveConfig defines where and how events are written.
type ArchiveConfig struct {
	Root string `yaml:"root"`
}

// SlackConfig defines credentials for inbound verification and outbound calls.
type SlackConfig struct {
	// SigningSecret keys the HMAC over inbound request bodies.
	// Supports ${ENV_VAR} expansion so the secret stays out of the file.
	SigningSecret string `yaml:"signing_secret"`

	// BotToken authenticates files.info and url_private downloads.
	BotToken string `yaml:"bot_token"`

	// MaxSkew bounds |request timestamp - now| during admission.
	// Slack's own guidance allows up to 5 minutes; the archiver has
	// historically run with 2s and that remains the default here rather
	// than silently widening the window. Raise it in config if your
	// delivery path has real clock skew.
	MaxSkew time.Duration `yaml:"max_skew"`
}

// FetchConfig bounds the attachment fetch pool.
type FetchConfig struct {
	Workers    int `yaml:"workers"`
	QueueDepth int `yaml:"queue_depth"`
}

// LedgerConfig defines the attachment fetch ledger database.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "slackline",
			LogLevel: "info",
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8080",
		},
		Archive: ArchiveConfig{
			Root: "./data/archive",
		},
		Slack: SlackConfig{
			MaxSkew: 2 * time.Second,
		},
		Fetch: FetchConfig{
			Workers:    4,
			QueueDepth: 64,
		},
		Ledger: LedgerConfig{
			Path: "./data/fetch.db",
		},
	}
}
