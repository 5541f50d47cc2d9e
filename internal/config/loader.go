package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file.
// Relative paths inside the config (archive root, ledger path) are kept as-is;
// callers resolve them against the working directory.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	expanded, err := expandEnvVars(string(data))
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR} references with environment values.
// A reference to an unset variable is an error: a missing signing secret
// must fail loudly at startup, not verify nothing at runtime.
func expandEnvVars(raw string) (string, error) {
	var missing []string
	expanded := envVarPattern.ReplaceAllStringFunc(raw, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		val, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return match
		}
		return val
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("config references unset environment variables: %v", missing)
	}
	return expanded, nil
}

func validate(cfg *Config) error {
	if cfg.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if cfg.Archive.Root == "" {
		return fmt.Errorf("archive.root is required")
	}
	if cfg.Slack.SigningSecret == "" {
		return fmt.Errorf("slack.signing_secret is required")
	}
	if cfg.Slack.MaxSkew <= 0 {
		return fmt.Errorf("slack.max_skew must be positive, got %v", cfg.Slack.MaxSkew)
	}
	if cfg.Slack.MaxSkew > 5*time.Minute {
		return fmt.Errorf("slack.max_skew %v exceeds Slack's own 5m replay window", cfg.Slack.MaxSkew)
	}
	if cfg.Fetch.Workers <= 0 {
		return fmt.Errorf("fetch.workers must be positive, got %d", cfg.Fetch.Workers)
	}
	if cfg.Fetch.QueueDepth <= 0 {
		return fmt.Errorf("fetch.queue_depth must be positive, got %d", cfg.Fetch.QueueDepth)
	}
	return nil
}
