package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable. An empty server URL is
// accepted here because the CLI may supply one per invocation; use
// ValidateServerURL before starting a cycle.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.URL != "" {
		if err := ValidateServerURL(c.Server.URL); err != nil {
			return fmt.Errorf("server.url: %w", err)
		}
	}
	if err := ensurePositiveMap(map[string]int{
		"server.request_timeout": c.Server.RequestTimeout,
		"server.upload_timeout":  c.Server.UploadTimeout,
	}); err != nil {
		return err
	}
	if c.Server.UploadTimeout < c.Server.RequestTimeout {
		return errors.New("server.upload_timeout must be >= server.request_timeout")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.Workers < 1 || c.Sync.Workers > maxWorkers {
		return fmt.Errorf("sync.workers must be between 1 and %d", maxWorkers)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

// ValidateServerURL reports whether raw is an absolute http(s) URL usable as
// the inference server base.
func ValidateServerURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("server url is required. Pass --server, set FIELDSYNC_SERVER_URL, or edit %s (create with 'fieldsync config init')", defaultPath)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse server url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("server url %q must use http or https", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("server url %q has no host", raw)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
