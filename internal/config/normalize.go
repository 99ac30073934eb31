package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeSync()
	c.normalizeLogging()
	return c.normalizeMetrics()
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.Manifest = strings.TrimSpace(c.Paths.Manifest)
	if c.Paths.Manifest, err = expandPath(c.Paths.Manifest); err != nil {
		return fmt.Errorf("paths.manifest: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	if c.Server.URL == "" {
		if value, ok := os.LookupEnv("FIELDSYNC_SERVER_URL"); ok {
			c.Server.URL = value
		}
	}
	c.Server.URL = strings.TrimRight(strings.TrimSpace(c.Server.URL), "/")
	if c.Server.APIKey == "" {
		if value, ok := os.LookupEnv("FIELDSYNC_API_KEY"); ok {
			c.Server.APIKey = value
		}
	}
	c.Server.APIKey = strings.TrimSpace(c.Server.APIKey)
	if c.Server.DeviceID == "" {
		if value, ok := os.LookupEnv("FIELDSYNC_DEVICE_ID"); ok {
			c.Server.DeviceID = value
		}
	}
	c.Server.DeviceID = strings.TrimSpace(c.Server.DeviceID)
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = defaultRequestTimeout
	}
	if c.Server.UploadTimeout <= 0 {
		c.Server.UploadTimeout = defaultUploadTimeout
	}
	c.Server.UserAgent = strings.TrimSpace(c.Server.UserAgent)
	if c.Server.UserAgent == "" {
		c.Server.UserAgent = defaultUserAgent
	}
	c.Server.Environment = strings.ToLower(strings.TrimSpace(c.Server.Environment))
	if c.Server.Environment == "" {
		c.Server.Environment = defaultEnvironment
	}
}

func (c *Config) normalizeSync() {
	if c.Sync.Workers <= 0 {
		c.Sync.Workers = defaultWorkers
	}
	if c.Sync.CycleTimeout < 0 {
		c.Sync.CycleTimeout = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeMetrics() error {
	var err error
	c.Metrics.Textfile = strings.TrimSpace(c.Metrics.Textfile)
	if c.Metrics.Textfile, err = expandPath(c.Metrics.Textfile); err != nil {
		return fmt.Errorf("metrics.textfile: %w", err)
	}
	return nil
}
