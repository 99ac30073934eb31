package testsupport

import (
	"path/filepath"
	"testing"

	"fieldsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Server.URL = "http://127.0.0.1:9"
	cfgVal.Server.UserAgent = "fieldsync-test"
	cfgVal.Server.Environment = "test"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithServerURL points the test config at url.
func WithServerURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.URL = url
	}
}

// WithWorkers sets sync.workers.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.Workers = n
	}
}

// WithCycleTimeout sets sync.cycle_timeout in seconds.
func WithCycleTimeout(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.CycleTimeout = seconds
	}
}

// WithManifest sets paths.manifest.
func WithManifest(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.Manifest = path
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
