package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"fieldsync/internal/config"
	"fieldsync/internal/logging"
	"fieldsync/internal/persist"
	"fieldsync/internal/store"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	verboseFlag  *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		verboseFlag:  verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.ToLower(strings.TrimSpace(*c.logLevelFlag)); level != "" {
				cfg.Logging.Level = level
				if err := cfg.Validate(); err != nil {
					c.configErr = err
					return
				}
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// logger writes JSON records to the log file and, with --verbose, mirrors
// them to stderr in the configured format.
func (c *commandContext) logger(cmd *cobra.Command) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	var writer io.Writer = io.Discard
	if c.verboseFlag != nil && *c.verboseFlag {
		writer = cmd.ErrOrStderr()
	}
	return logging.New(logging.Options{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		Writer:   writer,
		FilePath: filepath.Join(cfg.Paths.LogDir, "fieldsync.log"),
	})
}

// withStore opens the entry store for the duration of fn.
func (c *commandContext) withStore(cmd *cobra.Command, fn func(*store.Store, *slog.Logger) error, opts ...store.Option) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.logger(cmd)
	if err != nil {
		return err
	}
	adapter, err := persist.OpenSQLite(cmd.Context(), cfg.StateDBPath(), cfg.LockPath())
	if err != nil {
		return wrapStoreError(err, cfg.Paths.StateDir)
	}
	st := store.Open(cmd.Context(), adapter, logger, opts...)
	defer st.Close()
	return fn(st, logger)
}

func wrapStoreError(err error, stateDir string) error {
	if errors.Is(err, persist.ErrLocked) {
		return fmt.Errorf("open entry store: another fieldsync process is using %s; wait for it to finish", stateDir)
	}
	return fmt.Errorf("open entry store: %w", err)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
