package config

const (
	defaultConfigPath     = "~/.config/fieldsync/config.toml"
	defaultStateDir       = "~/.local/share/fieldsync"
	defaultLogDir         = "~/.local/share/fieldsync/logs"
	defaultRequestTimeout = 60
	defaultUploadTimeout  = 600
	defaultUserAgent      = "fieldsync/dev"
	defaultEnvironment    = "production"
	defaultWorkers        = 1
	maxWorkers            = 16
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Server: Server{
			RequestTimeout: defaultRequestTimeout,
			UploadTimeout:  defaultUploadTimeout,
			UserAgent:      defaultUserAgent,
			Environment:    defaultEnvironment,
		},
		Sync: Sync{
			Workers: defaultWorkers,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
