package config

const (
	defaultConfigPath     = "~/.config/sterncast/config.toml"
	defaultFeedURL        = "https://sternengeschichten.podigee.io/feed/mp3"
	defaultUserAgent      = "sterncast/1.0"
	defaultDataDir        = "~/.local/share/sterncast"
	defaultLogLevel       = "info"
	defaultLogFormat      = "console"
	defaultDateFormat     = "%Y-%m-%d %H:%M"
	defaultSearchMinScore = 50
	defaultPlayerBinary   = "mpv"
	defaultSaveInterval   = 5
	defaultMaxConcurrent  = 2
	defaultMaxRetries     = 3
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Feed: Feed{
			URL:       defaultFeedURL,
			UserAgent: defaultUserAgent,
		},
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Display: Display{
			DateFormat:     defaultDateFormat,
			SearchMinScore: defaultSearchMinScore,
		},
		Player: Player{
			Binary:       defaultPlayerBinary,
			SaveInterval: defaultSaveInterval,
		},
		Download: Download{
			MaxConcurrent: defaultMaxConcurrent,
			MaxRetries:    defaultMaxRetries,
		},
	}
}
