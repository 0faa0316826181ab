package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/lestrrat-go/strftime"
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Feed.URL == "" {
		result = multierror.Append(result, fmt.Errorf("feed.url must be set"))
	} else if u, err := url.Parse(c.Feed.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		result = multierror.Append(result, fmt.Errorf("feed.url: %q is not an http(s) URL", c.Feed.URL))
	}
	if c.Feed.RequestTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("feed.request_timeout must be >= 0"))
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		result = multierror.Append(result, fmt.Errorf("paths.data_dir must be set"))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		result = multierror.Append(result, fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		result = multierror.Append(result, fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format))
	}

	if _, err := strftime.New(c.Display.DateFormat); err != nil {
		result = multierror.Append(result, fmt.Errorf("display.date_format: %w", err))
	}
	if c.Display.SearchMinScore < 0 {
		result = multierror.Append(result, fmt.Errorf("display.search_min_score must be >= 0"))
	}

	if strings.TrimSpace(c.Player.Binary) == "" {
		result = multierror.Append(result, fmt.Errorf("player.binary must be set"))
	}
	if c.Player.SaveInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("player.save_interval must be > 0"))
	}

	if c.Download.MaxConcurrent < 1 {
		result = multierror.Append(result, fmt.Errorf("download.max_concurrent must be >= 1"))
	}
	if c.Download.MaxRetries < 0 {
		result = multierror.Append(result, fmt.Errorf("download.max_retries must be >= 0"))
	}

	return result.ErrorOrNil()
}
