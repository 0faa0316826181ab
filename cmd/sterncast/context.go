package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/csams/sterncast/internal/config"
	"github.com/csams/sterncast/internal/download"
	"github.com/csams/sterncast/internal/feed"
	"github.com/csams/sterncast/internal/kvstore"
	"github.com/csams/sterncast/internal/logging"
	"github.com/csams/sterncast/internal/playback"
	"github.com/csams/sterncast/internal/store"
)

type commandContext struct {
	configFlag *string
	outputFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, outputFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		outputFlag: outputFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// services are the long-lived collaborators a command works with.
type services struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Handle
	feed      *feed.Service
	state     *kvstore.FileStore
	tracker   *playback.Tracker
	downloads *download.Manager
}

func (s *services) close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("close feed store", logging.Error(err))
		}
	}
}

// withServices opens the feed store, playback state and download registry,
// runs fn and closes them again. Logs go to the command's stderr.
func (c *commandContext) withServices(cmd *cobra.Command, fn func(*services) error) error {
	return c.withServicesLogging(cmd.ErrOrStderr(), fn)
}

func (c *commandContext) withServicesLogging(logOut io.Writer, fn func(*services) error) error {
	svc, err := c.openServices(logOut)
	if err != nil {
		return err
	}
	defer svc.close()
	return fn(svc)
}

func (c *commandContext) openServices(logOut io.Writer) (*services, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Writer: logOut,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	handle := store.New(cfg.FeedDatabasePath(), logger)
	feedOpts := []feed.Option{feed.WithUserAgent(cfg.Feed.UserAgent)}
	if timeout := cfg.RequestTimeout(); timeout > 0 {
		feedOpts = append(feedOpts, feed.WithTimeout(timeout))
	}
	svc := &services{
		cfg:    cfg,
		logger: logger,
		store:  handle,
		feed:   feed.NewService(cfg.Feed.URL, handle, logger, feedOpts...),
	}

	kv, err := kvstore.NewFileStore(cfg.StateDir())
	if err != nil {
		svc.close()
		return nil, fmt.Errorf("open playback state: %w", err)
	}
	svc.state = kv
	svc.tracker = playback.NewTracker(kv, logger)
	svc.tracker.Restore()

	downloads, err := download.NewManager(cfg.Paths.DownloadDir, cfg.Feed.UserAgent, logger,
		download.WithConcurrency(cfg.Download.MaxConcurrent),
		download.WithRetries(cfg.Download.MaxRetries),
	)
	if err != nil {
		svc.close()
		return nil, fmt.Errorf("open downloads: %w", err)
	}
	svc.downloads = downloads

	return svc, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
