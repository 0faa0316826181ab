package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/csams/sterncast/internal/logging"
)

type statusResult struct {
	FeedURL       string `json:"feedUrl" yaml:"feedUrl"`
	FeedTitle     string `json:"feedTitle,omitempty" yaml:"feedTitle,omitempty"`
	Cached        bool   `json:"cached" yaml:"cached"`
	Episodes      int    `json:"episodes" yaml:"episodes"`
	LastUpdated   int64  `json:"lastUpdated,omitempty" yaml:"lastUpdated,omitempty"`
	Current       string `json:"current,omitempty" yaml:"current,omitempty"`
	Selected      string `json:"selected,omitempty" yaml:"selected,omitempty"`
	Played        int    `json:"played" yaml:"played"`
	Positions     int    `json:"positions" yaml:"positions"`
	Downloaded    int    `json:"downloaded" yaml:"downloaded"`
	DownloadBytes int64  `json:"downloadBytes" yaml:"downloadBytes"`
	FailedDL      int    `json:"failedDownloads" yaml:"failedDownloads"`
	SchemaVersion int    `json:"schemaVersion" yaml:"schemaVersion"`
	Database      string `json:"database" yaml:"database"`
	DownloadDir   string `json:"downloadDir" yaml:"downloadDir"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize the cached feed, playback state and downloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *services) error {
				snapshot := svc.tracker.Snapshot()
				result := statusResult{
					FeedURL:     svc.feed.URL(),
					Current:     svc.tracker.Current(),
					Selected:    svc.tracker.Selected(),
					Played:      len(snapshot.Played),
					Positions:   len(snapshot.Positions),
					Database:    svc.store.Path(),
					DownloadDir: svc.downloads.Dir(),
				}
				if f, ok := svc.feed.Cached(cmd.Context()); ok {
					result.Cached = true
					result.FeedTitle = f.Title
					result.Episodes = len(f.Episodes)
					result.LastUpdated = f.LastUpdated
				}
				stats := svc.downloads.Stats()
				result.Downloaded = stats.Episodes
				result.DownloadBytes = stats.TotalBytes
				result.FailedDL = stats.Failed
				version, err := svc.store.Version(cmd.Context())
				if err != nil {
					svc.logger.Warn("read schema version", logging.Error(err))
				}
				result.SchemaVersion = version

				if ok, err := ctx.writeStructured(cmd, result); ok {
					return err
				}

				dateFormat := svc.cfg.Display.DateFormat
				feedLine := "not cached yet (run `sterncast fetch`)"
				if result.Cached {
					feedLine = fmt.Sprintf("%s, %d episodes", result.FeedTitle, result.Episodes)
				}
				rows := [][]string{
					{"Feed", result.FeedURL},
					{"Cached", feedLine},
					{"Updated", formatMillis(dateFormat, result.LastUpdated)},
					{"Current", orDash(result.Current)},
					{"Selected", orDash(result.Selected)},
					{"Played", strconv.Itoa(result.Played)},
					{"Resume points", strconv.Itoa(result.Positions)},
					{"Downloads", fmt.Sprintf("%d (%s)", result.Downloaded, humanize.Bytes(uint64(result.DownloadBytes)))},
					{"Failed downloads", strconv.Itoa(result.FailedDL)},
					{"Schema version", strconv.Itoa(result.SchemaVersion)},
					{"Database", result.Database},
					{"Download dir", result.DownloadDir},
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out, []string{"Item", "Value"}, rows, nil))
				return nil
			})
		},
	}
}
