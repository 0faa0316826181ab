package main

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/csams/sterncast/internal/download"
	"github.com/csams/sterncast/internal/models"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var (
		all      bool
		unplayed bool
		list     bool
		prune    bool
		remove   bool
	)

	cmd := &cobra.Command{
		Use:   "download [episode...]",
		Short: "Download episodes for offline listening",
		Long: "Download episodes into paths.download_dir. Without arguments the selected\n" +
			"episode is downloaded. Use --all or --unplayed for bulk downloads.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *services) error {
				switch {
				case list:
					return listDownloads(ctx, cmd, svc)
				case prune:
					count, freed, err := svc.downloads.PrunePlayed(svc.tracker.IsPlayed)
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %d played episodes, freed %s\n", count, humanize.Bytes(uint64(freed)))
					return err
				case remove:
					if len(args) == 0 {
						return errors.New("--remove needs at least one episode")
					}
					for _, arg := range args {
						id := normalizeEpisodeID(arg)
						if err := svc.downloads.Remove(id); err != nil {
							return err
						}
						fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
					}
					return nil
				}

				f, _, err := loadFeed(cmd.Context(), svc, false)
				if err != nil {
					return err
				}
				episodes, err := downloadTargets(svc, f, args, all, unplayed)
				if err != nil {
					return err
				}
				if len(episodes) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to download")
					return nil
				}

				reporter := newProgressReporter(cmd.OutOrStdout(), episodes)
				if len(episodes) == 1 {
					path, err := svc.downloads.Download(cmd.Context(), episodes[0], reporter.report)
					if errors.Is(err, download.ErrAlreadyDownloaded) {
						fmt.Fprintf(cmd.OutOrStdout(), "%s already downloaded: %s\n", episodes[0].ID, path)
						return nil
					}
					return err
				}
				return svc.downloads.DownloadAll(cmd.Context(), episodes, reporter.report)
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Download every episode in the feed")
	cmd.Flags().BoolVarP(&unplayed, "unplayed", "u", false, "Download every episode not marked played")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "List downloads")
	cmd.Flags().BoolVar(&prune, "prune", false, "Delete downloads of played episodes")
	cmd.Flags().BoolVar(&remove, "remove", false, "Delete the downloads of the given episodes")
	cmd.MarkFlagsMutuallyExclusive("all", "unplayed", "list", "prune", "remove")
	return cmd
}

func downloadTargets(svc *services, f *models.PodcastFeed, args []string, all, unplayed bool) ([]models.Episode, error) {
	switch {
	case all:
		return f.Episodes, nil
	case unplayed:
		var out []models.Episode
		for _, ep := range f.Episodes {
			if !svc.tracker.IsPlayed(ep.ID) {
				out = append(out, ep)
			}
		}
		return out, nil
	}

	if len(args) == 0 {
		selected := svc.tracker.Selected()
		if selected == "" {
			return nil, errNoEpisode
		}
		args = []string{selected}
	}
	out := make([]models.Episode, 0, len(args))
	for _, arg := range args {
		ep, err := findEpisode(f, arg)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, nil
}

func listDownloads(ctx *commandContext, cmd *cobra.Command, svc *services) error {
	downloads := svc.downloads.Downloads()
	if ok, err := ctx.writeStructured(cmd, downloads); ok {
		return err
	}
	out := cmd.OutOrStdout()
	if len(downloads) == 0 {
		fmt.Fprintln(out, "No downloads")
		return nil
	}
	rows := make([][]string, 0, len(downloads))
	for _, info := range downloads {
		size := "-"
		if info.Size > 0 {
			size = humanize.Bytes(uint64(info.Size))
		}
		rows = append(rows, []string{info.EpisodeID, truncate(info.Title, 50), info.Status, size, formatTime(svc.cfg.Display.DateFormat, info.CompletedAt)})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"Episode", "Title", "Status", "Size", "Completed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	return nil
}

// progressReporter prints one line per finished download. On a terminal it
// also keeps a live percentage on the current line.
type progressReporter struct {
	mu     sync.Mutex
	out    io.Writer
	live   bool
	titles map[string]string
}

func newProgressReporter(out io.Writer, episodes []models.Episode) *progressReporter {
	titles := make(map[string]string, len(episodes))
	for _, ep := range episodes {
		titles[ep.ID] = ep.Title
	}
	return &progressReporter{out: out, live: isTerminal(out), titles: titles}
}

func (r *progressReporter) report(p download.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch p.Status {
	case download.StatusDownloading:
		if r.live {
			fmt.Fprintf(r.out, "\r%s %3.0f%% %s/s   ", p.EpisodeID, p.Fraction*100, humanize.Bytes(uint64(p.Speed)))
		}
	case download.StatusCompleted:
		r.clearLine()
		fmt.Fprintf(r.out, "Downloaded %s: %s\n", p.EpisodeID, r.titles[p.EpisodeID])
	case download.StatusFailed:
		r.clearLine()
		fmt.Fprintf(r.out, "Failed %s: %v\n", p.EpisodeID, p.Err)
	}
}

func (r *progressReporter) clearLine() {
	if r.live {
		fmt.Fprint(r.out, "\r\033[K")
	}
}
