package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/csams/sterncast/internal/models"
)

var errNoEpisode = errors.New("no episode given and none selected")

func newSelectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "select <episode>",
		Short: "Select an episode (by ID like ep-42 or by number)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *services) error {
				f, _, err := loadFeed(cmd.Context(), svc, false)
				if err != nil {
					return err
				}
				ep, err := findEpisode(f, args[0])
				if err != nil {
					return err
				}
				svc.tracker.SelectEpisode(ep.ID)
				if ok, err := ctx.writeStructured(cmd, newEpisodeView(svc, ep)); ok {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Selected %s: %s\n", ep.ID, ep.Title)
				return nil
			})
		},
	}
}

type currentResult struct {
	Current  string  `json:"current,omitempty" yaml:"current,omitempty"`
	Selected string  `json:"selected,omitempty" yaml:"selected,omitempty"`
	Position float64 `json:"position" yaml:"position"`
	Title    string  `json:"title,omitempty" yaml:"title,omitempty"`
}

func newCurrentCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the current and selected episodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *services) error {
				result := currentResult{
					Current:  svc.tracker.Current(),
					Selected: svc.tracker.Selected(),
					Position: svc.tracker.CurrentPlaybackPosition(),
				}
				if result.Selected != "" {
					list := models.NewEpisodeList()
					if _, ok := list.LoadFromCache(cmd.Context(), svc.feed); ok {
						if ep, ok := list.ByID(result.Selected); ok {
							result.Title = ep.Title
						}
					}
				}
				if ok, err := ctx.writeStructured(cmd, result); ok {
					return err
				}

				out := cmd.OutOrStdout()
				if result.Current == "" && result.Selected == "" {
					fmt.Fprintln(out, "No episode selected")
					return nil
				}
				fmt.Fprintf(out, "Current:   %s\n", orDash(result.Current))
				fmt.Fprintf(out, "Selected:  %s\n", orDash(result.Selected))
				if result.Title != "" {
					fmt.Fprintf(out, "Title:     %s\n", result.Title)
				}
				fmt.Fprintf(out, "Resume at: %s\n", formatClock(result.Position))
				return nil
			})
		},
	}
}

func newPlayedCommand(ctx *commandContext) *cobra.Command {
	var unmark bool
	var list bool

	cmd := &cobra.Command{
		Use:   "played [episode]",
		Short: "Mark an episode played (defaults to the selected episode)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *services) error {
				out := cmd.OutOrStdout()
				if list {
					played := svc.tracker.Played()
					if ok, err := ctx.writeStructured(cmd, played); ok {
						return err
					}
					if len(played) == 0 {
						fmt.Fprintln(out, "No played episodes")
						return nil
					}
					for _, id := range played {
						fmt.Fprintln(out, id)
					}
					return nil
				}

				id := svc.tracker.Selected()
				if len(args) == 1 {
					id = normalizeEpisodeID(args[0])
				}
				if id == "" {
					return errNoEpisode
				}
				if unmark {
					svc.tracker.MarkEpisodeUnplayed(id)
					fmt.Fprintf(out, "Marked %s unplayed\n", id)
					return nil
				}
				svc.tracker.MarkEpisodePlayed(id)
				fmt.Fprintf(out, "Marked %s played\n", id)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&unmark, "unmark", false, "Remove the played mark instead")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "List played episode IDs")
	return cmd
}

func newPositionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "position <episode> [time]",
		Short: "Show or set the resume position (seconds, M:SS or H:MM:SS)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *services) error {
				id := normalizeEpisodeID(args[0])
				out := cmd.OutOrStdout()

				if len(args) == 2 {
					seconds, err := parseClock(args[1])
					if err != nil {
						return err
					}
					svc.tracker.UpdatePlaybackPosition(id, seconds)
					fmt.Fprintf(out, "Saved %s at %s\n", id, formatClock(seconds))
					return nil
				}

				pos, ok := svc.tracker.Position(id)
				if structured, err := ctx.writeStructured(cmd, pos); structured {
					return err
				}
				if !ok {
					fmt.Fprintf(out, "No saved position for %s\n", id)
					return nil
				}
				fmt.Fprintf(out, "%s: %s (saved %s)\n", id, formatClock(pos.Position),
					formatMillis(svc.cfg.Display.DateFormat, pos.Timestamp))
				return nil
			})
		},
	}
}

// parseClock accepts plain seconds or colon separated M:SS / H:MM:SS.
func parseClock(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if !strings.Contains(value, ":") {
		seconds, err := strconv.ParseFloat(value, 64)
		if err != nil || seconds < 0 {
			return 0, fmt.Errorf("invalid time %q", value)
		}
		return seconds, nil
	}

	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	var total float64
	for _, part := range parts {
		n, err := strconv.ParseFloat(part, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time %q", value)
		}
		total = total*60 + n
	}
	return total, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
