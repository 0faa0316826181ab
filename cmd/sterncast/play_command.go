package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/csams/sterncast/internal/logging"
	"github.com/csams/sterncast/internal/player"
)

func newPlayCommand(ctx *commandContext) *cobra.Command {
	var from string
	var restart bool

	cmd := &cobra.Command{
		Use:   "play [episode]",
		Short: "Play an episode with mpv, resuming where you stopped",
		Long: "Play an episode with mpv. Without an argument the selected episode is played.\n" +
			"The resume position is saved while playing and when playback stops; an episode\n" +
			"that plays to the end is marked played. A downloaded copy is preferred over streaming.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *services) error {
				f, _, err := loadFeed(cmd.Context(), svc, false)
				if err != nil {
					return err
				}
				target := svc.tracker.Selected()
				if len(args) == 1 {
					target = args[0]
				}
				if target == "" {
					return errNoEpisode
				}
				ep, err := findEpisode(f, target)
				if err != nil {
					return err
				}

				svc.tracker.SelectEpisode(ep.ID)
				startAt := svc.tracker.CurrentPlaybackPosition()
				switch {
				case restart:
					startAt = 0
				case from != "":
					if startAt, err = parseClock(from); err != nil {
						return err
					}
				}

				source := ep.AudioURL
				origin := "streaming"
				if path, ok := svc.downloads.LocalPath(ep.ID); ok {
					source = path
					origin = "local file"
				}
				if source == "" {
					return fmt.Errorf("%s has no audio", ep.ID)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Playing %s: %s (from %s, %s)\n", ep.ID, ep.Title, formatClock(startAt), origin)

				p := player.New(svc.cfg.Player.Binary, svc.logger)
				if err := p.Play(cmd.Context(), source, startAt); err != nil {
					return fmt.Errorf("start player: %w", err)
				}
				defer func() {
					if err := p.Stop(); err != nil {
						svc.logger.Warn("stop player", logging.Error(err))
					}
				}()

				watchCtx, quit := context.WithCancel(cmd.Context())
				defer quit()
				if in, ok := cmd.InOrStdin().(*os.File); ok && isTerminal(in) {
					fmt.Fprintln(out, "Controls: Enter/p pause, f/b skip 30s, a time like 12:30 jumps, q stops")
					go readControls(watchCtx, in, p, cmd.ErrOrStderr(), quit)
				}

				outcome, err := p.Watch(watchCtx, svc.cfg.SaveInterval(), func(prog player.Progress) {
					svc.tracker.UpdatePlaybackPosition(ep.ID, prog.Position)
				})
				if err != nil {
					return fmt.Errorf("watch player: %w", err)
				}

				if outcome.Finished {
					svc.tracker.UpdatePlaybackPosition(ep.ID, 0)
					svc.tracker.MarkEpisodePlayed(ep.ID)
					fmt.Fprintf(out, "Finished %s\n", ep.ID)
					return nil
				}
				position := outcome.Position
				if position == 0 {
					// stopped before the first sample
					position = startAt
				}
				svc.tracker.UpdatePlaybackPosition(ep.ID, position)
				fmt.Fprintf(out, "Stopped %s at %s\n", ep.ID, formatClock(position))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Start at this time instead of the saved position")
	cmd.Flags().BoolVar(&restart, "restart", false, "Start from the beginning")
	return cmd
}

const skipSeconds = 30

// playerControl is the part of player.Player the keyboard controls drive.
type playerControl interface {
	TogglePause(ctx context.Context) error
	Seek(ctx context.Context, seconds float64) error
	SeekAbsolute(ctx context.Context, seconds float64) error
}

func readControls(ctx context.Context, in io.Reader, ctl playerControl, errOut io.Writer, quit context.CancelFunc) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		stop, err := handleControl(ctx, ctl, scanner.Text())
		if err != nil {
			fmt.Fprintln(errOut, err)
		}
		if stop {
			quit()
			return
		}
	}
}

// handleControl applies one line of keyboard input and reports whether
// playback should stop.
func handleControl(ctx context.Context, ctl playerControl, line string) (bool, error) {
	switch cmd := strings.ToLower(strings.TrimSpace(line)); cmd {
	case "", "p":
		return false, ctl.TogglePause(ctx)
	case "f":
		return false, ctl.Seek(ctx, skipSeconds)
	case "b":
		return false, ctl.Seek(ctx, -skipSeconds)
	case "q":
		return true, nil
	default:
		seconds, err := parseClock(cmd)
		if err != nil {
			return false, fmt.Errorf("unknown control %q", line)
		}
		return false, ctl.SeekAbsolute(ctx, seconds)
	}
}
