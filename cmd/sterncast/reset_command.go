package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/csams/sterncast/internal/playback"
)

func newResetCommand(ctx *commandContext) *cobra.Command {
	var feedCache bool
	var state bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget the cached feed and/or the playback state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !feedCache && !state {
				return errors.New("nothing to reset: pass --feed, --state or both")
			}
			return ctx.withServices(cmd, func(svc *services) error {
				out := cmd.OutOrStdout()
				if feedCache {
					if err := svc.store.DeleteFeed(cmd.Context()); err != nil {
						return fmt.Errorf("clear cached feed: %w", err)
					}
					fmt.Fprintln(out, "Cleared cached feed")
				}
				if state {
					if err := svc.state.Delete(playback.StorageKey); err != nil {
						return fmt.Errorf("clear playback state: %w", err)
					}
					fmt.Fprintln(out, "Cleared playback state")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&feedCache, "feed", false, "Delete the cached feed snapshot")
	cmd.Flags().BoolVar(&state, "state", false, "Delete selection, resume positions and played marks")
	return cmd
}
