package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/csams/sterncast/internal/markdown"
	"github.com/csams/sterncast/internal/ui"
)

func newBrowseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse episodes in an interactive terminal list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The screen owns the terminal; logs only go to logging.file.
			return ctx.withServicesLogging(io.Discard, func(svc *services) error {
				app := ui.NewApp(ui.Options{
					Feed:      svc.feed,
					Tracker:   svc.tracker,
					Downloads: svc.downloads,
					Converter: markdown.NewConverter(),
					Logger:    svc.logger,
					MinScore:  svc.cfg.Display.SearchMinScore,
				})
				return app.Run(cmd.Context())
			})
		},
	}
}
