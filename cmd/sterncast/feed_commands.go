package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/csams/sterncast/internal/feed"
	"github.com/csams/sterncast/internal/markdown"
	"github.com/csams/sterncast/internal/models"
	"github.com/csams/sterncast/internal/search"
)

type fetchResult struct {
	Title       string `json:"title" yaml:"title"`
	Source      string `json:"source" yaml:"source"`
	Episodes    int    `json:"episodes" yaml:"episodes"`
	LastUpdated int64  `json:"lastUpdated" yaml:"lastUpdated"`
}

func newFetchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the feed, falling back to the cached copy when offline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *services) error {
				f, source, err := svc.feed.FetchWithSource(cmd.Context())
				if err != nil {
					return fmt.Errorf("fetch feed: %w", err)
				}
				result := fetchResult{
					Title:       f.Title,
					Source:      source.String(),
					Episodes:    len(f.Episodes),
					LastUpdated: f.LastUpdated,
				}
				if ok, err := ctx.writeStructured(cmd, result); ok {
					return err
				}

				out := cmd.OutOrStdout()
				updated := formatTime(svc.cfg.Display.DateFormat, f.UpdatedAt())
				if source == feed.SourceCache {
					fmt.Fprintf(out, "Network unavailable; using cached %s (%d episodes, updated %s)\n", f.Title, len(f.Episodes), updated)
					return nil
				}
				fmt.Fprintf(out, "Fetched %s: %d episodes\n", f.Title, len(f.Episodes))
				return nil
			})
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var refresh bool
	var unplayed bool
	var byNumber bool
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List episodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *services) error {
				f, _, err := loadFeed(cmd.Context(), svc, refresh)
				if err != nil {
					return err
				}

				episodes := f.Episodes
				if byNumber {
					episodes = sortByNumber(episodes)
				}
				views := make([]episodeView, 0, len(episodes))
				for _, ep := range episodes {
					if unplayed && svc.tracker.IsPlayed(ep.ID) {
						continue
					}
					views = append(views, newEpisodeView(svc, ep))
					if limit > 0 && len(views) >= limit {
						break
					}
				}
				if ok, err := ctx.writeStructured(cmd, views); ok {
					return err
				}

				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No episodes")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{v.marks(), v.Number, truncate(v.Title, 60), v.PubDate, v.length()})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"", "#", "Title", "Published", "Length"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "Fetch from the network before listing")
	cmd.Flags().BoolVarP(&unplayed, "unplayed", "u", false, "Only show episodes not marked played")
	cmd.Flags().BoolVar(&byNumber, "by-number", false, "Order by episode number, newest first")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many episodes")
	return cmd
}

type showResult struct {
	episodeView `yaml:",inline"`
	Description string `json:"description" yaml:"description"`
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asMarkdown bool

	cmd := &cobra.Command{
		Use:   "show <episode>",
		Short: "Show one episode with its description",
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

				converter := markdown.NewConverter()
				description := converter.ToMarkdown(ep.Description)
				if !asMarkdown {
					description = converter.PlainText(ep.Description)
				}
				result := showResult{episodeView: newEpisodeView(svc, ep), Description: description}
				if ok, err := ctx.writeStructured(cmd, result); ok {
					return err
				}

				out := cmd.OutOrStdout()
				v := result.episodeView
				fmt.Fprintf(out, "%s  %s\n", v.ID, v.Title)
				fmt.Fprintf(out, "Published: %s\n", v.PubDate)
				fmt.Fprintf(out, "Length:    %s\n", v.length())
				fmt.Fprintf(out, "Played:    %s\n", yesNo(v.Played))
				if v.Position > 0 {
					fmt.Fprintf(out, "Resume at: %s\n", formatClock(v.Position))
				}
				if v.Downloaded != "" {
					fmt.Fprintf(out, "File:      %s\n", v.Downloaded)
				}
				if description != "" {
					fmt.Fprintln(out)
					fmt.Fprintln(out, description)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asMarkdown, "markdown", false, "Print the description as Markdown instead of plain text")
	return cmd
}

type searchHit struct {
	episodeView `yaml:",inline"`
	Field       string `json:"field" yaml:"field"`
	Score       int    `json:"score" yaml:"score"`
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var minScore int
	var caseSensitive bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Fuzzy search episode titles, numbers and descriptions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *services) error {
				f, _, err := loadFeed(cmd.Context(), svc, false)
				if err != nil {
					return err
				}

				threshold := svc.cfg.Display.SearchMinScore
				if cmd.Flags().Changed("min-score") {
					threshold = minScore
				}
				query := strings.Join(args, " ")
				hits := searchEpisodes(svc, f.Episodes, query, threshold, caseSensitive)
				if ok, err := ctx.writeStructured(cmd, hits); ok {
					return err
				}

				out := cmd.OutOrStdout()
				if len(hits) == 0 {
					fmt.Fprintf(out, "No episodes match %q\n", query)
					return nil
				}
				rows := make([][]string, 0, len(hits))
				for _, h := range hits {
					rows = append(rows, []string{h.marks(), h.Number, truncate(h.Title, 60), h.Field, strconv.Itoa(h.Score)})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"", "#", "Title", "Match", "Score"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&minScore, "min-score", 0, "Minimum match score (defaults to display.search_min_score)")
	cmd.Flags().BoolVar(&caseSensitive, "case-sensitive", false, "Match case exactly")
	return cmd
}

func searchEpisodes(svc *services, episodes []models.Episode, query string, minScore int, caseSensitive bool) []searchHit {
	matcher := search.New(query, minScore)
	matcher.SetCaseSensitive(caseSensitive)
	found := matcher.Filter(episodes)
	hits := make([]searchHit, 0, len(found))
	for _, h := range found {
		hits = append(hits, searchHit{
			episodeView: newEpisodeView(svc, h.Episode),
			Field:       string(h.Field),
			Score:       h.Result.Score,
		})
	}
	return hits
}

// sortByNumber orders episodes by descending episode number. Episodes without
// a numeric number keep their relative order at the end.
func sortByNumber(episodes []models.Episode) []models.Episode {
	out := make([]models.Episode, len(episodes))
	copy(out, episodes)
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := out[i].Number()
		b, bok := out[j].Number()
		if aok != bok {
			return aok
		}
		return aok && a > b
	})
	return out
}
