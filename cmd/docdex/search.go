// Package main is the entry point for the docdex CLI.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bad33ndj3/docdex/internal/index"
)

// searchCmd runs a full-text query across cached sources.
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search cached sources",
	Long: `Search one or all cached sources. Queries support quoted phrases,
implicit AND between terms, and the alias:, path:, heading:, and level:
field prefixes. Hits carry the heading path and exact line range.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringSlice("source", nil, "restrict the search to these aliases")
	searchCmd.Flags().IntP("limit", "n", 10, "maximum hits to return")
	searchCmd.Flags().Bool("heading", false, "match only against headings")
	searchCmd.Flags().String("level", "", "heading level predicate, e.g. '<=2', '3', '2-4'")
	searchCmd.Flags().IntP("context", "c", 0, "lines of context around each match (max 10)")
	searchCmd.Flags().Bool("block", false, "return each hit's heading section up to its first subheading")
	searchCmd.Flags().Int("max-lines", 0, "clamp block expansion to this many lines")
}

// runSearch executes the logic for the search command.
func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	sources, _ := cmd.Flags().GetStringSlice("source")
	limit, _ := cmd.Flags().GetInt("limit")
	headingOnly, _ := cmd.Flags().GetBool("heading")
	level, _ := cmd.Flags().GetString("level")
	contextLines, _ := cmd.Flags().GetInt("context")
	block, _ := cmd.Flags().GetBool("block")
	maxLines, _ := cmd.Flags().GetInt("max-lines")

	opts := index.SearchOptions{
		Limit:         limit,
		HeadingOnly:   headingOnly,
		ContextLines:  contextLines,
		BlockMode:     block,
		MaxBlockLines: maxLines,
	}
	if level != "" {
		lf, err := index.ParseLevelFilter(level)
		if err != nil {
			return err
		}
		opts.Level = lf
	}

	pipe, _, err := newPipeline()
	if err != nil {
		return err
	}

	if len(sources) == 0 {
		summaries, lerr := pipe.List()
		if lerr != nil {
			return lerr
		}
		for _, s := range summaries {
			sources = append(sources, s.Alias)
		}
	}

	res, aliasErrs := pipe.SearchMulti(sources, query, opts)

	if jsonOut {
		return printJSON(res)
	}

	for _, ae := range aliasErrs {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s skipped: %v\n", ae.Alias, ae.Err)
	}

	if len(res.Hits) == 0 {
		printf("No results for %q.\n", query)
		for _, s := range res.Suggestions {
			printf("  did you mean %q? (%s: %s)\n", s.Term, s.Alias, strings.Join(s.HeadingPath, " > "))
		}
		return nil
	}

	for i, hit := range res.Hits {
		printf("%d. %s  %s:%s  (score %.2f)\n", i+1, strings.Join(hit.HeadingPath, " > "), hit.Alias, hit.Lines, hit.Score)
		for _, line := range strings.Split(hit.Snippet, "\n") {
			printf("   %s\n", line)
		}
		if hit.Context != nil {
			printf("   --- context %s%s ---\n", hit.Context.Lines, truncatedMark(hit.Context.Truncated))
			for _, line := range strings.Split(hit.Context.Content, "\n") {
				printf("   %s\n", line)
			}
		}
	}
	return nil
}

func truncatedMark(truncated bool) string {
	if truncated {
		return " (truncated)"
	}
	return ""
}
