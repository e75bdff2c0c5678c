// Package main is the entry point for the docdex CLI.
package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/bad33ndj3/docdex/internal/domain"
	"github.com/bad33ndj3/docdex/internal/pipeline"
)

// addCmd caches a new llms.txt source under an alias.
var addCmd = &cobra.Command{
	Use:   "add <alias> <url>",
	Short: "Fetch an llms.txt URL and cache it under an alias",
	Long: `Fetch a document, parse it into heading blocks, and build the
full-text index. The alias is normalized to lowercase kebab-case and
becomes the on-disk directory name.`,
	Args: cobra.ExactArgs(2),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().Bool("force", false, "replace the source if it already exists")
	addCmd.Flags().StringSlice("tag", nil, "tags to record on the source")
	addCmd.Flags().StringSlice("alias", nil, "secondary aliases for the source")
	addCmd.Flags().Bool("filter-non-english", false, "skip sections with entirely non-English headings")
}

// runAdd executes the logic for the add command.
func runAdd(cmd *cobra.Command, args []string) error {
	alias := domain.NormalizeAlias(args[0])
	url := args[1]

	force, _ := cmd.Flags().GetBool("force")
	tags, _ := cmd.Flags().GetStringSlice("tag")
	secondary, _ := cmd.Flags().GetStringSlice("alias")
	filterNonEnglish, _ := cmd.Flags().GetBool("filter-non-english")

	pipe, _, err := newPipeline()
	if err != nil {
		return err
	}

	doc, err := pipe.Add(cmd.Context(), alias, url, pipeline.AddOptions{
		Force:            force,
		Tags:             tags,
		Aliases:          secondary,
		FilterNonEnglish: filterNonEnglish,
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(doc)
	}

	printf("Cached %s as %q (%d lines, %d headings, variant %s)\n",
		url, alias, doc.LineIndex.TotalLines, countEntries(doc.Toc), doc.Source.Variant)
	if len(doc.Diagnostics) > 0 {
		printf("Diagnostics:\n  %s\n", strings.Join(doc.Diagnostics, "\n  "))
	}
	return nil
}

func countEntries(entries []domain.TocEntry) int {
	n := len(entries)
	for _, e := range entries {
		n += countEntries(e.Children)
	}
	return n
}
