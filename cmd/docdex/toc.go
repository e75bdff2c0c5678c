// Package main is the entry point for the docdex CLI.
package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/bad33ndj3/docdex/internal/domain"
)

// tocCmd prints the hierarchical table of contents of a source.
var tocCmd = &cobra.Command{
	Use:   "toc <alias>",
	Short: "Show the table of contents of a cached source",
	Args:  cobra.ExactArgs(1),
	RunE:  runToc,
}

// runToc executes the logic for the toc command.
func runToc(cmd *cobra.Command, args []string) error {
	pipe, _, err := newPipeline()
	if err != nil {
		return err
	}

	toc, err := pipe.Toc(args[0])
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(toc)
	}

	printTocEntries(toc, 0)
	return nil
}

func printTocEntries(entries []domain.TocEntry, depth int) {
	for _, e := range entries {
		title := ""
		if len(e.HeadingPath) > 0 {
			title = e.HeadingPath[len(e.HeadingPath)-1]
		}
		printf("%s%-8s %s  (#%s)\n", strings.Repeat("  ", depth), e.Lines, title, e.Anchor)
		printTocEntries(e.Children, depth+1)
	}
}
