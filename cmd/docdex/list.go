// Package main is the entry point for the docdex CLI.
package main

import (
	"github.com/spf13/cobra"
)

// listCmd shows all cached sources.
var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List cached sources",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

// runList executes the logic for the list command.
func runList(cmd *cobra.Command, args []string) error {
	pipe, _, err := newPipeline()
	if err != nil {
		return err
	}

	summaries, err := pipe.List()
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(summaries)
	}

	if len(summaries) == 0 {
		printf("No sources cached. Use 'docdex add <alias> <url>' to start.\n")
		return nil
	}

	for _, s := range summaries {
		printf("%-20s %-7s %6d lines  %4d headings  %s\n",
			s.Alias, s.Variant, s.TotalLines, s.Headings, s.URL)
	}
	return nil
}
