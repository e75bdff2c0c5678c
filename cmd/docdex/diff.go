// Package main is the entry point for the docdex CLI.
package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/bad33ndj3/docdex/internal/domain"
)

// diffCmd shows section-level changes since the last snapshot.
var diffCmd = &cobra.Command{
	Use:   "diff <alias>",
	Short: "Show moved, added, and removed sections since the last snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiff,
}

func init() {
	diffCmd.Flags().Bool("anchors", false, "also print the persisted anchor remap history")
	diffCmd.Flags().Bool("content", false, "include content slices for each changed section")
}

// runDiff executes the logic for the diff command.
func runDiff(cmd *cobra.Command, args []string) error {
	showAnchors, _ := cmd.Flags().GetBool("anchors")
	showContent, _ := cmd.Flags().GetBool("content")

	pipe, _, err := newPipeline()
	if err != nil {
		return err
	}

	diff, err := pipe.Diff(args[0])
	if err != nil {
		return err
	}

	if jsonOut {
		if showAnchors {
			remap, aerr := pipe.Anchors(args[0])
			if aerr != nil {
				return aerr
			}
			return printJSON(struct {
				Diff    *domain.DiffResult `json:"diff"`
				Anchors *domain.AnchorsMap `json:"anchors"`
			}{diff, remap})
		}
		return printJSON(diff)
	}

	printf("%d moved, %d added, %d removed\n", len(diff.Moved), len(diff.Added), len(diff.Removed))
	for _, e := range diff.Moved {
		printf("  moved   %-30s %s -> %s\n", e.Anchor, e.OldLines, e.NewLines)
		printEntryContent(e, showContent)
	}
	for _, e := range diff.Added {
		printf("  added   %-30s %s\n", e.Anchor, e.Lines)
		printEntryContent(e, showContent)
	}
	for _, e := range diff.Removed {
		printf("  removed %-30s %s\n", e.Anchor, e.Lines)
		printEntryContent(e, showContent)
	}

	if showAnchors {
		remap, aerr := pipe.Anchors(args[0])
		if aerr != nil {
			return aerr
		}
		printf("anchor history (%d mappings, updated %s):\n",
			len(remap.Mappings), remap.UpdatedAt.Format("2006-01-02 15:04"))
		for _, m := range remap.Mappings {
			printf("  %-30s %s -> %s  (%s)\n",
				m.Anchor, m.OldLines, m.NewLines, strings.Join(m.HeadingPath, " > "))
		}
	}
	return nil
}

func printEntryContent(e domain.DiffEntry, show bool) {
	if !show || e.Content == "" {
		return
	}
	for _, line := range strings.Split(e.Content, "\n") {
		printf("          | %s\n", line)
	}
}
