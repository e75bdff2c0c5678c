// Package main is the entry point for the docdex CLI.
package main

import (
	"github.com/spf13/cobra"

	"github.com/bad33ndj3/docdex/internal/pipeline"
)

// getCmd reads exact line ranges from a cached source.
var getCmd = &cobra.Command{
	Use:   "get <alias> <lines>",
	Short: "Read exact line ranges from a cached source",
	Long: `Read lines from a source by range expression: "42", "120-142",
"36+20", or a comma-separated list. Overlapping ranges are merged.
With --block each range expands to its enclosing heading section.`,
	Args: cobra.ExactArgs(2),
	RunE: runGet,
}

func init() {
	getCmd.Flags().IntP("context", "c", 0, "widen each range by this many lines (max 10)")
	getCmd.Flags().Bool("block", false, "expand each range to its enclosing heading section")
	getCmd.Flags().Int("max-lines", 0, "clamp block expansion to this many lines")
}

// runGet executes the logic for the get command.
func runGet(cmd *cobra.Command, args []string) error {
	contextLines, _ := cmd.Flags().GetInt("context")
	block, _ := cmd.Flags().GetBool("block")
	maxLines, _ := cmd.Flags().GetInt("max-lines")

	pipe, _, err := newPipeline()
	if err != nil {
		return err
	}

	res, err := pipe.Get(args[0], args[1], pipeline.GetOptions{
		ContextLines:  contextLines,
		Block:         block,
		MaxBlockLines: maxLines,
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(res)
	}

	for i, line := range res.Content {
		printf("%6d  %s\n", res.Lines[i], line)
	}
	if res.Truncated {
		printf("(truncated)\n")
	}
	return nil
}
