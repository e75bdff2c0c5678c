// Package main is the entry point for the docdex CLI.
package main

import (
	"github.com/spf13/cobra"
)

// removeCmd deletes a cached source.
var removeCmd = &cobra.Command{
	Use:     "remove <alias>",
	Aliases: []string{"rm"},
	Short:   "Delete a cached source and its index",
	Args:    cobra.ExactArgs(1),
	RunE:    runRemove,
}

// runRemove executes the logic for the remove command.
func runRemove(cmd *cobra.Command, args []string) error {
	pipe, _, err := newPipeline()
	if err != nil {
		return err
	}
	if err := pipe.Remove(args[0]); err != nil {
		return err
	}
	printf("Removed %s.\n", args[0])
	return nil
}
