// Package main is the entry point for the docdex CLI.
package main

import (
	"github.com/spf13/cobra"
)

// refreshCmd conditionally re-fetches sources.
var refreshCmd = &cobra.Command{
	Use:   "refresh [alias...]",
	Short: "Conditionally re-fetch sources and rebuild indexes",
	Long: `Re-fetch sources with ETag/If-Modified-Since validators. Unchanged
upstreams cost one cheap 304; changed content is archived, re-parsed,
and re-indexed with an atomic swap. Without arguments all sources are
refreshed; one failure never aborts the rest.`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().Int("concurrency", 0, "bulk refresh concurrency (default from config)")
}

// runRefresh executes the logic for the refresh command.
func runRefresh(cmd *cobra.Command, args []string) error {
	pipe, cfg, err := newPipeline()
	if err != nil {
		return err
	}

	aliases := args
	if len(aliases) == 0 {
		summaries, lerr := pipe.List()
		if lerr != nil {
			return lerr
		}
		for _, s := range summaries {
			aliases = append(aliases, s.Alias)
		}
	}

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency <= 0 {
		concurrency = cfg.Refresh.Concurrency
	}

	results := pipe.RefreshAll(cmd.Context(), aliases, concurrency)

	if jsonOut {
		type row struct {
			Alias  string `json:"alias"`
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}
		rows := make([]row, 0, len(results))
		for _, r := range results {
			out := row{Alias: r.Alias, Status: r.Status}
			if r.Err != nil {
				out.Error = r.Err.Error()
			}
			rows = append(rows, out)
		}
		return printJSON(rows)
	}

	for _, r := range results {
		switch r.Status {
		case "error":
			printf("%-20s error: %v\n", r.Alias, r.Err)
		case "updated":
			printf("%-20s updated (%d moved, %d added, %d removed)\n",
				r.Alias, len(r.Diff.Moved), len(r.Diff.Added), len(r.Diff.Removed))
		default:
			printf("%-20s unchanged\n", r.Alias)
		}
	}
	return nil
}
