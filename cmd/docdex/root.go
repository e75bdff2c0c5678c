// Package main is the entry point for the docdex CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bad33ndj3/docdex/internal/common"
	"github.com/bad33ndj3/docdex/internal/config"
	"github.com/bad33ndj3/docdex/internal/fetcher"
	"github.com/bad33ndj3/docdex/internal/index"
	"github.com/bad33ndj3/docdex/internal/pipeline"
	"github.com/bad33ndj3/docdex/internal/storage"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string
	// rootDir overrides the cache root directory.
	rootDir string
	// jsonOut switches output to JSON for scripting.
	jsonOut bool
)

// rootCmd represents the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "docdex",
	Short: "A local-first cache and search engine for llms.txt documentation",
	Long: `docdex caches llms.txt-style documentation from arbitrary URLs in a
local, content-addressed store and answers fast full-text queries with
citation-grade results (source, heading path, exact line range).

Sources are fetched conditionally (ETag/Last-Modified), parsed into
heading-scoped blocks, and indexed per source so updates stay cheap.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// init sets up the application's commands and flags.
func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.docdex/config.toml)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "cache root directory (default is ~/.docdex)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "emit JSON output")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(tocCmd)
}

// loadConfig reads the configuration, honoring the --config flag.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if p, err := config.DefaultPath(); err == nil {
			path = p
		}
	}
	return config.Load(path)
}

// newPipeline wires storage, fetcher, and index cache from config.
func newPipeline() (*pipeline.Pipeline, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	root := rootDir
	if root == "" {
		root = cfg.RootDir
	}
	if root == "" {
		root, err = storage.DefaultRoot()
		if err != nil {
			return nil, nil, err
		}
	}

	logger := common.SetupLogger(cfg)

	store, err := storage.New(root)
	if err != nil {
		return nil, nil, err
	}

	f := fetcher.New(
		fetcher.WithTimeout(cfg.FetchTimeout()),
		fetcher.WithProbeRate(cfg.Fetch.ProbeRPS),
	)

	pipe := pipeline.New(store, f, index.NewHandleCache(),
		pipeline.WithLogger(logger),
		pipeline.WithPreferFull(cfg.Fetch.PreferFull),
	)
	return pipe, cfg, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printf writes formatted output to stdout.
func printf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format, args...)
}
