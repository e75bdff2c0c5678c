// Package main is the entry point for the docdex MCP server.
// It wires together all dependencies and starts the stdio transport.
//
// This file is intentionally minimal - all business logic lives in
// internal/.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bad33ndj3/docdex/internal/common"
	"github.com/bad33ndj3/docdex/internal/config"
	"github.com/bad33ndj3/docdex/internal/fetcher"
	"github.com/bad33ndj3/docdex/internal/index"
	mcphandlers "github.com/bad33ndj3/docdex/internal/mcp"
	"github.com/bad33ndj3/docdex/internal/pipeline"
	"github.com/bad33ndj3/docdex/internal/storage"
)

const (
	serverName    = "docdex"
	serverVersion = "v1.0.0"
)

func main() {
	configPath := flag.String("config", "", "Path to config.toml (default: ~/.docdex/config.toml)")
	rootDir := flag.String("root", "", "Cache root directory (overrides config)")
	flag.Parse()

	path := *configPath
	if path == "" {
		if p, err := config.DefaultPath(); err == nil {
			path = p
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		cfg = config.Default()
	}

	root := *rootDir
	if root == "" {
		root = cfg.RootDir
	}
	if root == "" {
		root, err = storage.DefaultRoot()
		if err != nil {
			os.Exit(1)
		}
	}

	// An MCP stdio server owns stdout, so logs always go to a file
	// inside the cache root.
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(root, "docdex-mcp.log")
	}
	logger := common.SetupLogger(cfg)

	store, err := storage.New(root)
	if err != nil {
		logger.Fatal().Err(err).Str("root", root).Msg("failed to open storage")
	}

	f := fetcher.New(
		fetcher.WithTimeout(cfg.FetchTimeout()),
		fetcher.WithProbeRate(cfg.Fetch.ProbeRPS),
	)

	pipe := pipeline.New(store, f, index.NewHandleCache(),
		pipeline.WithLogger(logger),
		pipeline.WithPreferFull(cfg.Fetch.PreferFull),
	)

	handlers := mcphandlers.NewHandlers(pipe, logger)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, &mcp.ServerOptions{
		Instructions: "Use docs_add to cache an llms.txt source once, then docs_search for ranked, line-cited excerpts and docs_get to read exact line ranges.",
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "docs_add",
		Description: "Fetch an llms.txt URL and cache it locally under an alias, building a full-text index.",
	}, handlers.DocsAdd)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "docs_search",
		Description: "Search cached sources. Returns ranked hits with heading path, exact line ranges, and snippets.",
	}, handlers.DocsSearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "docs_get",
		Description: "Read exact line ranges from a cached source, optionally expanded to the enclosing heading section.",
	}, handlers.DocsGet)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "docs_list",
		Description: "List all cached sources with URL, variant, fetch time, and size.",
	}, handlers.DocsList)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "docs_refresh",
		Description: "Conditionally re-fetch one source (or all) and rebuild the index when content changed.",
	}, handlers.DocsRefresh)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "docs_remove",
		Description: "Delete a cached source and its index.",
	}, handlers.DocsRemove)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "docs_toc",
		Description: "Return the hierarchical table of contents of a cached source.",
	}, handlers.DocsToc)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "docs_diff",
		Description: "Show moved, added, and removed sections since the last archived snapshot.",
	}, handlers.DocsDiff)

	logger.Info().Str("root", root).Msg("server ready, waiting for requests")

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
