package main

import (
	"context"
	"log"
	"os"

	"github.com/dusk-indust/segmerge/internal/mcptools"
)

// serveMCP exposes the merge tools over MCP. Settings resolved from the
// config file and flags become the defaults of every tool call.
func serveMCP(ctx context.Context, opts options, addr string) error {
	root, err := os.Getwd()
	if err != nil {
		return err
	}

	mcptools.SetVersion(version)
	server := mcptools.NewMergeMCPServer(mcptools.NewMergeService(opts.merge, root))

	if addr != "" {
		log.Printf("segmerge: serving MCP on %s", addr)
		return mcptools.RunMergeMCPServerHTTP(ctx, server, addr)
	}
	return mcptools.RunMergeMCPServerStdio(ctx, server)
}
