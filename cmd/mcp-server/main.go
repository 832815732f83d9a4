// Package main is the entry point for the skin lesion advisor MCP server.
// It speaks MCP over stdio and needs no external services.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/skin-lesion-advisor/internal/config"
	"github.com/skin-lesion-advisor/internal/mcp"
	"github.com/skin-lesion-advisor/internal/setup"
)

func main() {
	// stdout carries the protocol
	log.SetOutput(os.Stderr)

	cfg := config.LoadLiteConfig()

	if len(os.Args) > 1 && os.Args[1] == "setup" {
		executable, _ := os.Executable()
		cli := setup.NewCLI(os.Stdout, executable, cfg.DataDir)
		if err := cli.Run(os.Args[2:]); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}

	log.Printf("Data directory: %s", cfg.DataDir)

	server, err := mcp.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		log.Printf("MCP server failed: %v", err)
		return
	}

	log.Println("MCP server stopped")
}
