// Ember: continuity and review MCP server.
//
// Ember gives AI coding sessions memory that survives between
// conversations and a review loop that runs an external reviewer agent
// over completed work.
//
// Usage:
//
//	ember serve    # Start MCP server (stdio transport)
//	ember update   # Update to the latest version
package main

import (
	"fmt"
	"os"

	embserver "github.com/emberhq/ember/internal/server"
	"github.com/emberhq/ember/internal/updater"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "update":
		runUpdate()
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("ember v%s\n", embserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	s, cleanup, err := embserver.New()
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Background version check — prints to stderr so it doesn't
	// interfere with MCP's stdio transport on stdout.
	go checkForUpdates()

	// The stdio server manages its own lifecycle: it returns when stdin
	// closes, which is how MCP clients signal shutdown.
	return server.ServeStdio(s)
}

// checkForUpdates runs a non-blocking version check and prints a notice
// to stderr if an update is available. Best-effort: network failures
// are silently ignored.
func checkForUpdates() {
	result := updater.CheckVersion(embserver.Version)
	if result.UpdateAvailable {
		fmt.Fprintf(os.Stderr,
			"\n  Update available: v%s -> v%s\n"+
				"  Run: ember update\n"+
				"  Release: %s\n\n",
			result.CurrentVersion, result.LatestVersion, result.ReleaseURL,
		)
	}
}

// runUpdate performs a self-update to the latest release.
func runUpdate() {
	fmt.Fprintf(os.Stderr, "Checking for updates...\n")

	result := updater.CheckVersion(embserver.Version)
	if !result.UpdateAvailable {
		fmt.Fprintf(os.Stderr, "Already at the latest version (v%s)\n", result.CurrentVersion)
		return
	}

	fmt.Fprintf(os.Stderr, "New version available: v%s -> v%s\nDownloading...\n",
		result.CurrentVersion, result.LatestVersion)

	if err := updater.SelfUpdate(embserver.Version); err != nil {
		fmt.Fprintf(os.Stderr, "Update failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "You can download manually from:\n  %s\n", result.ReleaseURL)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Updated to v%s. Restart ember to use the new version.\n", result.LatestVersion)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Ember v%s — continuity and review MCP server

Usage:
  ember serve      Start the MCP server on stdio
  ember update     Update to the latest version
  ember version    Print the version
  ember help       Show this help

Configuration (environment):
  EMBER_DATA_DIR        Data directory (default: ~/.ember)
  EMBER_AGENT_CMD       Reviewer agent command line (default: codex exec --json --full-auto)
  EMBER_AGENT_TIMEOUT   Per-invocation timeout (default: 2m)
  EMBER_MAX_ITERATIONS  Default review iteration cap (default: 3)
  EMBER_OLLAMA_HOST     Ollama host for embeddings (default: http://localhost:11434)
  EMBER_OLLAMA_MODEL    Embedding model (default: nomic-embed-text)
  EMBER_NO_EMBEDDINGS   Set to disable embeddings entirely
`, embserver.Version)
}
