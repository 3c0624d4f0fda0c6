// Package main provides the content_agent CLI: generate original content, check
// text for copied sentences, browse history and serve the REST API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "content_agent",
	Short: "Generate content that passes a web plagiarism check",
	Long: `content_agent asks a language model for content on a topic, checks every sentence
against web search results and regenerates until the plagiarism score is low enough.

Configuration can be loaded from a JSON file using --config. Environment variables
fill anything the file leaves out, and command-line flags override both.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	registerGlobalFlags(rootCmd)
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
