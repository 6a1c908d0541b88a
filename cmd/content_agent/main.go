// Package main provides the entry point for the content generation agent.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "content_agent",
	Short: "Multi-agent SEO article generator",
	Long:  "content_agent turns target keywords into publish-ready articles through a research, writing, SEO, and QA agent pipeline, exposed as a REST API, a queue worker, and a one-shot CLI.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
