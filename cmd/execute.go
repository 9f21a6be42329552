// Package cmd contains the command-line entry points of the service.
//
// Following the pattern used by kubectl, hugo, and other standard Go
// CLI tools, all application logic is contained in the cmd package,
// leaving main.go as a minimal entry point.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aldenhart/ragchat/internal/log"
)

// Execute is the main entry point for the ragchat CLI.
// It handles flag parsing and command routing.
func Execute() error {
	// Handle special flags before full initialization so --version and
	// --help work even when config is invalid.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			return printVersionInfo()
		case "help", "--help", "-h":
			printHelp()
			return nil
		case "serve":
			logger := initLogger()
			slog.SetDefault(logger)
			if err := checkRequiredEnv(); err != nil {
				return err
			}
			return runServe(logger)
		case "migrate":
			logger := initLogger()
			slog.SetDefault(logger)
			return runMigrate(logger)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
			printHelp()
			return fmt.Errorf("unknown command %q", os.Args[1])
		}
	}

	printHelp()
	return nil
}

// initLogger initializes the structured logger.
//
// Log level is controlled by the DEBUG environment variable:
//   - DEBUG set (any value): debug level logging
//   - DEBUG not set: info level logging
func initLogger() *slog.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
		cfg.AddSource = true
	}
	return log.New(cfg)
}

// checkRequiredEnv verifies that all required environment variables are set.
//
// Currently checks:
//   - GEMINI_API_KEY: Required for AI model access
func checkRequiredEnv() error {
	if os.Getenv("GEMINI_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "ragchat requires a Gemini API key to function.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "To set your API key:")
		fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Get your API key at: https://ai.google.dev/")

		return fmt.Errorf("GEMINI_API_KEY not set")
	}
	return nil
}

// printHelp displays the help message.
func printHelp() {
	fmt.Println("ragchat - retrieval-augmented chat service")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ragchat serve [addr]   Start the HTTP API server (default 127.0.0.1:3400)")
	fmt.Println("  ragchat migrate        Run database migrations and exit")
	fmt.Println("  ragchat version        Show version information")
	fmt.Println("  ragchat help           Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY         Required: Gemini API key")
	fmt.Println("  DATABASE_URL           Optional: PostgreSQL connection URL")
	fmt.Println("  RAGCHAT_VECTOR_BACKEND Optional: pgvector (default) or qdrant")
	fmt.Println("  DEBUG                  Optional: Enable debug logging")
}
