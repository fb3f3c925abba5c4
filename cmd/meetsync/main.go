package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alnah/go-meetsync/internal/apierr"
	"github.com/alnah/go-meetsync/internal/audio"
	"github.com/alnah/go-meetsync/internal/cache"
	"github.com/alnah/go-meetsync/internal/cli"
	"github.com/alnah/go-meetsync/internal/config"
	"github.com/alnah/go-meetsync/internal/ffmpeg"
	"github.com/alnah/go-meetsync/internal/invariant"
	"github.com/alnah/go-meetsync/internal/lang"
	"github.com/alnah/go-meetsync/internal/output"
	"github.com/alnah/go-meetsync/internal/transcribe"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	ExitOK             = 0
	ExitGeneral        = 1
	ExitUsage          = 2
	ExitSetup          = 3
	ExitConfig         = 4
	ExitTranscription  = 5
	ExitMalformedMedia = 6
	ExitInvariant      = 7
	ExitInterrupt      = 130
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	// Context with signal cancellation.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Create the CLI environment with production defaults.
	env := cli.DefaultEnv()

	rootCmd := &cobra.Command{
		Use:     "meetsync",
		Short:   "Align meeting transcripts with the slides and screens shown",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(cli.ProcessCmd(env))
	rootCmd.AddCommand(cli.FramesCmd(env))
	rootCmd.AddCommand(cli.ChunkCmd(env))
	rootCmd.AddCommand(cli.WatchCmd(env))
	rootCmd.AddCommand(cli.ConfigCmd(env))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps errors to exit codes. Checks run from most to least specific.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	// Check for context cancellation (interrupt).
	if errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	// Usage errors: Cobra flag/arg parsing errors.
	// Cobra doesn't expose typed errors, so we check for known error message patterns.
	if isCobraUsageError(err) {
		return ExitUsage
	}

	if errors.Is(err, invariant.ErrViolation) {
		return ExitInvariant
	}

	if errors.Is(err, ffmpeg.ErrNotFound) || errors.Is(err, transcribe.ErrAPIKeyMissing) ||
		errors.Is(err, cache.ErrInvalidURL) {
		return ExitSetup
	}

	if errors.Is(err, config.ErrInvalid) || errors.Is(err, lang.ErrInvalid) ||
		errors.Is(err, cli.ErrFileNotFound) || errors.Is(err, cli.ErrUnsupportedFormat) ||
		errors.Is(err, cli.ErrNotADirectory) || errors.Is(err, cli.ErrInvalidLogLevel) ||
		errors.Is(err, cli.ErrInvalidOutputDir) || errors.Is(err, output.ErrOutputExists) {
		return ExitConfig
	}

	if errors.Is(err, apierr.ErrRateLimit) || errors.Is(err, apierr.ErrQuotaExceeded) ||
		errors.Is(err, apierr.ErrTimeout) || errors.Is(err, apierr.ErrAuthFailed) ||
		errors.Is(err, apierr.ErrBadRequest) || errors.Is(err, apierr.ErrServerError) ||
		errors.Is(err, apierr.ErrSizeExceeded) || errors.Is(err, apierr.ErrRetriesExhausted) {
		return ExitTranscription
	}

	if errors.Is(err, ffmpeg.ErrMalformedMedia) || errors.Is(err, audio.ErrChunkingFailed) ||
		errors.Is(err, audio.ErrChunkTooLarge) {
		return ExitMalformedMedia
	}

	return ExitGeneral
}

// cobraUsageErrorPatterns contains error message substrings that indicate Cobra usage errors.
// These patterns are stable across Cobra versions (tested with v1.8+).
var cobraUsageErrorPatterns = []string{
	"required flag",             // Missing required flag
	"unknown flag",              // Flag doesn't exist
	"unknown shorthand",         // Short flag doesn't exist
	"unknown command",           // Subcommand doesn't exist
	"flag needs an argument",    // Flag provided without value
	"invalid argument",          // Invalid flag value type
	"if any flags in the group", // Mutually exclusive flag violation
	"accepts ",                  // Wrong number of arguments (e.g., "accepts 1 arg(s)")
	"requires at least",         // Too few arguments
	"requires at most",          // Too many arguments
}

// isCobraUsageError checks if an error is a Cobra usage/parsing error.
func isCobraUsageError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
