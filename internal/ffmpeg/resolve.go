package ffmpeg

import (
	"context"
	"fmt"
	"runtime"
)

// Tool describes an external binary and the environment variable that overrides it.
type Tool struct {
	Name   string // Binary name looked up in PATH.
	EnvVar string // Explicit path override, e.g. FFMPEG_PATH.
	Hint   string // Install instructions shown when the tool is missing.
}

// FFmpeg is the media toolchain used for probing, chunk extraction and frame decoding.
var FFmpeg = Tool{Name: "ffmpeg", EnvVar: "FFMPEG_PATH"}

// Tesseract is the OCR engine used for slide text.
var Tesseract = Tool{
	Name:   "tesseract",
	EnvVar: "TESSERACT_PATH",
	Hint:   "Install tesseract (apt install tesseract-ocr, brew install tesseract) or set TESSERACT_PATH.",
}

// Resolver finds external binaries.
type Resolver struct {
	env  envProvider
	goos string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithEnvProvider sets the environment provider implementation.
func WithEnvProvider(e envProvider) ResolverOption {
	return func(r *Resolver) { r.env = e }
}

// WithPlatform sets the target OS (for testing install hints).
func WithPlatform(goos string) ResolverOption {
	return func(r *Resolver) { r.goos = goos }
}

// NewResolver creates a Resolver with the given options.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		env:  osEnvProvider{},
		goos: runtime.GOOS,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds ffmpeg. See Lookup.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	return r.Lookup(ctx, FFmpeg)
}

// Lookup finds a tool using the following precedence:
//  1. the tool's environment variable (error if set but invalid)
//  2. system PATH
func (r *Resolver) Lookup(ctx context.Context, tool Tool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if envPath := r.env.Getenv(tool.EnvVar); envPath != "" {
		if _, err := r.env.Stat(envPath); err != nil {
			return "", fmt.Errorf("%w: %s is set to %q but binary not found",
				ErrNotFound, tool.EnvVar, envPath)
		}
		return envPath, nil
	}

	if path, err := r.env.LookPath(tool.Name); err == nil {
		return path, nil
	}

	hint := tool.Hint
	if hint == "" {
		hint = r.manualInstallInstructions()
	}
	return "", fmt.Errorf("%w: %s\n\n%s", ErrNotFound, tool.Name, hint)
}

// manualInstallInstructions returns platform-specific ffmpeg instructions.
func (r *Resolver) manualInstallInstructions() string {
	switch r.goos {
	case "darwin":
		return `To install FFmpeg:
  brew install ffmpeg

Or set FFMPEG_PATH environment variable to your ffmpeg binary.`
	case "linux":
		return `To install FFmpeg:
  Ubuntu/Debian: sudo apt install ffmpeg
  Fedora:        sudo dnf install ffmpeg
  Arch:          sudo pacman -S ffmpeg

Or set FFMPEG_PATH environment variable to your ffmpeg binary.`
	case "windows":
		return `To install FFmpeg:
  winget install ffmpeg

Or set FFMPEG_PATH environment variable to your ffmpeg.exe.`
	default:
		return `Download FFmpeg from https://ffmpeg.org/download.html
Or set FFMPEG_PATH environment variable to your ffmpeg binary.`
	}
}
