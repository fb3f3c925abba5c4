// Package ocr extracts slide text from frame snapshots.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-meetsync/internal/quality"
)

// ErrOCRFailed indicates the OCR engine could not read an image.
var ErrOCRFailed = errors.New("ocr failed")

// DefaultLanguage is the tesseract language pack used when none is set.
const DefaultLanguage = "eng"

// Reader extracts text from one image.
type Reader interface {
	Read(ctx context.Context, imagePath string) (string, error)
}

// commandRunner executes external commands, keeping stdout and stderr apart.
type commandRunner interface {
	Output(ctx context.Context, name string, args []string) (stdout, stderr []byte, err error)
}

type osCommandRunner struct{}

func (osCommandRunner) Output(ctx context.Context, name string, args []string) ([]byte, []byte, error) {
	// #nosec G204 -- name and args are built by this package, not user input
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

var _ Reader = (*Tesseract)(nil)

// Tesseract runs the tesseract CLI.
type Tesseract struct {
	path string
	lang string
	cmd  commandRunner
}

// TesseractOption configures a Tesseract reader.
type TesseractOption func(*Tesseract)

// WithLanguage sets the language pack, e.g. "eng+fra".
func WithLanguage(lang string) TesseractOption {
	return func(t *Tesseract) {
		if lang != "" {
			t.lang = lang
		}
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func WithCommandRunner(r commandRunner) TesseractOption {
	return func(t *Tesseract) { t.cmd = r }
}

// NewTesseract creates a reader using the binary at path.
func NewTesseract(path string, opts ...TesseractOption) *Tesseract {
	t := &Tesseract{path: path, lang: DefaultLanguage, cmd: osCommandRunner{}}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Read returns the cleaned text of imagePath.
func (t *Tesseract) Read(ctx context.Context, imagePath string) (string, error) {
	stdout, stderr, err := t.cmd.Output(ctx, t.path, []string{imagePath, "stdout", "-l", t.lang})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %s: %s", ErrOCRFailed, imagePath, strings.TrimSpace(string(stderr)))
	}
	return cleanText(string(stdout)), nil
}

// cleanText trims every line and drops blank ones.
func cleanText(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\f", "\n"), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

// ReadAll reads images in parallel. Texts are indexed like images.
// Unreadable images get empty text and are summarized in one warning;
// only cancellation is returned as an error.
func ReadAll(ctx context.Context, r Reader, images []string, parallel int) ([]string, []quality.Warning, error) {
	texts := make([]string, len(images))

	var (
		mu       sync.Mutex
		failed   int
		firstErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallel, 1))

	for i, img := range images {
		g.Go(func() error {
			text, err := r.Read(gctx, img)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				mu.Lock()
				failed++
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return nil
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if failed == 0 {
		return texts, nil, nil
	}
	return texts, []quality.Warning{{
		Kind:    quality.KindOCRSkipped,
		Stage:   "ocr",
		Message: fmt.Sprintf("%d of %d frames unreadable: %v", failed, len(images), firstErr),
	}}, nil
}
