// Package transcribe sends audio segments to an OpenAI-compatible
// transcription endpoint and returns timed speech units.
package transcribe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/alnah/go-meetsync/internal/apierr"
	"github.com/alnah/go-meetsync/internal/audio"
	"github.com/alnah/go-meetsync/internal/cache"
	"github.com/alnah/go-meetsync/internal/format"
	"github.com/alnah/go-meetsync/internal/speech"
)

// DefaultModel returns segment timestamps with verbose_json.
const DefaultModel = openai.Whisper1

// MaxRecommendedParallel is the recommended upper limit for concurrent API requests.
// Higher values may trigger rate limiting.
const MaxRecommendedParallel = 10

// DefaultRetryPolicy is applied when no policy is configured.
var DefaultRetryPolicy = apierr.RetryPolicy{
	MaxAttempts: 5,
	BaseDelay:   1 * time.Second,
	MaxDelay:    30 * time.Second,
	Jitter:      0.2,
}

// Options configures a single transcription request.
type Options struct {
	// Prompt provides context to improve transcription accuracy.
	// Useful for domain-specific vocabulary, acronyms, or expected content.
	Prompt string

	// Language is an ISO 639-1 code. Empty means auto-detect.
	Language string
}

// Transcriber turns one audio file into speech units.
type Transcriber interface {
	// Transcribe returns units in file-local time, ordered by start.
	Transcribe(ctx context.Context, audioPath string, opts Options) ([]speech.Unit, error)
}

// audioTranscriber is an internal interface for OpenAI audio transcription.
// *openai.Client implements this implicitly.
// This allows injecting mocks in tests.
type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Transcriber      = (*OpenAITranscriber)(nil)
	_ audioTranscriber = (*openai.Client)(nil)
)

// OpenAITranscriber transcribes audio using an OpenAI-compatible API.
// Transient failures are retried per its RetryPolicy. Results are memoized
// in the configured cache by model, language and file content.
type OpenAITranscriber struct {
	client   audioTranscriber
	model    string
	retry    apierr.RetryPolicy
	limiter  *rate.Limiter // nil means unlimited
	cache    cache.Cache
	cacheTTL time.Duration
	log      logrus.FieldLogger
}

// TranscriberOption configures an OpenAITranscriber.
type TranscriberOption func(*OpenAITranscriber)

// WithModel sets the transcription model. The endpoint must support verbose_json.
func WithModel(model string) TranscriberOption {
	return func(t *OpenAITranscriber) {
		if model != "" {
			t.model = model
		}
	}
}

// WithRetryPolicy sets the retry policy for transient failures.
func WithRetryPolicy(p apierr.RetryPolicy) TranscriberOption {
	return func(t *OpenAITranscriber) { t.retry = p }
}

// WithRequestsPerMinute caps the request rate. Zero or negative disables the cap.
func WithRequestsPerMinute(n int) TranscriberOption {
	return func(t *OpenAITranscriber) {
		if n <= 0 {
			t.limiter = nil
			return
		}
		t.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

// WithCache memoizes results. A zero ttl keeps entries until evicted.
func WithCache(c cache.Cache, ttl time.Duration) TranscriberOption {
	return func(t *OpenAITranscriber) {
		if c != nil {
			t.cache = c
			t.cacheTTL = ttl
		}
	}
}

// WithLogger sets the logger for retries and cache failures.
func WithLogger(l logrus.FieldLogger) TranscriberOption {
	return func(t *OpenAITranscriber) {
		if l != nil {
			t.log = l
		}
	}
}

// NewClient builds an OpenAI client. A non-empty baseURL targets another
// OpenAI-compatible endpoint (e.g. https://api.groq.com/openai/v1).
func NewClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return openai.NewClientWithConfig(cfg)
}

// NewOpenAITranscriber creates a new OpenAITranscriber.
// The client is injected to enable testing with mocks.
func NewOpenAITranscriber(client *openai.Client, opts ...TranscriberOption) *OpenAITranscriber {
	return newTranscriber(client, opts...)
}

func newTranscriber(client audioTranscriber, opts ...TranscriberOption) *OpenAITranscriber {
	t := &OpenAITranscriber{
		client: client,
		model:  DefaultModel,
		retry:  DefaultRetryPolicy,
		cache:  cache.Nop{},
		log:    discardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe transcribes one audio file.
// Transient errors are retried; when the budget runs out the error wraps
// apierr.ErrRetriesExhausted. Fatal API errors are returned unwrapped.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string, opts Options) ([]speech.Unit, error) {
	log := t.log.WithField("file", filepath.Base(audioPath))

	key := t.cacheKey(audioPath, opts)
	if key != "" {
		var cached []speech.Unit
		hit, err := t.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			log.WithError(err).Warn("transcription cache read failed")
		} else if hit {
			log.Debug("transcription cache hit")
			return cached, nil
		}
	}

	req := openai.AudioRequest{
		Model:    t.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Prompt:   opts.Prompt,
		Language: opts.Language,
	}

	policy := t.retry
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, err error, delay time.Duration) {
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay,
			}).WithError(err).Warn("retrying transcription")
		}
	}

	units, err := apierr.Retry(ctx, policy, func() ([]speech.Unit, error) {
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		resp, err := t.client.CreateTranscription(ctx, req)
		if err != nil {
			return nil, classifyError(err)
		}
		return unitsFromResponse(resp), nil
	}, apierr.IsTransient)
	if err != nil {
		return nil, err
	}

	if key != "" {
		if err := t.cache.SetJSON(ctx, key, units, t.cacheTTL); err != nil {
			log.WithError(err).Warn("transcription cache write failed")
		}
	}
	return units, nil
}

// cacheKey returns "" when the cache is disabled or the file cannot be hashed.
func (t *OpenAITranscriber) cacheKey(audioPath string, opts Options) string {
	if _, ok := t.cache.(cache.Nop); ok {
		return ""
	}
	sum, err := fileDigest(audioPath)
	if err != nil {
		t.log.WithError(err).Debug("skipping transcription cache")
		return ""
	}
	lang := opts.Language
	if lang == "" {
		lang = "auto"
	}
	return cache.Key("transcript", t.model, lang, sum)
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the chunker
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// unitsFromResponse converts verbose_json segments to speech units.
// A response without segments yields one unit spanning the reported duration.
func unitsFromResponse(resp openai.AudioResponse) []speech.Unit {
	if len(resp.Segments) == 0 {
		text := strings.TrimSpace(resp.Text)
		if text == "" {
			return nil
		}
		return []speech.Unit{{Start: 0, End: format.FromSeconds(resp.Duration), Text: text}}
	}

	units := make([]speech.Unit, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		units = append(units, speech.Unit{
			Start: format.FromSeconds(s.Start),
			End:   format.FromSeconds(s.End),
			Text:  text,
		})
	}
	return units
}

// classifyError maps OpenAI API errors to apierr sentinels.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if sentinel := apierr.ClassifyStatus(apiErr.HTTPStatusCode, apiErr.Message); sentinel != nil {
			return fmt.Errorf("%s: %w", apiErr.Message, sentinel)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if sentinel := apierr.ClassifyStatus(reqErr.HTTPStatusCode, ""); sentinel != nil {
			return fmt.Errorf("HTTP %d: %w", reqErr.HTTPStatusCode, sentinel)
		}
	}

	// Check for context timeout/deadline exceeded.
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
	}

	return err
}

// TranscribeAll transcribes segments in parallel.
// Results are indexed by segment position regardless of completion order.
// A segment that exhausts its retries is recorded in its result's Err and
// the run continues; any other error aborts the whole operation.
// maxParallel limits the number of concurrent API requests (1-MaxRecommendedParallel recommended).
func TranscribeAll(
	ctx context.Context,
	segments []audio.Segment,
	t Transcriber,
	opts Options,
	maxParallel int,
) ([]speech.SegmentResult, error) {
	if len(segments) == 0 {
		return nil, nil
	}

	if maxParallel < 1 {
		maxParallel = 1
	}

	results := make([]speech.SegmentResult, len(segments))
	// Semaphore channel for concurrency control.
	sem := make(chan struct{}, maxParallel)

	g, ctx := errgroup.WithContext(ctx)

	for i, seg := range segments {
		results[i].Segment = seg
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()

			units, err := t.Transcribe(ctx, seg.Path, opts)
			if errors.Is(err, apierr.ErrRetriesExhausted) {
				results[i].Err = err
				return nil
			}
			if err != nil {
				return fmt.Errorf("segment %d (%s): %w", seg.Index, filepath.Base(seg.Path), err)
			}
			results[i].Units = units
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
