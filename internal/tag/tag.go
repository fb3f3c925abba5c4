// Package tag labels frames with semantic topic tags through a chat model.
package tag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/alnah/go-meetsync/internal/apierr"
	"github.com/alnah/go-meetsync/internal/frames"
)

// Defaults for the OpenAI tagger.
const (
	DefaultModel     = openai.GPT4oMini
	DefaultBatchSize = 10

	// maxTextRunes caps the OCR text sent per frame.
	maxTextRunes = 500
)

// ErrInvalidResponse indicates the model reply could not be parsed.
var ErrInvalidResponse = errors.New("invalid tagging response")

// Tagger assigns tags to frames.
type Tagger interface {
	// Tag returns one tag list per frame, indexed like fs.
	Tag(ctx context.Context, fs []frames.Frame) ([][]string, error)
}

// chatCompleter is the subset of *openai.Client used here.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var (
	_ Tagger        = (*OpenAITagger)(nil)
	_ chatCompleter = (*openai.Client)(nil)
)

// OpenAITagger tags frames in batches with a JSON-mode chat completion.
type OpenAITagger struct {
	client chatCompleter
	model  string
	batch  int
	retry  apierr.RetryPolicy
	log    logrus.FieldLogger
}

// Option configures an OpenAITagger.
type Option func(*OpenAITagger)

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(t *OpenAITagger) {
		if model != "" {
			t.model = model
		}
	}
}

// WithBatchSize sets how many frames share one request.
func WithBatchSize(n int) Option {
	return func(t *OpenAITagger) {
		if n > 0 {
			t.batch = n
		}
	}
}

// WithRetryPolicy sets the retry policy for transient failures.
func WithRetryPolicy(p apierr.RetryPolicy) Option {
	return func(t *OpenAITagger) { t.retry = p }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(t *OpenAITagger) {
		if l != nil {
			t.log = l
		}
	}
}

// NewOpenAITagger creates a tagger over client.
func NewOpenAITagger(client *openai.Client, opts ...Option) *OpenAITagger {
	return newTagger(client, opts...)
}

func newTagger(client chatCompleter, opts ...Option) *OpenAITagger {
	t := &OpenAITagger{
		client: client,
		model:  DefaultModel,
		batch:  DefaultBatchSize,
		retry: apierr.RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			Jitter:      0.2,
		},
		log: discardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tag sends frames in batches. Frames the model skips get no tags.
func (t *OpenAITagger) Tag(ctx context.Context, fs []frames.Frame) ([][]string, error) {
	out := make([][]string, len(fs))
	total := (len(fs) + t.batch - 1) / t.batch

	for start := 0; start < len(fs); start += t.batch {
		end := min(start+t.batch, len(fs))
		batch := fs[start:end]
		t.log.WithFields(logrus.Fields{
			"batch": start/t.batch + 1,
			"of":    total,
		}).Debug("tagging frames")

		tags, err := t.tagBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", start/t.batch+1, total, err)
		}
		copy(out[start:end], tags)
	}
	return out, nil
}

func (t *OpenAITagger) tagBatch(ctx context.Context, batch []frames.Frame) ([][]string, error) {
	req := openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(batch)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	content, err := apierr.Retry(ctx, t.retry, func() (string, error) {
		resp, err := t.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", classifyError(err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("%w: no choices", ErrInvalidResponse)
		}
		return resp.Choices[0].Message.Content, nil
	}, apierr.IsTransient)
	if err != nil {
		return nil, err
	}
	return parseResponse(content, batch)
}

const systemPrompt = "You label presentation slides with topic tags. Reply with JSON only."

// buildPrompt lists each frame by its ID with truncated OCR text.
func buildPrompt(batch []frames.Frame) string {
	var b strings.Builder
	b.WriteString("Analyze these presentation slides and generate semantic tags for each.\n\n")
	for _, f := range batch {
		fmt.Fprintf(&b, "FRAME %s:\n%s\n\n", f.ID, truncateRunes(f.Text, maxTextRunes))
	}
	b.WriteString(`For EACH frame, provide 3-6 lowercase topic tags (concepts, features or topics such as "public apis", "security", "pricing").

Respond in JSON:
{"frames": [{"frame": "001", "tags": ["tag1", "tag2", "tag3"]}]}`)
	return b.String()
}

type tagResponse struct {
	Frames []struct {
		Frame string   `json:"frame"`
		Tags  []string `json:"tags"`
	} `json:"frames"`
}

// parseResponse maps tags back by frame ID and pads missing entries.
func parseResponse(content string, batch []frames.Frame) ([][]string, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object", ErrInvalidResponse)
	}
	var resp tagResponse
	if err := json.Unmarshal([]byte(content[start:end+1]), &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	byID := make(map[string][]string, len(resp.Frames))
	for _, f := range resp.Frames {
		byID[strings.TrimSpace(f.Frame)] = normalizeTags(f.Tags)
	}

	out := make([][]string, len(batch))
	for i, f := range batch {
		out[i] = byID[f.ID.String()]
	}
	return out, nil
}

// normalizeTags lowercases, trims and drops empty or repeated tags.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// classifyError maps OpenAI API errors to apierr sentinels.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if sentinel := apierr.ClassifyStatus(apiErr.HTTPStatusCode, apiErr.Message); sentinel != nil {
			return fmt.Errorf("%s: %w", apiErr.Message, sentinel)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
	}
	return err
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
