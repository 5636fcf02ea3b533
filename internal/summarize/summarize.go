// Package summarize generates summaries, titles, and keywords for parsed
// file content.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	luminaerr "github.com/lumina-index/lumina/internal/errors"
	"github.com/lumina-index/lumina/internal/model"
	"github.com/lumina-index/lumina/internal/pipeline"
)

const (
	// DefaultModel balances cost and quality for short documents.
	DefaultModel = "gpt-4o-mini"

	DefaultTimeout = 60 * time.Second

	// maxInputChars truncates very large documents before prompting.
	maxInputChars = 24000

	maxKeywords = 10
)

const systemPrompt = `You summarize documents for a local file index.
Respond with a JSON object containing exactly these fields:
  "summary": 2-4 sentences describing what the document contains,
  "title": a short descriptive title (under 80 characters),
  "keywords": an array of up to 10 lowercase topic keywords.
Use the document's own language for the summary and title.`

// summaryPayload is the JSON shape the model is asked to return.
type summaryPayload struct {
	Summary  string   `json:"summary"`
	Title    string   `json:"title"`
	Keywords []string `json:"keywords"`
}

// OpenAISummarizer prompts a chat model for summary, title, and keywords.
type OpenAISummarizer struct {
	client  openai.Client
	model   string
	timeout time.Duration
	retry   luminaerr.RetryConfig
}

var _ pipeline.Summarizer = (*OpenAISummarizer)(nil)

type Option func(*OpenAISummarizer)

func WithModel(model string) Option {
	return func(s *OpenAISummarizer) { s.model = model }
}

func WithTimeout(timeout time.Duration) Option {
	return func(s *OpenAISummarizer) { s.timeout = timeout }
}

func NewOpenAISummarizer(apiKey string, opts ...Option) (*OpenAISummarizer, error) {
	if apiKey == "" {
		return nil, luminaerr.ValidationError("summarizer API key is empty")
	}

	s := &OpenAISummarizer{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   DefaultModel,
		timeout: DefaultTimeout,
		retry:   luminaerr.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Summarize fills Summary, Title, and Keywords on the record.
func (s *OpenAISummarizer) Summarize(ctx context.Context, rec *model.FileRecord) error {
	if strings.TrimSpace(rec.Content) == "" {
		return luminaerr.New(luminaerr.ErrCodeSummarizeFailed, "record has no content", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	content := rec.Content
	if len(content) > maxInputChars {
		content = content[:maxInputChars]
	}
	prompt := fmt.Sprintf("Filename: %s\n\nDocument:\n%s", rec.Filename, content)

	payload, err := luminaerr.RetryWithResult(ctx, s.retry, func() (summaryPayload, error) {
		return s.complete(ctx, prompt)
	})
	if err != nil {
		return luminaerr.New(luminaerr.ErrCodeSummarizeFailed, "summarization request failed", err)
	}

	rec.Summary = strings.TrimSpace(payload.Summary)
	rec.Title = strings.TrimSpace(payload.Title)
	rec.Keywords = cleanKeywords(payload.Keywords)
	return nil
}

func (s *OpenAISummarizer) complete(ctx context.Context, prompt string) (summaryPayload, error) {
	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.2),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	})
	if err != nil {
		return summaryPayload{}, err
	}
	if len(completion.Choices) == 0 {
		return summaryPayload{}, fmt.Errorf("no completion choices returned")
	}

	var payload summaryPayload
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &payload); err != nil {
		return summaryPayload{}, fmt.Errorf("decode model response: %w", err)
	}
	if payload.Summary == "" {
		return summaryPayload{}, fmt.Errorf("model response has empty summary")
	}
	return payload, nil
}

func cleanKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}
