package synth

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/hyperjump/reportqa/internal/errs"
	"github.com/hyperjump/reportqa/internal/models"
	"github.com/hyperjump/reportqa/internal/provider"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.2
)

// Completer produces a chat completion for a system and user message.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OpenAICompleter calls the chat completions endpoint.
type OpenAICompleter struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

// CompleterOption configures an OpenAICompleter.
type CompleterOption func(*OpenAICompleter)

// WithModel overrides the chat model and temperature. A negative temperature keeps the default.
func WithModel(model string, temperature float32) CompleterOption {
	return func(c *OpenAICompleter) {
		if model != "" {
			c.model = model
		}
		if temperature >= 0 {
			c.temperature = temperature
		}
	}
}

// WithTimeout bounds each completion request.
func WithTimeout(d time.Duration) CompleterOption {
	return func(c *OpenAICompleter) { c.timeout = d }
}

// NewOpenAICompleter creates a completer on client.
func NewOpenAICompleter(client *openai.Client, opts ...CompleterOption) *OpenAICompleter {
	c := &OpenAICompleter{client: client, model: DefaultModel, temperature: DefaultTemperature}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete returns the first choice's content, or "" when there is none.
func (c *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	temperature := c.temperature
	if temperature == 0 {
		// The client omits a zero temperature, which the API reads as its default of 1.
		temperature = math.SmallestNonzeroFloat32
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", provider.Wrap(errs.KindCompletionProvider, "synth.complete", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Synthesizer answers a question from ranked excerpts.
type Synthesizer struct {
	completer Completer
	logger    *zap.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets a logger for debug output. Prompt text is never logged.
func WithLogger(l *zap.Logger) Option {
	return func(s *Synthesizer) { s.logger = l }
}

// NewSynthesizer creates a Synthesizer on completer.
func NewSynthesizer(completer Completer, opts ...Option) *Synthesizer {
	s := &Synthesizer{completer: completer}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Answer asks the model the question over the given excerpts.
func (s *Synthesizer) Answer(ctx context.Context, reportName, question string, rc models.RetrievalContext) (string, error) {
	user := UserPrompt(reportName, BuildContext(rc), question)
	start := time.Now()
	out, err := s.completer.Complete(ctx, SystemPrompt, user)
	if err != nil {
		s.logger.Warn("completion failed", zap.Error(err), zap.Bool("retryable", errs.IsRetryable(err)))
		return "", err
	}
	s.logger.Debug("completion done", zap.Int("excerpts", len(rc)), zap.Duration("took", time.Since(start)))
	if strings.TrimSpace(out) == "" {
		return NoAnswer, nil
	}
	return out, nil
}
