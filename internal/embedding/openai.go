package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/reportqa/internal/errs"
	"github.com/hyperjump/reportqa/internal/provider"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultModel and DefaultDimensions match the stored vector width.
const (
	DefaultModel      = "text-embedding-3-small"
	DefaultDimensions = 1536
	DefaultBatchSize  = 100
)

// OpenAIEmbedder embeds text with the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	batchSize  int
	timeout    time.Duration
	logger     *zap.Logger
}

// OpenAIOption configures an OpenAIEmbedder.
type OpenAIOption func(*OpenAIEmbedder)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) OpenAIOption {
	return func(e *OpenAIEmbedder) { e.logger = l }
}

// WithModel overrides the model and its output dimensions.
func WithModel(model string, dimensions int) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if model != "" {
			e.model = model
		}
		if dimensions > 0 {
			e.dimensions = dimensions
		}
	}
}

// WithBatchSize sets how many texts go into one request.
func WithBatchSize(n int) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(e *OpenAIEmbedder) { e.timeout = d }
}

// NewOpenAIEmbedder creates an embedder on client.
func NewOpenAIEmbedder(client *openai.Client, opts ...OpenAIOption) *OpenAIEmbedder {
	e := &OpenAIEmbedder{
		client:     client,
		model:      DefaultModel,
		dimensions: DefaultDimensions,
		batchSize:  DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Embed returns the embedding of one text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in request batches, preserving input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedRequest(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
		e.logger.Debug("embedded batch", zap.Int("from", start), zap.Int("to", end), zap.Int("total", len(texts)))
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedRequest(ctx context.Context, batch []string) ([][]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      batch,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, provider.Wrap(errs.KindEmbeddingProvider, "embedding.create", err)
	}
	if len(resp.Data) != len(batch) {
		return nil, errs.Provider(errs.KindEmbeddingProvider, "embedding.create",
			fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(batch)), false)
	}
	vecs := make([][]float32, len(batch))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(batch) || vecs[d.Index] != nil {
			return nil, errs.Provider(errs.KindEmbeddingProvider, "embedding.create",
				fmt.Errorf("unexpected embedding index %d", d.Index), false)
		}
		v := make([]float32, len(d.Embedding))
		copy(v, d.Embedding)
		vecs[d.Index] = v
	}
	return vecs, nil
}

// Dimensions returns the requested embedding width.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client has no resources to release.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
