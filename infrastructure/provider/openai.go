package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// errEmbeddingCountMismatch indicates the API returned fewer embedding
// vectors than requested. Retryable: transient upstream issues can produce
// partial responses behind a 200 status.
var errEmbeddingCountMismatch = errors.New("embedding response count mismatch")

// OpenAIEmbedder generates embeddings via an OpenAI-compatible endpoint.
type OpenAIEmbedder struct {
	client        *openai.Client
	model         string
	dimensions    int
	maxAttempts   int
	initialDelay  time.Duration
	backoffFactor float64
}

// OpenAIConfig holds configuration for the OpenAI embedder. MaxAttempts
// counts the first call, so 3 means one call plus two retries.
type OpenAIConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	Dimensions    int
	Timeout       time.Duration
	MaxAttempts   int
	InitialDelay  time.Duration
	BackoffFactor float64
}

// NewOpenAIEmbedder creates an embedder from configuration.
func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	clientConfig := openai.DefaultConfig(cfg.APIKey)

	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = 1536
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 3
	}

	initialDelay := cfg.InitialDelay
	if initialDelay == 0 {
		initialDelay = 300 * time.Millisecond
	}

	backoffFactor := cfg.BackoffFactor
	if backoffFactor == 0 {
		backoffFactor = 2.0
	}

	return &OpenAIEmbedder{
		client:        openai.NewClientWithConfig(clientConfig),
		model:         model,
		dimensions:    dimensions,
		maxAttempts:   maxAttempts,
		initialDelay:  initialDelay,
		backoffFactor: backoffFactor,
	}
}

// Dimensions returns the configured vector dimension.
func (p *OpenAIEmbedder) Dimensions() int {
	return p.dimensions
}

// Embed generates embeddings for the given texts in a single API call.
// Every returned vector is verified against the configured dimension;
// a mismatch surfaces as ErrDimensionMismatch, which is fatal.
func (p *OpenAIEmbedder) Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error) {
	texts := req.Texts()
	if len(texts) == 0 {
		return NewEmbeddingResponse([][]float64{}, NewUsage(0, 0)), nil
	}

	openaiReq := openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(p.model),
		Input:      texts,
		Dimensions: p.dimensions,
	}

	var resp openai.EmbeddingResponse
	var err error

	err = p.withRetry(ctx, func() error {
		resp, err = p.client.CreateEmbeddings(ctx, openaiReq)
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("%w: got %d vectors for %d texts", errEmbeddingCountMismatch, len(resp.Data), len(texts))
		}
		return nil
	})

	if err != nil {
		return EmbeddingResponse{}, p.wrapError(err)
	}

	embeddings := make([][]float64, len(resp.Data))
	for i, data := range resp.Data {
		if len(data.Embedding) != p.dimensions {
			return EmbeddingResponse{}, fmt.Errorf("%w: got %d, configured %d",
				ErrDimensionMismatch, len(data.Embedding), p.dimensions)
		}
		embeddings[i] = make([]float64, len(data.Embedding))
		for j, v := range data.Embedding {
			embeddings[i][j] = float64(v)
		}
	}

	usage := NewUsage(resp.Usage.PromptTokens, resp.Usage.TotalTokens)
	return NewEmbeddingResponse(embeddings, usage), nil
}

// withRetry makes up to maxAttempts total calls (the first included),
// with exponential backoff between transient failures.
func (p *OpenAIEmbedder) withRetry(ctx context.Context, fn func() error) error {
	delay := p.initialDelay
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt < p.maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * p.backoffFactor)
			}
		}
	}

	return fmt.Errorf("attempts exhausted: %w", lastErr)
}

// isRetryable determines if an error should be retried.
func isRetryable(err error) bool {
	if errors.Is(err, errEmbeddingCountMismatch) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		// Network-level errors are retryable.
		return true
	}

	return false
}

// wrapError converts an OpenAI error into a ProviderError, marking
// non-retryable API failures as permanent.
func (p *OpenAIEmbedder) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		wrapped := error(NewProviderError("embedding", apiErr.HTTPStatusCode, apiErr.Message, err))
		if !isRetryable(err) {
			wrapped = fmt.Errorf("%w: %w", ErrPermanent, wrapped)
		}
		return wrapped
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewProviderError("embedding", reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	return NewProviderError("embedding", 0, err.Error(), err)
}

var _ Embedder = (*OpenAIEmbedder)(nil)
