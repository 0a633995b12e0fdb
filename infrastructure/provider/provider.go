// Package provider contains clients for external AI providers.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimensionMismatch indicates the provider returned vectors of a
// different dimension than configured. This is a deployment
// misconfiguration and is fatal for the embedding worker.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ErrPermanent marks provider failures that must not be retried:
// authentication, quota exhaustion, malformed requests.
var ErrPermanent = errors.New("permanent provider failure")

// Embedder generates embedding vectors for texts.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error)
	// Dimensions returns the configured vector dimension.
	Dimensions() int
}

// EmbeddingRequest holds texts to embed.
type EmbeddingRequest struct {
	texts []string
}

// NewEmbeddingRequest creates an EmbeddingRequest.
func NewEmbeddingRequest(texts []string) EmbeddingRequest {
	cp := make([]string, len(texts))
	copy(cp, texts)
	return EmbeddingRequest{texts: cp}
}

// Texts returns the texts to embed.
func (r EmbeddingRequest) Texts() []string {
	return r.texts
}

// Usage holds token accounting reported by the provider.
type Usage struct {
	promptTokens int
	totalTokens  int
}

// NewUsage creates a Usage.
func NewUsage(prompt, total int) Usage {
	return Usage{promptTokens: prompt, totalTokens: total}
}

// PromptTokens returns the prompt token count.
func (u Usage) PromptTokens() int { return u.promptTokens }

// TotalTokens returns the total token count.
func (u Usage) TotalTokens() int { return u.totalTokens }

// EmbeddingResponse holds vectors returned by the provider.
type EmbeddingResponse struct {
	embeddings [][]float64
	usage      Usage
}

// NewEmbeddingResponse creates an EmbeddingResponse.
func NewEmbeddingResponse(embeddings [][]float64, usage Usage) EmbeddingResponse {
	return EmbeddingResponse{embeddings: embeddings, usage: usage}
}

// Embeddings returns one vector per input text, in input order.
func (r EmbeddingResponse) Embeddings() [][]float64 {
	return r.embeddings
}

// Usage returns the provider-reported token usage.
func (r EmbeddingResponse) Usage() Usage {
	return r.usage
}

// ProviderError wraps a provider failure with its HTTP status.
type ProviderError struct {
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

// NewProviderError creates a ProviderError.
func NewProviderError(operation string, statusCode int, message string, err error) *ProviderError {
	return &ProviderError{
		Operation:  operation,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s failed (status %d): %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}
