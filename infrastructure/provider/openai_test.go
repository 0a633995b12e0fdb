package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeEmbeddingServer struct {
	dimensions int
	failFirst  int32
	status     int
	calls      atomic.Int32
}

func (f *fakeEmbeddingServer) handler(w http.ResponseWriter, r *http.Request) {
	call := f.calls.Add(1)
	if call <= atomic.LoadInt32(&f.failFirst) {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
		return
	}

	var req struct {
		Input      []string `json:"input"`
		Model      string   `json:"model"`
		Dimensions int      `json:"dimensions"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	type datum struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}
	data := make([]datum, len(req.Input))
	for i := range req.Input {
		vec := make([]float32, f.dimensions)
		vec[0] = float32(i + 1)
		data[i] = datum{Index: i, Embedding: vec}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
		"model":  req.Model,
		"usage":  map[string]int{"prompt_tokens": 7, "total_tokens": 7},
	})
}

func newTestEmbedder(t *testing.T, fake *fakeEmbeddingServer) *OpenAIEmbedder {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(server.Close)

	return NewOpenAIEmbedder(OpenAIConfig{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		Model:        "text-embedding-3-small",
		Dimensions:   fake.dimensions,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
	})
}

func TestEmbedReturnsVectorsInOrder(t *testing.T) {
	embedder := newTestEmbedder(t, &fakeEmbeddingServer{dimensions: 4})

	resp, err := embedder.Embed(context.Background(), NewEmbeddingRequest([]string{"one", "two"}))
	require.NoError(t, err)

	embeddings := resp.Embeddings()
	require.Len(t, embeddings, 2)
	require.Len(t, embeddings[0], 4)
	require.Equal(t, float64(1), embeddings[0][0])
	require.Equal(t, float64(2), embeddings[1][0])
	require.Equal(t, 7, resp.Usage().TotalTokens())
}

func TestEmbedEmptyInput(t *testing.T) {
	fake := &fakeEmbeddingServer{dimensions: 4}
	embedder := newTestEmbedder(t, fake)

	resp, err := embedder.Embed(context.Background(), NewEmbeddingRequest(nil))
	require.NoError(t, err)
	require.Empty(t, resp.Embeddings())
	require.Zero(t, fake.calls.Load())
}

func TestEmbedRetriesTransientFailures(t *testing.T) {
	fake := &fakeEmbeddingServer{dimensions: 4, failFirst: 2, status: http.StatusInternalServerError}
	embedder := newTestEmbedder(t, fake)

	resp, err := embedder.Embed(context.Background(), NewEmbeddingRequest([]string{"one"}))
	require.NoError(t, err)
	require.Len(t, resp.Embeddings(), 1)
	require.EqualValues(t, 3, fake.calls.Load())
}

func TestEmbedAttemptsAreTotalNotExtra(t *testing.T) {
	// Three total attempts means a server failing three times exhausts
	// the budget; no fourth call is made.
	fake := &fakeEmbeddingServer{dimensions: 4, failFirst: 99, status: http.StatusInternalServerError}
	embedder := newTestEmbedder(t, fake)

	_, err := embedder.Embed(context.Background(), NewEmbeddingRequest([]string{"one"}))
	require.Error(t, err)
	require.EqualValues(t, 3, fake.calls.Load())
}

func TestEmbedPermanentFailureNotRetried(t *testing.T) {
	fake := &fakeEmbeddingServer{dimensions: 4, failFirst: 99, status: http.StatusUnauthorized}
	embedder := newTestEmbedder(t, fake)

	_, err := embedder.Embed(context.Background(), NewEmbeddingRequest([]string{"one"}))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrPermanent)
	require.EqualValues(t, 1, fake.calls.Load())
}

func TestEmbedDimensionMismatch(t *testing.T) {
	fake := &fakeEmbeddingServer{dimensions: 8}
	server := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(server.Close)

	embedder := NewOpenAIEmbedder(OpenAIConfig{
		APIKey:      "test-key",
		BaseURL:     server.URL,
		Dimensions:  4, // server replies with 8
		MaxAttempts: 1,
	})

	_, err := embedder.Embed(context.Background(), NewEmbeddingRequest([]string{"one"}))
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestEmbedContextCancelled(t *testing.T) {
	embedder := newTestEmbedder(t, &fakeEmbeddingServer{dimensions: 4})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := embedder.Embed(ctx, NewEmbeddingRequest([]string{"one"}))
	require.ErrorIs(t, err, context.Canceled)
}
