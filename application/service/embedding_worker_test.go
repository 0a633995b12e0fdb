package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gigradar/gigradar/application/service"
	"github.com/gigradar/gigradar/domain/event"
	"github.com/gigradar/gigradar/infrastructure/provider"
	"github.com/gigradar/gigradar/internal/config"
)

func workerConfig() config.EmbeddingConfig {
	return config.NewEmbeddingConfig().
		WithDimensions(testDimensions).
		WithSubBatch(2).
		WithSleep(0)
}

func TestWorkerEmbedsPendingEvents(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	require.NoError(t, p.integrator(nil).ProcessAll(ctx, []event.Document{
		testDoc("https://example.com/1"),
		testDoc("https://example.com/2"),
		testDoc("https://example.com/3"),
	}))

	embedder := &fakeEmbedder{}
	worker := service.NewEmbeddingWorker(p.events, embedder, workerConfig(), nil)
	require.NoError(t, worker.Run(ctx))

	pending, err := p.events.PendingEmbeddings(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)

	// Three events in sub-batches of two means two provider calls.
	require.Equal(t, 2, embedder.calls)
}

func TestWorkerNoPendingIsNoOp(t *testing.T) {
	p := newPipeline(t)
	embedder := &fakeEmbedder{}
	worker := service.NewEmbeddingWorker(p.events, embedder, workerConfig(), nil)

	require.NoError(t, worker.Run(context.Background()))
	require.Zero(t, embedder.calls)
}

func TestWorkerSweepLimit(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	var docs []event.Document
	for i := 0; i < 5; i++ {
		docs = append(docs, testDoc(fmt.Sprintf("https://example.com/%d", i)))
	}
	require.NoError(t, p.integrator(nil).ProcessAll(ctx, docs))

	worker := service.NewEmbeddingWorker(p.events, &fakeEmbedder{}, workerConfig().WithSweepLimit(3), nil)
	require.NoError(t, worker.Run(ctx))

	pending, err := p.events.PendingEmbeddings(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, pending)
}

// permanentEmbedder fails every call with a permanent provider error.
type permanentEmbedder struct{}

func (permanentEmbedder) Embed(context.Context, provider.EmbeddingRequest) (provider.EmbeddingResponse, error) {
	return provider.EmbeddingResponse{}, fmt.Errorf("%w: model not found", provider.ErrPermanent)
}

func (permanentEmbedder) Dimensions() int { return testDimensions }

func TestWorkerAbortsOnPermanentFailure(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	require.NoError(t, p.integrator(nil).ProcessAll(ctx, []event.Document{testDoc("https://example.com/1")}))

	worker := service.NewEmbeddingWorker(p.events, permanentEmbedder{}, workerConfig(), nil)
	err := worker.Run(ctx)
	require.ErrorIs(t, err, provider.ErrPermanent)
}

// wrongDimensionEmbedder returns vectors of the wrong size.
type wrongDimensionEmbedder struct{}

func (wrongDimensionEmbedder) Embed(_ context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResponse, error) {
	out := make([][]float64, len(req.Texts()))
	for i := range out {
		out[i] = []float64{1, 2}
	}
	return provider.NewEmbeddingResponse(out, provider.NewUsage(0, 0)), nil
}

func (wrongDimensionEmbedder) Dimensions() int { return 2 }

func TestWorkerRejectsDimensionMismatch(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	require.NoError(t, p.integrator(nil).ProcessAll(ctx, []event.Document{testDoc("https://example.com/1")}))

	worker := service.NewEmbeddingWorker(p.events, wrongDimensionEmbedder{}, workerConfig(), nil)
	err := worker.Run(ctx)
	require.ErrorIs(t, err, provider.ErrDimensionMismatch)
}
