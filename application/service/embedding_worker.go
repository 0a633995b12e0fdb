package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gigradar/gigradar/domain/event"
	"github.com/gigradar/gigradar/infrastructure/persistence"
	"github.com/gigradar/gigradar/infrastructure/provider"
	"github.com/gigradar/gigradar/internal/config"
)

// EmbeddingWorker sweeps events whose vector is null, composes their
// weighted texts, and writes the provider's vectors back through the
// native-SQL path. A sub-batch failing fails only that sub-batch; a
// permanent provider failure aborts the sweep with a typed error.
type EmbeddingWorker struct {
	events   persistence.EventStore
	embedder provider.Embedder
	cfg      config.EmbeddingConfig
	logger   *slog.Logger
}

// NewEmbeddingWorker creates an EmbeddingWorker.
func NewEmbeddingWorker(
	events persistence.EventStore,
	embedder provider.Embedder,
	cfg config.EmbeddingConfig,
	logger *slog.Logger,
) *EmbeddingWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingWorker{
		events:   events,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run performs one sweep.
func (w *EmbeddingWorker) Run(ctx context.Context) error {
	pending, err := w.events.PendingEmbeddings(ctx)
	if err != nil {
		return err
	}
	if pending == 0 {
		w.logger.Info("no events without embeddings")
		return nil
	}

	events, err := w.events.WithoutEmbedding(ctx, w.cfg.SweepLimit())
	if err != nil {
		return err
	}

	w.logger.Info("embedding sweep started",
		"pending", pending,
		"selected", len(events),
	)

	processed := 0
	for start := 0; start < len(events); start += w.cfg.SubBatch() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		end := min(start+w.cfg.SubBatch(), len(events))

		if err := w.processSubBatch(ctx, events[start:end]); err != nil {
			if errors.Is(err, provider.ErrPermanent) || errors.Is(err, provider.ErrDimensionMismatch) {
				return fmt.Errorf("embedding sweep aborted: %w", err)
			}
			w.logger.Error("sub-batch failed",
				"from", start,
				"to", end-1,
				"error", err,
			)
		} else {
			processed += end - start
		}
		w.logger.Info("embedding progress", "processed", processed, "selected", len(events))

		if end < len(events) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.cfg.Sleep()):
			}
		}
	}

	w.logger.Info("embedding sweep finished", "processed", processed)
	return nil
}

func (w *EmbeddingWorker) processSubBatch(ctx context.Context, events []event.Event) error {
	texts := make([]string, len(events))
	for i, e := range events {
		texts[i] = ComposeEventText(e)
	}

	resp, err := w.embedder.Embed(ctx, provider.NewEmbeddingRequest(texts))
	if err != nil {
		return err
	}

	if usage := resp.Usage(); usage.TotalTokens() > 0 {
		w.logger.Info("embedding token usage",
			"prompt_tokens", usage.PromptTokens(),
			"total_tokens", usage.TotalTokens(),
		)
	}

	embeddings := resp.Embeddings()
	if len(embeddings) != len(events) {
		return fmt.Errorf("got %d vectors for %d events", len(embeddings), len(events))
	}

	for i, vec := range embeddings {
		if len(vec) != w.cfg.Dimensions() {
			return fmt.Errorf("%w: got %d, configured %d",
				provider.ErrDimensionMismatch, len(vec), w.cfg.Dimensions())
		}
		if err := w.events.SetEmbedding(ctx, events[i].ID(), vec); err != nil {
			// One event failing to persist does not fail its siblings.
			w.logger.Error("failed to save embedding",
				"event_id", events[i].ID(),
				"error", err,
			)
		}
	}

	return nil
}

// defaultSweepInterval paces the background sweep loop in serve mode.
const defaultSweepInterval = 10 * time.Minute

// Start runs periodic sweeps until the context is cancelled. Permanent
// failures stop the loop; the operator has to fix configuration anyway.
func (w *EmbeddingWorker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(defaultSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.Run(ctx); err != nil {
					w.logger.Error("embedding sweep failed", "error", err)
					if errors.Is(err, provider.ErrPermanent) || errors.Is(err, provider.ErrDimensionMismatch) {
						return
					}
				}
			}
		}
	}()
}
