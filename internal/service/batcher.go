package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/model"
)

type EmbedBatcherConfig struct {
	BatchSize int
	Delay     time.Duration
	Dimension int
	// Timeout bounds a single embedding request; zero means no bound.
	Timeout time.Duration
}

type EmbedStats struct {
	Batches  int
	Degraded int
}

// EmbedBatcher embeds passages in fixed size batches. Requests inside a batch
// run concurrently and the batch is joined before the next one starts.
type EmbedBatcher struct {
	embedder ai.IEmbedder
	cfg      EmbedBatcherConfig
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewEmbedBatcher(embedder ai.IEmbedder, cfg EmbedBatcherConfig) *EmbedBatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Dimension <= 0 && embedder != nil {
		cfg.Dimension = embedder.Dimension()
	}
	return &EmbedBatcher{embedder: embedder, cfg: cfg, sleep: sleepContext}
}

// EmbedAll attaches an embedding to every passage it can. A failed request or
// a vector of the wrong size leaves the passage without one and is counted as
// degraded. Only context cancellation stops the run.
func (b *EmbedBatcher) EmbedAll(ctx context.Context, passages []*model.Passage) (EmbedStats, error) {
	logger := logutil.GetLogger(ctx)
	var stats EmbedStats
	total := len(passages)
	for start := 0; start < total; start += b.cfg.BatchSize {
		batchNo := start/b.cfg.BatchSize + 1
		if err := ctx.Err(); err != nil {
			return stats, &BatchError{Stage: StageEmbed, Batch: batchNo, Err: err}
		}
		end := start + b.cfg.BatchSize
		if end > total {
			end = total
		}
		degraded := b.embedBatch(ctx, passages[start:end])
		stats.Batches++
		stats.Degraded += degraded
		if err := ctx.Err(); err != nil {
			return stats, &BatchError{Stage: StageEmbed, Batch: batchNo, Err: err}
		}
		logger.Info("embedding batch completed",
			zap.Int("batch", batchNo),
			zap.Int("passages", end-start),
			zap.Int("degraded", degraded),
		)
		if end < total && b.cfg.Delay > 0 {
			if err := b.sleep(ctx, b.cfg.Delay); err != nil {
				return stats, &BatchError{Stage: StageEmbed, Batch: batchNo + 1, Err: err}
			}
		}
	}
	return stats, nil
}

func (b *EmbedBatcher) embedBatch(ctx context.Context, batch []*model.Passage) int {
	var degraded atomic.Int32
	var g errgroup.Group
	g.SetLimit(len(batch))
	for _, p := range batch {
		g.Go(func() error {
			vec, err := b.embedOne(ctx, p.Content)
			if err == nil {
				p.Embedding = vec
			}
			if err != nil || !p.Embedded(b.cfg.Dimension) {
				logutil.GetLogger(ctx).Warn("passage embedding degraded",
					zap.String("source", p.Source),
					zap.Int("sequence_index", p.SequenceIndex),
					zap.Int("dimension", len(vec)),
					zap.Error(err),
				)
				p.Embedding = nil
				degraded.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(degraded.Load())
}

func (b *EmbedBatcher) embedOne(ctx context.Context, text string) ([]float32, error) {
	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}
	return b.embedder.Embed(ctx, text, ai.TaskTypeDocument)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
