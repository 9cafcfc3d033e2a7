package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/pkg/timeutil"
)

const (
	EmbeddingCacheCleanupName = "embedding_cache_cleanup"
	defaultCacheMaxAgeDays    = 30
)

type CachePruner interface {
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

// EmbeddingCacheCleanupJob drops persisted embeddings older than maxAgeDays.
type EmbeddingCacheCleanupJob struct {
	pruner     CachePruner
	maxAgeDays int
	cutoff     func(days int) int64
}

func NewEmbeddingCacheCleanupJob(pruner CachePruner, maxAgeDays int) *EmbeddingCacheCleanupJob {
	if maxAgeDays <= 0 {
		maxAgeDays = defaultCacheMaxAgeDays
	}
	return &EmbeddingCacheCleanupJob{pruner: pruner, maxAgeDays: maxAgeDays, cutoff: timeutil.DaysAgoUnix}
}

func (j *EmbeddingCacheCleanupJob) Name() string {
	return EmbeddingCacheCleanupName
}

func (j *EmbeddingCacheCleanupJob) Run(ctx context.Context) error {
	if j.pruner == nil {
		return nil
	}
	cutoff := j.cutoff(j.maxAgeDays)
	removed, err := j.pruner.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("embedding cache pruned",
		zap.Int64("cutoff", cutoff),
		zap.Int64("removed", removed),
	)
	return nil
}
