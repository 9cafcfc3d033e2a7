package embedcache

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/model"
)

type Store interface {
	Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error)
	Save(ctx context.Context, item *model.EmbeddingCache) error
}

// WrapStore persists embeddings so a restart or a re-upload of the same text
// does not pay for them again. Store failures are logged and bypassed.
func WrapStore(e ai.IEmbedder, store Store) ai.IEmbedder {
	if e == nil || store == nil {
		return e
	}
	return &storeEmbedder{next: e, store: store}
}

type storeEmbedder struct {
	next  ai.IEmbedder
	store Store
}

func (s *storeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	logger := logutil.GetLogger(ctx)
	dim := s.next.Dimension()
	key := newCacheKey(s.next.ModelName(), dim, taskType, text)
	values, ok, err := s.store.Get(ctx, key.model, key.taskType, key.contentHash)
	switch {
	case err != nil:
		logger.Warn("read embedding cache failed", zap.Error(err))
	case ok && usable(values, dim):
		logger.Debug("embedding cache hit", zap.String("layer", "db"), zap.String("task_type", taskType))
		return values, nil
	}
	res, err := s.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if !usable(res, dim) {
		return res, nil
	}
	if err := s.store.Save(ctx, &model.EmbeddingCache{
		ModelName:   key.model,
		TaskType:    key.taskType,
		ContentHash: key.contentHash,
		Dimension:   len(res),
		Embedding:   res,
		Ctime:       time.Now().Unix(),
	}); err != nil {
		logger.Warn("write embedding cache failed", zap.Error(err))
	}
	return res, nil
}

func (s *storeEmbedder) ModelName() string {
	return s.next.ModelName()
}

func (s *storeEmbedder) Dimension() int {
	return s.next.Dimension()
}
