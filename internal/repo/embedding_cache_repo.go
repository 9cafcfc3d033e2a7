package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/pkg/dbutil"
)

type EmbeddingCacheRepo struct {
	db *sql.DB
}

func NewEmbeddingCacheRepo(db *sql.DB) *EmbeddingCacheRepo {
	return &EmbeddingCacheRepo{db: db}
}

func (r *EmbeddingCacheRepo) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	sqlStr, args, err := builder.BuildSelect("embedding_cache", map[string]interface{}{
		"model_name":   modelName,
		"task_type":    taskType,
		"content_hash": contentHash,
	}, []string{"embedding"})
	if err != nil {
		return nil, false, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var embedding pgvector.Vector
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&embedding); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return embedding.Slice(), true, nil
}

func (r *EmbeddingCacheRepo) Save(ctx context.Context, item *model.EmbeddingCache) error {
	const query = `
		INSERT INTO embedding_cache (model_name, task_type, content_hash, dimension, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (model_name, task_type, content_hash) DO UPDATE SET
			dimension = EXCLUDED.dimension,
			embedding = EXCLUDED.embedding,
			ctime = EXCLUDED.ctime
	`
	_, err := r.db.ExecContext(ctx, query,
		item.ModelName,
		item.TaskType,
		item.ContentHash,
		item.Dimension,
		pgvector.NewVector(item.Embedding),
		item.Ctime,
	)
	return err
}

func (r *EmbeddingCacheRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	sqlStr, args, err := builder.BuildDelete("embedding_cache", map[string]interface{}{"ctime <": cutoff})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
