package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/pkg/dbutil"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

const passageTable = "document_passages"

type PassageRepo struct {
	db *sql.DB
}

func NewPassageRepo(db *sql.DB) *PassageRepo {
	return &PassageRepo{db: db}
}

// InsertBatch writes passages in one statement and fills in their ids.
// A passage without an embedding is stored with a NULL vector. A passage
// index already stored for the owner and source yields ErrConflict.
func (r *PassageRepo) InsertBatch(ctx context.Context, passages []*model.Passage) error {
	if len(passages) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(passages))
	for _, p := range passages {
		data = append(data, map[string]interface{}{
			"owner_id":    p.OwnerID,
			"source":      p.Source,
			"title":       p.Title,
			"content":     p.Content,
			"chunk_index": p.SequenceIndex,
			"token_size":  p.TokenSize,
			"embedding":   dbutil.VectorOrNull(p.Embedding),
			"ctime":       p.Ctime,
		})
	}
	sqlStr, args, err := builder.BuildInsert(passageTable, data)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr+" RETURNING id", args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return insertError(err)
	}
	defer rows.Close()
	i := 0
	for rows.Next() {
		if i >= len(passages) {
			return fmt.Errorf("insert returned more ids than rows")
		}
		if err := rows.Scan(&passages[i].ID); err != nil {
			return err
		}
		i++
	}
	return insertError(rows.Err())
}

func insertError(err error) error {
	if dbutil.IsConflict(err) {
		return fmt.Errorf("%w: passage already stored: %v", appErr.ErrConflict, err)
	}
	return err
}

// Search returns the owner's passages closest to vector by cosine distance,
// best first. Passages stored without an embedding never match.
func (r *PassageRepo) Search(ctx context.Context, vector []float32, ownerID string, limit int) ([]*model.RetrievedPassage, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}
	const query = `
		SELECT id, owner_id, source, title, content, chunk_index, token_size, ctime,
			1 - (embedding <=> $1) AS similarity
		FROM document_passages
		WHERE owner_id = $2 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, pgvector.NewVector(vector), ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []*model.RetrievedPassage
	for rows.Next() {
		item := &model.RetrievedPassage{}
		if err := rows.Scan(
			&item.ID,
			&item.OwnerID,
			&item.Source,
			&item.Title,
			&item.Content,
			&item.SequenceIndex,
			&item.TokenSize,
			&item.Ctime,
			&item.Similarity,
		); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

func (r *PassageRepo) ListSources(ctx context.Context, ownerID string) ([]*model.DocumentSource, error) {
	where := map[string]interface{}{
		"owner_id": ownerID,
		"_groupby": "source",
		"_orderby": "source asc",
	}
	sqlStr, args, err := builder.BuildSelect(passageTable, where, []string{"source", "COUNT(*) AS cnt", "MIN(ctime) AS ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []*model.DocumentSource
	for rows.Next() {
		item := &model.DocumentSource{}
		if err := rows.Scan(&item.Source, &item.Passages, &item.Ctime); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

func (r *PassageRepo) DeleteBySource(ctx context.Context, ownerID, source string) (int64, error) {
	sqlStr, args, err := builder.BuildDelete(passageTable, map[string]interface{}{
		"owner_id": ownerID,
		"source":   source,
	})
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
