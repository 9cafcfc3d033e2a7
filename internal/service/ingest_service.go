package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/chunker"
	"github.com/xxxsen/docqa/internal/model"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

type PassageWriter interface {
	InsertBatch(ctx context.Context, passages []*model.Passage) error
}

type IngestResult struct {
	Source   string `json:"source"`
	Passages int    `json:"passages"`
	Degraded int    `json:"degraded"`
	Batches  int    `json:"batches"`
}

// IngestService turns one uploaded document into stored passages.
type IngestService struct {
	chunker         *chunker.Chunker
	batcher         *EmbedBatcher
	store           PassageWriter
	insertBatchSize int
}

func NewIngestService(c *chunker.Chunker, batcher *EmbedBatcher, store PassageWriter, insertBatchSize int) *IngestService {
	if insertBatchSize <= 0 {
		insertBatchSize = 100
	}
	return &IngestService{
		chunker:         c,
		batcher:         batcher,
		store:           store,
		insertBatchSize: insertBatchSize,
	}
}

// Ingest validates, normalizes, chunks, embeds and persists raw. Passages are
// written in sequential batches; when one fails the earlier ones stay
// committed and the returned BatchError says how far it got.
func (s *IngestService) Ingest(ctx context.Context, raw []byte, ownerID, source, contentType string) (*IngestResult, error) {
	ownerID = strings.TrimSpace(ownerID)
	source = strings.TrimSpace(source)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", appErr.ErrInvalid)
	}
	if source == "" {
		return nil, fmt.Errorf("%w: source is required", appErr.ErrInvalid)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("owner_id", ownerID), zap.String("source", source))

	kind := model.DetectMediaKind(source, contentType)
	switch kind {
	case model.MediaMarkdown:
	case model.MediaPDF:
		logger.Info("pdf ingestion is not supported yet")
		return nil, fmt.Errorf("%w: pdf text extraction is not available", appErr.ErrUnsupportedMedia)
	default:
		return nil, fmt.Errorf("%w: %s", appErr.ErrUnsupportedMedia, model.RejectMessage)
	}

	passages := s.chunker.Chunk(ctx, chunker.Normalize(string(raw)), source, chunker.NewSequence())
	result := &IngestResult{Source: source}
	if len(passages) == 0 {
		logger.Warn("document produced no passages")
		return result, nil
	}
	for _, p := range passages {
		p.OwnerID = ownerID
	}

	stats, err := s.batcher.EmbedAll(ctx, passages)
	result.Degraded = stats.Degraded
	if err != nil {
		logger.Error("embedding aborted", zap.Error(err))
		return result, err
	}

	for start := 0; start < len(passages); start += s.insertBatchSize {
		end := start + s.insertBatchSize
		if end > len(passages) {
			end = len(passages)
		}
		batchNo := start/s.insertBatchSize + 1
		if err := s.store.InsertBatch(ctx, passages[start:end]); err != nil {
			logger.Error("persist batch failed",
				zap.Int("batch", batchNo),
				zap.Int("committed", result.Passages),
				zap.Error(err),
			)
			return result, &BatchError{Stage: StagePersist, Batch: batchNo, Committed: result.Passages, Err: err}
		}
		result.Passages += end - start
		result.Batches++
	}
	logger.Info("document ingested",
		zap.Int("passages", result.Passages),
		zap.Int("degraded", result.Degraded),
		zap.Int("batches", result.Batches),
	)
	return result, nil
}
