package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/filestore"
	"github.com/xxxsen/docqa/internal/model"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

type SourceStore interface {
	ListSources(ctx context.Context, ownerID string) ([]*model.DocumentSource, error)
	DeleteBySource(ctx context.Context, ownerID, source string) (int64, error)
}

type Ingester interface {
	Ingest(ctx context.Context, raw []byte, ownerID, source, contentType string) (*IngestResult, error)
}

type UploadResult struct {
	Key      string        `json:"key"`
	Source   string        `json:"source"`
	Kind     string        `json:"kind"`
	Ingested bool          `json:"ingested"`
	Ingest   *IngestResult `json:"ingest,omitempty"`
}

type DocumentService struct {
	files    filestore.Store
	ingester Ingester
	sources  SourceStore
}

func NewDocumentService(files filestore.Store, ingester Ingester, sources SourceStore) *DocumentService {
	return &DocumentService{files: files, ingester: ingester, sources: sources}
}

// Upload stores the raw file under the owner and ingests it. Files outside
// the allow-list are rejected before storage is touched; an existing object
// with the same name is reported as a conflict and nothing is ingested. A PDF
// is kept in storage but returns ErrUnsupportedMedia from ingestion.
func (s *DocumentService) Upload(ctx context.Context, ownerID, filename, contentType string, data []byte) (*UploadResult, error) {
	source, err := cleanFilename(filename)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", appErr.ErrInvalid)
	}
	kind := model.DetectMediaKind(source, contentType)
	if kind == model.MediaUnsupported {
		return nil, fmt.Errorf("%w: %s", appErr.ErrInvalid, model.RejectMessage)
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("owner_id", ownerID),
		zap.String("source", source),
		zap.String("kind", kind.String()),
	)
	key := filestore.ObjectKey(ownerID, source)
	if err := s.files.Upload(ctx, key, data, kind.ContentType()); err != nil {
		if errors.Is(err, appErr.ErrConflict) {
			logger.Info("document already uploaded")
			return nil, err
		}
		logger.Error("store document failed", zap.Error(err))
		return nil, fmt.Errorf("store document: %w", err)
	}
	result := &UploadResult{Key: key, Source: source, Kind: kind.String()}
	ingest, err := s.ingester.Ingest(ctx, data, ownerID, source, kind.ContentType())
	result.Ingest = ingest
	if err != nil {
		return result, err
	}
	result.Ingested = true
	return result, nil
}

func (s *DocumentService) List(ctx context.Context, ownerID string) ([]*model.DocumentSource, error) {
	items, err := s.sources.ListSources(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*model.DocumentSource{}
	}
	return items, nil
}

// Delete removes the stored file and every passage cut from it. Deleting a
// document that does not exist succeeds.
func (s *DocumentService) Delete(ctx context.Context, ownerID, filename string) error {
	source, err := cleanFilename(filename)
	if err != nil {
		return err
	}
	removed, err := s.sources.DeleteBySource(ctx, ownerID, source)
	if err != nil {
		return err
	}
	if err := s.files.Delete(ctx, filestore.ObjectKey(ownerID, source)); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("document deleted",
		zap.String("owner_id", ownerID),
		zap.String("source", source),
		zap.Int64("passages", removed),
	)
	return nil
}

// cleanFilename keeps the base name; the object key must not gain extra
// path segments from user input.
func cleanFilename(filename string) (string, error) {
	name := strings.TrimSpace(strings.ReplaceAll(filename, "\\", "/"))
	name = path.Base(name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", fmt.Errorf("%w: filename is required", appErr.ErrInvalid)
	}
	return name, nil
}
