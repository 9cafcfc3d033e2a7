package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docqa/internal/chunker"
	"github.com/xxxsen/docqa/internal/config"
	"github.com/xxxsen/docqa/internal/filestore"
	"github.com/xxxsen/docqa/internal/model"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

type fakeSources struct {
	fakeWriter
	deleted []string
}

func (f *fakeSources) ListSources(ctx context.Context, ownerID string) ([]*model.DocumentSource, error) {
	counts := map[string]int{}
	var order []string
	for _, p := range f.all() {
		if p.OwnerID != ownerID {
			continue
		}
		if counts[p.Source] == 0 {
			order = append(order, p.Source)
		}
		counts[p.Source]++
	}
	var out []*model.DocumentSource
	for _, s := range order {
		out = append(out, &model.DocumentSource{Source: s, Passages: counts[s]})
	}
	return out, nil
}

func (f *fakeSources) DeleteBySource(ctx context.Context, ownerID, source string) (int64, error) {
	f.deleted = append(f.deleted, ownerID+"/"+source)
	return 1, nil
}

func setupDocuments(t *testing.T) (*DocumentService, *fakeSources, filestore.Store, *fakeEmbedder) {
	t.Helper()
	files, err := filestore.New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": t.TempDir()}})
	require.NoError(t, err)
	emb := newFakeEmbedder(4)
	sources := &fakeSources{}
	b := NewEmbedBatcher(emb, EmbedBatcherConfig{BatchSize: 100})
	b.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	ingest := NewIngestService(chunker.New(chunker.DefaultConfig()), b, sources, 100)
	return NewDocumentService(files, ingest, sources), sources, files, emb
}

func TestUploadIngestsMarkdown(t *testing.T) {
	svc, sources, files, _ := setupDocuments(t)
	res, err := svc.Upload(context.Background(), "owner-1", "rome.md", "", []byte("# Rome\nFounded in 753 BC."))
	require.NoError(t, err)
	require.True(t, res.Ingested)
	require.Equal(t, "owner-1/rome.md", res.Key)
	require.Equal(t, 1, res.Ingest.Passages)

	obj, err := files.Download(context.Background(), "owner-1/rome.md")
	require.NoError(t, err)
	_ = obj.Body.Close()

	list, err := svc.List(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "rome.md", list[0].Source)
	require.Len(t, sources.all(), 1)
}

func TestUploadRejectsTypeBeforeStorage(t *testing.T) {
	svc, sources, files, emb := setupDocuments(t)
	_, err := svc.Upload(context.Background(), "owner-1", "notes.txt", "text/plain", []byte("hello"))
	require.ErrorIs(t, err, appErr.ErrInvalid)
	require.Contains(t, err.Error(), model.RejectMessage)

	_, err = files.Download(context.Background(), "owner-1/notes.txt")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.Equal(t, 0, emb.calls)
	require.Empty(t, sources.batches)
}

func TestUploadConflictSkipsIngestion(t *testing.T) {
	svc, sources, _, emb := setupDocuments(t)
	_, err := svc.Upload(context.Background(), "owner-1", "rome.md", "text/markdown", []byte("# A\nfirst"))
	require.NoError(t, err)
	calls := emb.calls

	_, err = svc.Upload(context.Background(), "owner-1", "rome.md", "text/markdown", []byte("# A\nsecond"))
	require.ErrorIs(t, err, appErr.ErrConflict)
	require.Equal(t, calls, emb.calls)
	require.Len(t, sources.all(), 1)
}

func TestUploadPDFIsStoredButNotIngested(t *testing.T) {
	svc, sources, files, _ := setupDocuments(t)
	res, err := svc.Upload(context.Background(), "owner-1", "scan.pdf", "application/pdf", []byte("%PDF-1.7"))
	require.ErrorIs(t, err, appErr.ErrUnsupportedMedia)
	require.NotNil(t, res)
	require.False(t, res.Ingested)
	require.Equal(t, "pdf", res.Kind)
	require.Empty(t, sources.batches)

	obj, err := files.Download(context.Background(), "owner-1/scan.pdf")
	require.NoError(t, err)
	require.Equal(t, model.ContentTypePDF, obj.ContentType)
	_ = obj.Body.Close()
}

func TestUploadStripsPathFromFilename(t *testing.T) {
	svc, _, _, _ := setupDocuments(t)
	res, err := svc.Upload(context.Background(), "owner-1", "../../etc/rome.md", "", []byte("# A\nbody"))
	require.NoError(t, err)
	require.Equal(t, "owner-1/rome.md", res.Key)

	_, err = svc.Upload(context.Background(), "owner-1", "", "", []byte("x"))
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestDeleteRemovesFileAndPassages(t *testing.T) {
	svc, sources, files, _ := setupDocuments(t)
	_, err := svc.Upload(context.Background(), "owner-1", "rome.md", "", []byte("# A\nbody"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "owner-1", "rome.md"))
	require.Equal(t, []string{"owner-1/rome.md"}, sources.deleted)
	_, err = files.Download(context.Background(), "owner-1/rome.md")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}
