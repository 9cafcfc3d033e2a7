package handler_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/pkg/errcode"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
	"github.com/xxxsen/docqa/internal/service"
)

func TestUploadRequiresAuth(t *testing.T) {
	docs := &fakeDocuments{}
	router := setupRouter(t, docs, &fakeAnswerer{})

	req := uploadRequest(t, "owner-1", "a.md", "text/markdown", []byte("# A\nbody"))
	req.Header.Del("Authorization")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, errcode.ErrUnauthorized, decodeEnvelope(t, resp).Code)
	require.Empty(t, docs.uploads)
}

func TestUploadAccepted(t *testing.T) {
	docs := &fakeDocuments{result: &service.UploadResult{
		Key:      "owner-1/a.md",
		Source:   "a.md",
		Kind:     "markdown",
		Ingested: true,
		Ingest:   &service.IngestResult{Source: "a.md", Passages: 2, Batches: 1},
	}}
	router := setupRouter(t, docs, &fakeAnswerer{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequest(t, "owner-1", "a.md", "text/markdown", []byte("# A\nbody")))
	env := decodeEnvelope(t, resp)
	require.Equal(t, 0, env.Code)
	require.Equal(t, "a.md", env.Data["source"])
	require.Equal(t, true, env.Data["ingested"])
	require.Equal(t, []string{"owner-1/a.md/text/markdown/8"}, docs.uploads)
}

func TestUploadOutcomes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"rejected type", fmt.Errorf("%w: %s", appErr.ErrInvalid, model.RejectMessage), errcode.ErrInvalid},
		{"conflict", fmt.Errorf("store: %w", appErr.ErrConflict), errcode.ErrConflict},
		{"pdf stored", fmt.Errorf("%w: pdf", appErr.ErrUnsupportedMedia), errcode.ErrUnsupportedMedia},
		{"embed failure", &service.BatchError{Stage: service.StagePersist, Batch: 2, Err: fmt.Errorf("db down")}, errcode.ErrIngestFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := setupRouter(t, &fakeDocuments{err: tc.err}, &fakeAnswerer{})
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, uploadRequest(t, "owner-1", "a.md", "text/markdown", []byte("x")))
			require.Equal(t, tc.code, decodeEnvelope(t, resp).Code)
		})
	}
}

func TestUploadRejectedTypeMessage(t *testing.T) {
	router := setupRouter(t, &fakeDocuments{err: fmt.Errorf("%w: %s", appErr.ErrInvalid, model.RejectMessage)}, &fakeAnswerer{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequest(t, "owner-1", "a.txt", "text/plain", []byte("x")))
	require.Contains(t, decodeEnvelope(t, resp).Msg, model.RejectMessage)
}

func TestUploadTooLarge(t *testing.T) {
	docs := &fakeDocuments{}
	router := setupRouter(t, docs, &fakeAnswerer{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequest(t, "owner-1", "a.md", "text/markdown", []byte(strings.Repeat("x", 2048))))
	require.Equal(t, errcode.ErrInvalidFile, decodeEnvelope(t, resp).Code)
	require.Empty(t, docs.uploads)
}

func TestListAndDeleteDocuments(t *testing.T) {
	docs := &fakeDocuments{sources: []*model.DocumentSource{{Source: "a.md", Passages: 3, Ctime: 10}}}
	router := setupRouter(t, docs, &fakeAnswerer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	req.Header.Set("Authorization", bearer(t, "owner-1"))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	env := decodeEnvelope(t, resp)
	require.Equal(t, 0, env.Code)
	items, ok := env.Data["documents"].([]interface{})
	require.True(t, ok)
	require.Len(t, items, 1)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/documents/a.md", nil)
	req.Header.Set("Authorization", bearer(t, "owner-1"))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, 0, decodeEnvelope(t, resp).Code)
	require.Equal(t, []string{"owner-1/a.md"}, docs.deleted)
}
