package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/handler"
	"github.com/xxxsen/docqa/internal/middleware"
	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/pkg/jwt"
	"github.com/xxxsen/docqa/internal/service"
)

var testSecret = []byte("test-secret")

type fakeDocuments struct {
	uploads []string
	deleted []string
	result  *service.UploadResult
	err     error
	sources []*model.DocumentSource
}

func (f *fakeDocuments) Upload(ctx context.Context, ownerID, filename, contentType string, data []byte) (*service.UploadResult, error) {
	f.uploads = append(f.uploads, fmt.Sprintf("%s/%s/%s/%d", ownerID, filename, contentType, len(data)))
	return f.result, f.err
}

func (f *fakeDocuments) List(ctx context.Context, ownerID string) ([]*model.DocumentSource, error) {
	return f.sources, f.err
}

func (f *fakeDocuments) Delete(ctx context.Context, ownerID, filename string) error {
	f.deleted = append(f.deleted, ownerID+"/"+filename)
	return f.err
}

type fakeAnswerer struct {
	owner  string
	answer *service.Answer
	err    error
}

func (f *fakeAnswerer) Answer(ctx context.Context, ownerID, question string) (*service.Answer, error) {
	f.owner = ownerID
	return f.answer, f.err
}

// brokenBody yields its data, then fails the next read.
type brokenBody struct {
	data *strings.Reader
}

func (b *brokenBody) Read(p []byte) (int, error) {
	if b.data.Len() == 0 {
		return 0, errors.New("connection reset")
	}
	return b.data.Read(p)
}

func (b *brokenBody) Close() error { return nil }

func sseStream(fragments ...string) *ai.Stream {
	var sb strings.Builder
	for _, f := range fragments {
		payload, _ := json.Marshal(map[string]interface{}{
			"choices": []map[string]interface{}{{"delta": map[string]string{"content": f}}},
		})
		sb.WriteString("data: " + string(payload) + "\n\n")
	}
	return ai.NewStream(io.NopCloser(strings.NewReader(sb.String()+"data: [DONE]\n\n")), ai.ExtractOpenAIText)
}

func setupRouter(t *testing.T, docs handler.DocumentManager, answers handler.Answerer) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	deps := handler.RouterDeps{
		Documents: handler.NewDocumentHandler(docs, 1024),
		Query:     handler.NewQueryHandler(answers),
		JWTSecret: testSecret,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return engine
}

func bearer(t *testing.T, owner string) string {
	t.Helper()
	token, err := jwt.GenerateToken(owner, testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func uploadRequest(t *testing.T, owner, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", bearer(t, owner))
	return req
}

type envelope struct {
	Code int                    `json:"code"`
	Msg  string                 `json:"message"`
	Data map[string]interface{} `json:"data"`
}

func decodeEnvelope(t *testing.T, resp *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	return env
}
