package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/pkg/errcode"
	"github.com/xxxsen/docqa/internal/pkg/response"
	"github.com/xxxsen/docqa/internal/service"
)

const (
	HeaderCitations   = "X-Citations"
	TrailerStreamErr  = "X-Stream-Error"
	StreamErrorMarker = "[answer interrupted: the upstream stream failed]"
)

type Answerer interface {
	Answer(ctx context.Context, ownerID, question string) (*service.Answer, error)
}

type QueryHandler struct {
	answers Answerer
}

func NewQueryHandler(answers Answerer) *QueryHandler {
	return &QueryHandler{answers: answers}
}

type queryRequest struct {
	Query string `json:"query"`
}

// EncodeCitations renders citations as base64 JSON for the response header.
func EncodeCitations(citations []model.Citation) (string, error) {
	if citations == nil {
		citations = []model.Citation{}
	}
	raw, err := json.Marshal(citations)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func DecodeCitations(value string) ([]model.Citation, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, err
	}
	var citations []model.Citation
	if err := json.Unmarshal(raw, &citations); err != nil {
		return nil, err
	}
	return citations, nil
}

// Query writes the answer as a chunked text/plain body. Citations travel in a
// header so they are available before the first fragment.
func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	ctx := c.Request.Context()
	answer, err := h.answers.Answer(ctx, getOwnerID(c), req.Query)
	if err != nil {
		handleError(c, err)
		return
	}
	if answer.Stream != nil {
		defer answer.Stream.Close()
	}
	encoded, err := EncodeCitations(answer.Citations)
	if err != nil {
		handleError(c, err)
		return
	}
	header := c.Writer.Header()
	header.Set("Content-Type", "text/plain; charset=utf-8")
	header.Set("X-Content-Type-Options", "nosniff")
	header.Set("Cache-Control", "no-cache")
	header.Set(HeaderCitations, encoded)
	header.Set("Trailer", TrailerStreamErr)
	c.Status(http.StatusOK)

	if answer.Stream == nil {
		_, _ = c.Writer.WriteString(answer.Text)
		c.Writer.Flush()
		return
	}
	logger := logutil.GetLogger(ctx).With(zap.String("owner_id", getOwnerID(c)))
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()
	fragments := 0
	for {
		fragment, err := answer.Stream.Recv(ctx)
		if errors.Is(err, io.EOF) {
			logger.Info("answer stream completed", zap.Int("fragments", fragments))
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("client went away during answer stream", zap.Int("fragments", fragments))
				return
			}
			logger.Error("answer stream failed", zap.Int("fragments", fragments), zap.Error(err))
			_, _ = c.Writer.WriteString("\n\n" + StreamErrorMarker + "\n")
			header.Set(TrailerStreamErr, err.Error())
			c.Writer.Flush()
			return
		}
		if _, err := c.Writer.WriteString(fragment); err != nil {
			logger.Warn("write answer fragment failed", zap.Error(err))
			return
		}
		c.Writer.Flush()
		fragments++
	}
}
