package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/middleware"
	"github.com/xxxsen/docqa/internal/pkg/errcode"
	"github.com/xxxsen/docqa/internal/pkg/response"
	"github.com/xxxsen/docqa/internal/service"
)

func getOwnerID(c *gin.Context) string {
	return middleware.OwnerID(c)
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get(middleware.ContextRequestIDKey)
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("owner_id", getOwnerID(c)),
		zap.Error(err),
	)
	var batchErr *service.BatchError
	if errors.As(err, &batchErr) {
		response.Error(c, errcode.ErrIngestFailed, batchErr.Error())
		return
	}
	response.Fail(c, err)
}
