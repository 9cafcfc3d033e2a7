package response

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"

	"github.com/xxxsen/docqa/internal/pkg/errcode"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, AsCodeErr(uint32(code), message))
}

// Fail writes the envelope matching the first known error class in err's chain.
func Fail(c *gin.Context, err error) {
	code, msg := Classify(err)
	Error(c, code, msg)
}

func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		return errcode.ErrUnauthorized, "unauthorized"
	case errors.Is(err, appErr.ErrNotFound):
		return errcode.ErrNotFound, "not found"
	case errors.Is(err, appErr.ErrInvalid):
		return errcode.ErrInvalid, err.Error()
	case errors.Is(err, appErr.ErrConflict):
		return errcode.ErrConflict, "document already exists"
	case errors.Is(err, appErr.ErrTooMany):
		return errcode.ErrTooMany, "too many requests"
	case errors.Is(err, appErr.ErrUnsupportedMedia):
		return errcode.ErrUnsupportedMedia, err.Error()
	case errors.Is(err, appErr.ErrUpstream):
		return errcode.ErrUpstream, "upstream service failure"
	default:
		return errcode.ErrInternal, "internal error"
	}
}
