package response

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"

	"github.com/xxxsen/coachrag/internal/ai"
	"github.com/xxxsen/coachrag/internal/pkg/errcode"
	appErr "github.com/xxxsen/coachrag/internal/pkg/errors"
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

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Error writes a failure envelope. The HTTP status stays 200 and the error
// is carried in the body code.
func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, codeErr{code: uint32(code), msg: message})
}

// Fail maps a service error onto an error code and writes it.
func Fail(c *gin.Context, err error) {
	code, msg := Classify(err)
	Error(c, code, msg)
}

func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, appErr.ErrEmptyQuery):
		return errcode.ErrEmptyQuery, "query is empty"
	case errors.Is(err, appErr.ErrDimensionMismatch):
		return errcode.ErrEmbeddingFailed, err.Error()
	case errors.Is(err, appErr.ErrSourceCreation):
		return errcode.ErrSourceCreation, "could not create document source"
	case errors.Is(err, appErr.ErrPersistence):
		return errcode.ErrPersistence, "could not store document chunks"
	case errors.Is(err, ai.ErrUnavailable), errors.Is(err, appErr.ErrUnavailable):
		return errcode.ErrAIUnavailable, "embedding provider unavailable"
	case appErr.IsValidation(err):
		return errcode.ErrInvalid, err.Error()
	case errors.Is(err, appErr.ErrUnauthorized):
		return errcode.ErrUnauthorized, "unauthorized"
	case errors.Is(err, appErr.ErrNotFound):
		return errcode.ErrNotFound, "not found"
	case errors.Is(err, appErr.ErrTooMany):
		return errcode.ErrTooMany, "too many requests"
	default:
		return errcode.ErrInternal, "internal error"
	}
}
