package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/coachrag/internal/middleware"
	"github.com/xxxsen/coachrag/internal/pkg/errcode"
	"github.com/xxxsen/coachrag/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIDKey)
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	code, msg := response.Classify(err)
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Error(err),
	)
	if code == errcode.ErrInternal || code == errcode.ErrPersistence || code == errcode.ErrSourceCreation {
		logger.Error("request failed")
	} else {
		logger.Info("request rejected", zap.Int("code", code))
	}
	response.Error(c, code, msg)
}
