package api

import (
	"log/slog"

	"bookkeeping/middleware"

	"github.com/gin-gonic/gin"
)

// logger 带请求 ID 的日志
func logger(c *gin.Context) *slog.Logger {
	return slog.Default().With("request_id", middleware.GetRequestID(c))
}
