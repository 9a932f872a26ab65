package api

import (
	"errors"
	"net/http"

	"bookkeeping/service"

	"github.com/gin-gonic/gin"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	List     interface{} `json:"list"`
}

// ValidationErrorData 校验失败时 data 的结构
type ValidationErrorData struct {
	Errors map[string]string `json:"errors"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 400 错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Unauthorized 401 错误响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// InternalError 500 错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

// NotFound 404 错误响应
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// ValidationFailed 400 响应，data.errors 列出各字段的错误
func ValidationFailed(c *gin.Context, errs service.ValidationErrors) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    http.StatusBadRequest,
		Message: "参数校验失败",
		Data:    ValidationErrorData{Errors: errs.Fields()},
	})
}

// HandleServiceError 按错误类型输出响应：校验错误 400，不存在 404，其他 500
func HandleServiceError(c *gin.Context, err error, fallback string) {
	if verrs, ok := service.AsValidation(err); ok {
		ValidationFailed(c, verrs)
		return
	}
	if errors.Is(err, service.ErrNotFound) {
		NotFound(c, err.Error())
		return
	}
	InternalError(c, SafeErrorMessage(err, fallback))
}
