package util

import (
	"errors"
	"examprep_backend/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	InternalServerError(c)
}

var statusByKind = []struct {
	kind   error
	status int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrConflict, http.StatusConflict},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrInvalidFile, http.StatusBadRequest},
	{ErrInvalidCredentials, http.StatusUnauthorized},
	{ErrUnauthenticated, http.StatusUnauthorized},
	{ErrInvalidCode, http.StatusBadRequest},
	{ErrInvalidToken, http.StatusBadRequest},
	{ErrExpired, http.StatusBadRequest},
	{ErrLocked, http.StatusLocked},
	{ErrAccountLocked, http.StatusLocked},
	{ErrNotVerified, http.StatusForbidden},
	{ErrForbidden, http.StatusForbidden},
	{ErrPremiumRequired, http.StatusForbidden},
	{ErrNotPublished, http.StatusBadRequest},
	{ErrNotCompleted, http.StatusBadRequest},
	{ErrAlreadyVerified, http.StatusConflict},
	{ErrDeviceConflict, http.StatusConflict},
	{ErrCooldown, http.StatusTooManyRequests},
	{ErrEmailDelivery, http.StatusBadGateway},
}

// StatusFor 根据错误类别返回 HTTP 状态码，未知错误为 500
func StatusFor(err error) int {
	for _, m := range statusByKind {
		if errors.Is(err, m.kind) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// HandleError 业务错误按类别响应，其余错误记录日志后返回 500
func HandleError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		LogInternalError(c, err)
		return
	}
	Error(c, status, err.Error())
}
