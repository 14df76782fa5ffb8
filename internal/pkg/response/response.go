package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/lk2023060901/file-container/internal/pkg/errors"
)

// ErrorBody 错误响应结构
type ErrorBody struct {
	Error string `json:"error"` // 面向客户端的错误信息
	Code  int    `json:"code"`  // 业务错误码
}

// Success 成功响应（200），在 data 中补充 success 字段
func Success(c *gin.Context, data gin.H) {
	body := gin.H{"success": true}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// OK 直接输出数据（200）
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Error 按错误码输出错误响应
func Error(c *gin.Context, code int, details ...string) {
	HandleError(c, apperrors.New(code, details...))
}

// NotFound 404 错误
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, ErrorBody{Error: message, Code: apperrors.ErrNotFound})
}

// HandleError 统一错误处理（使用AppError）
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	appErr := apperrors.Wrap(err, apperrors.ExtractCode(err))
	c.AbortWithStatusJSON(appErr.HTTPStatus(), ErrorBody{
		Error: appErr.PublicMessage(),
		Code:  appErr.Code,
	})
}
