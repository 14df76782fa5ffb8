package service

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/file-container/internal/container/biz"
	apperrors "github.com/lk2023060901/file-container/internal/pkg/errors"
	"github.com/lk2023060901/file-container/internal/pkg/logger"
	"github.com/lk2023060901/file-container/internal/pkg/response"
	"go.uber.org/zap"
)

type ContainerService struct {
	folders *biz.FolderUseCase
	files   *biz.FileUseCase
	uploads *biz.UploadUseCase
	logger  *zap.Logger
}

func NewContainerService(
	folders *biz.FolderUseCase,
	files *biz.FileUseCase,
	uploads *biz.UploadUseCase,
	logger *zap.Logger,
) *ContainerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContainerService{
		folders: folders,
		files:   files,
		uploads: uploads,
		logger:  logger,
	}
}

// RegisterRoutes 注册路由；guards 只作用于需要校验密码的端点
func (s *ContainerService) RegisterRoutes(r *gin.RouterGroup, guards ...gin.HandlerFunc) {
	r.GET("/folders", s.ListFolders)
	r.GET("/files", s.ListFiles)
	r.GET("/download", s.Download)
	r.POST("/upload", s.Upload)

	r.POST("/folder", append(guards, s.CreateFolder)...)
	r.DELETE("/delete", append(guards, s.Delete)...)
}

var codeTable = []struct {
	err  error
	code int
}{
	{biz.ErrInvalidInput, apperrors.ErrInvalidInput},
	{biz.ErrAlreadyExists, apperrors.ErrAlreadyExists},
	{biz.ErrFolderNotFound, apperrors.ErrFolderNotFound},
	{biz.ErrFileNotFound, apperrors.ErrFileNotFound},
	{biz.ErrWrongPassword, apperrors.ErrWrongPassword},
	{biz.ErrInvalidFolder, apperrors.ErrInvalidFolder},
	{biz.ErrFileTooLarge, apperrors.ErrFileTooLarge},
	{biz.ErrStorageFailure, apperrors.ErrStorageFailure},
}

// errorCode 将 biz 错误映射为业务错误码
func errorCode(err error) int {
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return apperrors.ErrInternalServer
}

// publicDetail 只有输入错误和超限错误把具体原因返回给客户端
func publicDetail(err error, code int) string {
	switch code {
	case apperrors.ErrInvalidInput:
		return strings.TrimPrefix(err.Error(), biz.ErrInvalidInput.Error()+": ")
	case apperrors.ErrFileTooLarge:
		return strings.TrimPrefix(err.Error(), biz.ErrFileTooLarge.Error()+": ")
	}
	return ""
}

// fail 记录日志并输出错误响应
func (s *ContainerService) fail(c *gin.Context, err error, msg string) {
	code := errorCode(err)
	fields := []zap.Field{logger.RequestID(c.Request.Context()), zap.Error(err)}

	switch {
	case errors.Is(err, context.Canceled):
		s.logger.Info(msg+": client went away", fields...)
	case apperrors.IsServerError(code):
		s.logger.Error(msg, fields...)
	default:
		s.logger.Debug(msg, fields...)
	}

	response.HandleError(c, apperrors.Wrap(err, code, publicDetail(err, code)))
}
