package service

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/file-container/internal/container/biz"
	"github.com/lk2023060901/file-container/internal/pkg/response"
)

// ListFolders GET /api/folders
func (s *ContainerService) ListFolders(c *gin.Context) {
	response.OK(c, s.folders.ListFolders(c.Request.Context()))
}

// CreateFolder POST /api/folder
func (s *ContainerService) CreateFolder(c *gin.Context) {
	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: invalid request body", biz.ErrInvalidInput), "failed to bind create folder request")
		return
	}

	folder, err := s.folders.CreateFolder(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		s.fail(c, err, "failed to create folder")
		return
	}

	response.Success(c, gin.H{"folder": folder.Name})
}
