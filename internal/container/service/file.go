package service

import (
	"fmt"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/file-container/internal/container/biz"
	"github.com/lk2023060901/file-container/internal/pkg/logger"
	"github.com/lk2023060901/file-container/internal/pkg/response"
	"go.uber.org/zap"
)

// ListFiles GET /api/files?folder=
// Without a folder only the folder names are returned, with one only its files.
func (s *ContainerService) ListFiles(c *gin.Context) {
	ctx := c.Request.Context()
	folder := c.Query("folder")

	folders := []string{}
	files := []FileResponse{}
	if folder == "" {
		folders = s.folders.ListFolders(ctx)
	} else {
		files = toFileResponses(s.files.ListFiles(ctx, folder))
	}

	response.OK(c, gin.H{"folders": folders, "files": files})
}

// Download GET /api/download?folder=&file=[&id=]
func (s *ContainerService) Download(c *gin.Context) {
	ctx := c.Request.Context()
	folder := c.Query("folder")
	name := c.Query("file")
	id := c.Query("id")

	if folder == "" || (name == "" && id == "") {
		s.fail(c, fmt.Errorf("%w: folder and file are required", biz.ErrInvalidInput), "invalid download request")
		return
	}

	file, rc, info, err := s.files.OpenFile(ctx, folder, name, id)
	if err != nil {
		s.fail(c, err, "failed to open file")
		return
	}
	defer rc.Close()

	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": file.Name})
	if disposition == "" {
		disposition = "attachment"
	}

	s.logger.Debug("serving file",
		logger.RequestID(ctx),
		zap.String("folder", file.Folder),
		zap.String("stored_name", file.StoredName),
		zap.Int64("size", info.Size))

	c.DataFromReader(http.StatusOK, info.Size, contentType, rc, map[string]string{
		"Content-Disposition":    disposition,
		"X-Content-Type-Options": "nosniff",
		"X-File-Id":              file.ID,
	})
}

// Delete DELETE /api/delete
func (s *ContainerService) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: invalid request body", biz.ErrInvalidInput), "failed to bind delete request")
		return
	}
	if req.Type == "" || (req.Name == "" && req.ID == "") || req.Password == "" {
		s.fail(c, fmt.Errorf("%w: type, name and password are required", biz.ErrInvalidInput), "incomplete delete request")
		return
	}

	switch req.Type {
	case "folder":
		if err := s.folders.DeleteFolder(ctx, req.Name, req.Password); err != nil {
			s.fail(c, err, "failed to delete folder")
			return
		}
		response.Success(c, gin.H{"message": "Folder deleted successfully"})

	case "file":
		if req.Folder == "" {
			s.fail(c, fmt.Errorf("%w: folder is required to delete a file", biz.ErrInvalidInput), "incomplete delete request")
			return
		}
		if _, err := s.files.DeleteFile(ctx, req.Folder, req.Name, req.ID, req.Password); err != nil {
			s.fail(c, err, "failed to delete file")
			return
		}
		response.Success(c, gin.H{"message": "File deleted successfully"})

	default:
		s.fail(c, fmt.Errorf("%w: invalid type %q", biz.ErrInvalidInput, req.Type), "invalid delete type")
	}
}
