package service

import (
	"time"

	"github.com/lk2023060901/file-container/internal/container/biz"
)

// CreateFolderRequest POST /api/folder
type CreateFolderRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// DeleteRequest DELETE /api/delete
type DeleteRequest struct {
	Type     string `json:"type"` // folder | file
	Name     string `json:"name"`
	Folder   string `json:"folder"`
	Password string `json:"password"`
	ID       string `json:"id"` // optional, selects one of several same-named files
}

// FileResponse 文件记录，字段名与 files.json 保持一致（不含服务器路径）
type FileResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Filename   string    `json:"filename"`
	Folder     string    `json:"folder"`
	Size       int64     `json:"size"`
	Mimetype   string    `json:"mimetype"`
	UploadDate time.Time `json:"uploadDate"`
}

// RejectedFile 未被接收的上传文件
type RejectedFile struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

func toFileResponse(f *biz.File) FileResponse {
	return FileResponse{
		ID:         f.ID,
		Name:       f.Name,
		Filename:   f.StoredName,
		Folder:     f.Folder,
		Size:       f.Size,
		Mimetype:   f.MimeType,
		UploadDate: f.UploadedAt,
	}
}

func toFileResponses(files []*biz.File) []FileResponse {
	out := make([]FileResponse, len(files))
	for i, f := range files {
		out[i] = toFileResponse(f)
	}
	return out
}
