package biz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// File 上传文件的元数据记录
type File struct {
	ID         string
	Name       string // 上传时的显示名
	StoredName string // 文件夹目录内唯一的存储名
	Folder     string
	Size       int64
	MimeType   string
	UploadedAt time.Time
	Path       string
}

// FileUseCase 文件用例，管理文件记录及其内容
type FileUseCase struct {
	store   MetadataStore
	blobs   BlobStore
	folders *FolderUseCase
	log     *zap.Logger
}

// NewFileUseCase 创建文件用例
func NewFileUseCase(store MetadataStore, blobs BlobStore, folders *FolderUseCase, log *zap.Logger) *FileUseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileUseCase{
		store:   store,
		blobs:   blobs,
		folders: folders,
		log:     log.Named("file"),
	}
}

// ListFiles 按上传顺序返回文件夹内的记录，folder 为空时返回全部
func (uc *FileUseCase) ListFiles(ctx context.Context, folder string) []*File {
	files := uc.store.LoadFiles(ctx)
	if folder == "" {
		return files
	}

	result := make([]*File, 0)
	for _, f := range files {
		if f.Folder == folder {
			result = append(result, f)
		}
	}
	return result
}

// RegisterFiles 一次保存追加多条记录，每条记录的文件夹都必须存在
func (uc *FileUseCase) RegisterFiles(ctx context.Context, files ...*File) error {
	if len(files) == 0 {
		return nil
	}

	return uc.store.UpdateFolders(ctx, func(folders map[string]*Folder) error {
		for _, f := range files {
			if _, ok := folders[f.Folder]; !ok {
				return fmt.Errorf("%w: %s", ErrInvalidFolder, f.Folder)
			}
		}

		err := uc.store.UpdateFiles(ctx, func(existing []*File) ([]*File, error) {
			return append(existing, files...), nil
		})
		if err != nil {
			return err
		}
		// 文件夹只读不写
		return ErrNoChange
	})
}

// FindFile 返回文件夹内第一个显示名匹配的记录
func (uc *FileUseCase) FindFile(ctx context.Context, folder, name string) (*File, error) {
	return uc.find(uc.store.LoadFiles(ctx), folder, name, "")
}

// FindFiles 返回文件夹内所有同显示名的记录
func (uc *FileUseCase) FindFiles(ctx context.Context, folder, name string) []*File {
	var matches []*File
	for _, f := range uc.store.LoadFiles(ctx) {
		if f.Folder == folder && f.Name == name {
			matches = append(matches, f)
		}
	}
	return matches
}

// FindFileByID 显示名重复时按 ID 精确定位
func (uc *FileUseCase) FindFileByID(ctx context.Context, folder, id string) (*File, error) {
	for _, f := range uc.store.LoadFiles(ctx) {
		if f.Folder == folder && f.ID == id {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: id %s", ErrFileNotFound, id)
}

// find 给定 id 时按 id 匹配，否则取第一个显示名匹配的记录
func (uc *FileUseCase) find(files []*File, folder, name, id string) (*File, error) {
	idx := indexOf(files, folder, name, id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrFileNotFound, folder, name)
	}
	return files[idx], nil
}

func indexOf(files []*File, folder, name, id string) int {
	for i, f := range files {
		if f.Folder != folder {
			continue
		}
		if id != "" {
			if f.ID == id {
				return i
			}
			continue
		}
		if f.Name == name {
			return i
		}
	}
	return -1
}

// OpenFile 定位记录并打开内容，内容丢失时按文件不存在处理
func (uc *FileUseCase) OpenFile(ctx context.Context, folder, name, id string) (*File, io.ReadCloser, *BlobInfo, error) {
	if folder == "" || (name == "" && id == "") {
		return nil, nil, nil, fmt.Errorf("%w: folder and file are required", ErrInvalidInput)
	}

	file, err := uc.find(uc.store.LoadFiles(ctx), folder, name, id)
	if err != nil {
		return nil, nil, nil, err
	}

	rc, info, err := uc.blobs.Open(ctx, file.Folder, file.StoredName)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			uc.log.Warn("file record without data",
				zap.String("folder", file.Folder), zap.String("stored_name", file.StoredName))
			return nil, nil, nil, fmt.Errorf("%w: %s/%s", ErrFileNotFound, folder, file.Name)
		}
		return nil, nil, nil, fmt.Errorf("%w: open file: %v", ErrStorageFailure, err)
	}
	return file, rc, info, nil
}

// DeleteFile 校验文件夹密码后删除单个文件，id 为空时删除第一个显示名匹配的记录
func (uc *FileUseCase) DeleteFile(ctx context.Context, folder, name, id, password string) (*File, error) {
	if folder == "" || (name == "" && id == "") || password == "" {
		return nil, fmt.Errorf("%w: folder, name and password are required", ErrInvalidInput)
	}

	if _, err := uc.folders.Authorize(ctx, folder, password); err != nil {
		return nil, err
	}

	var deleted *File
	err := uc.store.UpdateFiles(ctx, func(files []*File) ([]*File, error) {
		idx := indexOf(files, folder, name, id)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s/%s", ErrFileNotFound, folder, name)
		}
		deleted = files[idx]

		// 以元数据为准，内容缺失不影响删除
		if err := uc.blobs.Remove(ctx, deleted.Folder, deleted.StoredName); err != nil {
			return nil, fmt.Errorf("%w: remove file: %v", ErrStorageFailure, err)
		}

		kept := make([]*File, 0, len(files)-1)
		kept = append(kept, files[:idx]...)
		return append(kept, files[idx+1:]...), nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info("file deleted",
		zap.String("folder", folder),
		zap.String("name", deleted.Name),
		zap.String("id", deleted.ID))
	return deleted, nil
}
