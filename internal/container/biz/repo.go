package biz

import (
	"context"
	"io"
)

// MetadataStore 以整份文档的形式持久化文件夹映射和文件列表
//
// Load* 不返回错误：文档缺失或无法读取时视为空。
// Update* 把 load、fn、save 作为一个临界区执行。文件夹和文件各有独立的临界区，
// 同时持有两者时必须先取文件夹。fn 返回错误时放弃保存并原样返回该错误，
// ErrNoChange 除外（被吞掉）。
type MetadataStore interface {
	LoadFolders(ctx context.Context) map[string]*Folder
	SaveFolders(ctx context.Context, folders map[string]*Folder) error
	LoadFiles(ctx context.Context) []*File
	SaveFiles(ctx context.Context, files []*File) error

	UpdateFolders(ctx context.Context, fn func(folders map[string]*Folder) error) error
	UpdateFiles(ctx context.Context, fn func(files []*File) ([]*File, error)) error
}

// BlobInfo 已存储内容的描述
type BlobInfo struct {
	Path string
	Size int64
}

// BlobStore 保存文件内容，每个文件夹对应一个目录（或 key 前缀）
type BlobStore interface {
	CreateDir(ctx context.Context, folder string) error
	// RemoveDir 删除文件夹及其全部内容，不存在不算错误
	RemoveDir(ctx context.Context, folder string) error
	// Put 写入新 blob，size 未知时为 -1。
	// storedName 已存在时在读取 r 之前返回 ErrBlobExists，已有内容保持不变；
	// 文件夹不存在时返回 ErrInvalidFolder。其他失败由实现自行清理部分写入。
	Put(ctx context.Context, folder, storedName string, r io.Reader, size int64, contentType string) (*BlobInfo, error)
	// Open 内容缺失时返回 ErrBlobNotFound
	Open(ctx context.Context, folder, storedName string) (io.ReadCloser, *BlobInfo, error)
	// Remove 删除单个 blob，不存在不算错误
	Remove(ctx context.Context, folder, storedName string) error
}

// PasswordHasher 文件夹密码哈希，密码不匹配时 Compare 返回 (false, nil)
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
}
