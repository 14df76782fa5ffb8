package biz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MaxPasswordBytes bcrypt 不截断时能接受的最长密码
const MaxPasswordBytes = 72

// Folder 受密码保护的文件夹，对应一个目录
type Folder struct {
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// FolderUseCase 文件夹用例，负责文件夹记录以及前置的密码校验
type FolderUseCase struct {
	store  MetadataStore
	blobs  BlobStore
	hasher PasswordHasher
	log    *zap.Logger
}

// NewFolderUseCase 创建文件夹用例
func NewFolderUseCase(store MetadataStore, blobs BlobStore, hasher PasswordHasher, log *zap.Logger) *FolderUseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &FolderUseCase{
		store:  store,
		blobs:  blobs,
		hasher: hasher,
		log:    log.Named("folder"),
	}
}

// ListFolders 按创建时间升序返回文件夹名
func (uc *FolderUseCase) ListFolders(ctx context.Context) []string {
	folders := uc.store.LoadFolders(ctx)

	records := make([]*Folder, 0, len(folders))
	for _, f := range folders {
		records = append(records, f)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].Name < records[j].Name
	})

	names := make([]string, len(records))
	for i, f := range records {
		names[i] = f.Name
	}
	return names
}

// GetFolder 按清洗后的名称获取文件夹
func (uc *FolderUseCase) GetFolder(ctx context.Context, name string) (*Folder, error) {
	folder, ok := uc.store.LoadFolders(ctx)[name]
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, name)
	}
	return folder, nil
}

// Exists 判断文件夹记录是否存在
func (uc *FolderUseCase) Exists(ctx context.Context, name string) bool {
	_, err := uc.GetFolder(ctx, name)
	return err == nil
}

// CreateFolder 创建文件夹目录并写入记录，同名文件夹已存在时返回 ErrAlreadyExists
func (uc *FolderUseCase) CreateFolder(ctx context.Context, rawName, password string) (*Folder, error) {
	if strings.TrimSpace(rawName) == "" || password == "" {
		return nil, fmt.Errorf("%w: folder name and password are required", ErrInvalidInput)
	}
	if len(password) > MaxPasswordBytes {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, MaxPasswordBytes)
	}

	name := SanitizeName(rawName)
	if name == "" {
		return nil, fmt.Errorf("%w: invalid folder name", ErrInvalidInput)
	}

	// bcrypt 较慢，放在临界区之外
	hash, err := uc.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	folder := &Folder{
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	err = uc.store.UpdateFolders(ctx, func(folders map[string]*Folder) error {
		if _, ok := folders[name]; ok {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, name)
		}

		// 中断的删除可能遗留同名文件记录，不能带进新文件夹
		err := uc.store.UpdateFiles(ctx, func(files []*File) ([]*File, error) {
			kept := withoutFolder(files, name)
			if len(kept) == len(files) {
				return nil, ErrNoChange
			}
			uc.log.Warn("purged stale file records",
				zap.String("folder", name),
				zap.Int("count", len(files)-len(kept)))
			return kept, nil
		})
		if err != nil {
			return err
		}

		if err := uc.blobs.CreateDir(ctx, name); err != nil {
			return fmt.Errorf("%w: create folder directory: %v", ErrStorageFailure, err)
		}

		folders[name] = folder
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info("folder created", zap.String("folder", name))
	return folder, nil
}

// VerifyPassword 校验密码是否与文件夹哈希匹配
func (uc *FolderUseCase) VerifyPassword(ctx context.Context, name, password string) (bool, error) {
	folder, err := uc.GetFolder(ctx, name)
	if err != nil {
		return false, err
	}
	return uc.compare(folder, password), nil
}

// Authorize 所有破坏性操作之前的密码校验
func (uc *FolderUseCase) Authorize(ctx context.Context, name, password string) (*Folder, error) {
	folder, err := uc.GetFolder(ctx, name)
	if err != nil {
		return nil, err
	}
	if !uc.compare(folder, password) {
		return nil, ErrWrongPassword
	}
	return folder, nil
}

func (uc *FolderUseCase) compare(folder *Folder, password string) bool {
	ok, err := uc.hasher.Compare(folder.PasswordHash, password)
	if err != nil {
		// 哈希格式损坏时视为不匹配
		uc.log.Error("password compare failed", zap.String("folder", folder.Name), zap.Error(err))
		return false
	}
	return ok
}

// DeleteFolder 删除文件夹目录、文件夹记录及其下所有文件记录
func (uc *FolderUseCase) DeleteFolder(ctx context.Context, name, password string) error {
	if name == "" || password == "" {
		return fmt.Errorf("%w: name and password are required", ErrInvalidInput)
	}

	var removed int
	err := uc.store.UpdateFolders(ctx, func(folders map[string]*Folder) error {
		folder, ok := folders[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrFolderNotFound, name)
		}
		if !uc.compare(folder, password) {
			return ErrWrongPassword
		}

		if err := uc.blobs.RemoveDir(ctx, name); err != nil {
			uc.log.Warn("failed to remove folder directory, removing metadata anyway",
				zap.String("folder", name), zap.Error(err))
		}

		// 先删文件记录，失败时文件夹记录仍在，可以重试
		err := uc.store.UpdateFiles(ctx, func(files []*File) ([]*File, error) {
			kept := withoutFolder(files, name)
			removed = len(files) - len(kept)
			if removed == 0 {
				return nil, ErrNoChange
			}
			return kept, nil
		})
		if err != nil {
			return err
		}

		delete(folders, name)
		return nil
	})
	if err != nil {
		return err
	}

	uc.log.Info("folder deleted", zap.String("folder", name), zap.Int("files", removed))
	return nil
}

func withoutFolder(files []*File, folder string) []*File {
	kept := make([]*File, 0, len(files))
	for _, f := range files {
		if f.Folder != folder {
			kept = append(kept, f)
		}
	}
	return kept
}
