package data

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/lk2023060901/file-container/internal/container/biz"
	"go.uber.org/zap"
)

const (
	foldersDoc = "folders.json"
	filesDoc   = "files.json"
)

// folderPO folders.json 中的一项
type folderPO struct {
	Name      string    `json:"name"`
	Password  string    `json:"password"` // bcrypt 哈希
	CreatedAt time.Time `json:"createdAt"`
}

// filePO files.json 中的一项
type filePO struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Filename   string    `json:"filename"`
	Folder     string    `json:"folder"`
	Size       int64     `json:"size"`
	Mimetype   string    `json:"mimetype"`
	UploadDate time.Time `json:"uploadDate"`
	Path       string    `json:"path"`
}

// JSONStore 用 dataDir 下的两个 JSON 文档实现 biz.MetadataStore
type JSONStore struct {
	dir    string
	locker Locker
	log    *zap.Logger
}

func NewJSONStore(dataDir string, locker Locker, log *zap.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &JSONStore{dir: dataDir, locker: locker, log: log.Named("metadata")}, nil
}

var _ biz.MetadataStore = (*JSONStore)(nil)

func (s *JSONStore) LoadFolders(ctx context.Context) map[string]*biz.Folder {
	folders, err := s.readFolders()
	if err != nil {
		s.log.Error("failed to load folders, serving empty list", zap.Error(err))
		return make(map[string]*biz.Folder)
	}
	return folders
}

func (s *JSONStore) SaveFolders(ctx context.Context, folders map[string]*biz.Folder) error {
	pos := make(map[string]folderPO, len(folders))
	for name, f := range folders {
		pos[name] = folderPO{Name: f.Name, Password: f.PasswordHash, CreatedAt: f.CreatedAt}
	}
	return s.writeDoc(foldersDoc, pos)
}

func (s *JSONStore) LoadFiles(ctx context.Context) []*biz.File {
	files, err := s.readFiles()
	if err != nil {
		s.log.Error("failed to load files, serving empty list", zap.Error(err))
		return []*biz.File{}
	}
	return files
}

func (s *JSONStore) SaveFiles(ctx context.Context, files []*biz.File) error {
	pos := make([]filePO, len(files))
	for i, f := range files {
		pos[i] = filePO{
			ID:         f.ID,
			Name:       f.Name,
			Filename:   f.StoredName,
			Folder:     f.Folder,
			Size:       f.Size,
			Mimetype:   f.MimeType,
			UploadDate: f.UploadedAt,
			Path:       f.Path,
		}
	}
	return s.writeDoc(filesDoc, pos)
}

// UpdateFolders 严格加载：文档损坏时更新失败，而不是用空文档覆盖
func (s *JSONStore) UpdateFolders(ctx context.Context, fn func(map[string]*biz.Folder) error) error {
	unlock, err := s.lock(ctx, "folders")
	if err != nil {
		return err
	}
	defer unlock()

	folders, err := s.readFolders()
	if err != nil {
		return fmt.Errorf("%w: %v", biz.ErrStorageFailure, err)
	}
	if err := fn(folders); err != nil {
		if errors.Is(err, biz.ErrNoChange) {
			return nil
		}
		return err
	}
	return s.SaveFolders(ctx, folders)
}

func (s *JSONStore) UpdateFiles(ctx context.Context, fn func([]*biz.File) ([]*biz.File, error)) error {
	unlock, err := s.lock(ctx, "files")
	if err != nil {
		return err
	}
	defer unlock()

	files, err := s.readFiles()
	if err != nil {
		return fmt.Errorf("%w: %v", biz.ErrStorageFailure, err)
	}
	files, err = fn(files)
	if err != nil {
		if errors.Is(err, biz.ErrNoChange) {
			return nil
		}
		return err
	}
	return s.SaveFiles(ctx, files)
}

func (s *JSONStore) lock(ctx context.Context, name string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire %s lock: %w", biz.ErrStorageFailure, name, err)
	}
	return unlock, nil
}

func (s *JSONStore) readFolders() (map[string]*biz.Folder, error) {
	var pos map[string]folderPO
	if err := s.readDoc(foldersDoc, &pos); err != nil {
		return nil, err
	}

	folders := make(map[string]*biz.Folder, len(pos))
	for key, po := range pos {
		name := po.Name
		if name == "" {
			name = key
		}
		folders[key] = &biz.Folder{Name: name, PasswordHash: po.Password, CreatedAt: po.CreatedAt}
	}
	return folders, nil
}

func (s *JSONStore) readFiles() ([]*biz.File, error) {
	var pos []filePO
	if err := s.readDoc(filesDoc, &pos); err != nil {
		return nil, err
	}

	files := make([]*biz.File, len(pos))
	for i, po := range pos {
		files[i] = &biz.File{
			ID:         po.ID,
			Name:       po.Name,
			StoredName: po.Filename,
			Folder:     po.Folder,
			Size:       po.Size,
			MimeType:   po.Mimetype,
			UploadedAt: po.UploadDate,
			Path:       po.Path,
		}
	}
	return files, nil
}

// readDoc 文档尚不存在时不改动 v
func (s *JSONStore) readDoc(name string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (s *JSONStore) writeDoc(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", biz.ErrStorageFailure, name, err)
	}
	if err := syncedWriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		s.log.Error("failed to save metadata", zap.String("document", name), zap.Error(err))
		return fmt.Errorf("%w: write %s: %v", biz.ErrStorageFailure, name, err)
	}
	return nil
}

// syncedWriteFile 原子替换 path，读者只会看到旧文档或新文档，不会看到半写状态
func syncedWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	success = true
	return nil
}
