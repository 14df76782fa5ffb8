package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/lk2023060901/file-container/internal/container/biz"
)

var errInvalidPath = errors.New("path escapes uploads root")

// LocalBlobStore 本地磁盘存储，每个文件夹对应 root 下的一个目录
type LocalBlobStore struct {
	root string
}

func NewLocalBlobStore(root string) (*LocalBlobStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve uploads directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &LocalBlobStore{root: abs}, nil
}

var _ biz.BlobStore = (*LocalBlobStore)(nil)

// Root 上传目录的绝对路径
func (s *LocalBlobStore) Root() string {
	return s.root
}

func (s *LocalBlobStore) CreateDir(ctx context.Context, folder string) error {
	dir, err := s.resolvePath(folder)
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *LocalBlobStore) RemoveDir(ctx context.Context, folder string) error {
	dir, err := s.resolvePath(folder)
	if err != nil {
		return err
	}
	if dir == s.root {
		return fmt.Errorf("%w: refusing to remove uploads root", errInvalidPath)
	}
	return os.RemoveAll(dir)
}

func (s *LocalBlobStore) Put(ctx context.Context, folder, storedName string, r io.Reader, size int64, contentType string) (*biz.BlobInfo, error) {
	path, err := s.resolvePath(folder, storedName)
	if err != nil {
		return nil, err
	}

	// O_EXCL 保证不会覆盖已有文件。文件夹目录不重建：
	// 与 DeleteFolder 并发时目录可能刚被删除
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s/%s", biz.ErrBlobExists, folder, storedName)
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", biz.ErrInvalidFolder, folder)
		}
		return nil, err
	}

	written, err := copyWithContext(ctx, dst, r)
	if err == nil {
		err = dst.Close()
	} else {
		_ = dst.Close()
	}
	if err != nil {
		// 只删除本次创建的文件
		_ = os.Remove(path)
		return nil, err
	}

	return &biz.BlobInfo{Path: path, Size: written}, nil
}

func (s *LocalBlobStore) Open(ctx context.Context, folder, storedName string) (io.ReadCloser, *biz.BlobInfo, error) {
	path, err := s.resolvePath(folder, storedName)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, biz.ErrBlobNotFound
		}
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, nil, biz.ErrBlobNotFound
	}

	return f, &biz.BlobInfo{Path: path, Size: info.Size()}, nil
}

func (s *LocalBlobStore) Remove(ctx context.Context, folder, storedName string) error {
	path, err := s.resolvePath(folder, storedName)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// resolvePath 把 elems 拼到 root 下，拒绝任何逃逸出 root 的路径
func (s *LocalBlobStore) resolvePath(elems ...string) (string, error) {
	for _, e := range elems {
		if e == "" {
			return "", fmt.Errorf("%w: empty path element", errInvalidPath)
		}
	}

	path := filepath.Join(append([]string{s.root}, elems...)...)
	if path != s.root && !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", errInvalidPath, filepath.Join(elems...))
	}
	return path, nil
}

// copyWithContext 分块复制，请求取消后停止写入
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var written int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			nw, writeErr := dst.Write(buf[:n])
			written += int64(nw)
			if writeErr != nil {
				return written, writeErr
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
