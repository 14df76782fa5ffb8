package data

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/lk2023060901/file-container/internal/container/biz"
	pkgminio "github.com/lk2023060901/file-container/internal/pkg/minio"
	"github.com/lk2023060901/file-container/internal/pkg/workerpool"
	"go.uber.org/zap"
)

// 分片大小，限制未知长度上传时的内存占用
const minioPartSize = 16 << 20

// ObjectStorage 是 MinIOBlobStore 依赖的对象存储操作
type ObjectStorage interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts pkgminio.PutObjectOptions) (pkgminio.ObjectInfo, error)
	OpenObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, pkgminio.ObjectInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string) (pkgminio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string) error
	ListObjects(ctx context.Context, bucketName, prefix string, recursive bool) (<-chan pkgminio.ObjectInfo, <-chan error)
}

// MinIOBlobStore 实现 biz.BlobStore，对象 key 为 {folder}/{storedName}
type MinIOBlobStore struct {
	client ObjectStorage
	bucket string
	pool   *workerpool.Pool
	log    *zap.Logger
}

// NewMinIOBlobStore 创建 MinIO 文件存储；pool 为 nil 时删除操作顺序执行
func NewMinIOBlobStore(client ObjectStorage, bucket string, pool *workerpool.Pool, log *zap.Logger) *MinIOBlobStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &MinIOBlobStore{
		client: client,
		bucket: bucket,
		pool:   pool,
		log:    log.Named("minio_blobs"),
	}
}

var _ biz.BlobStore = (*MinIOBlobStore)(nil)

// CreateDir 对象存储没有目录，前缀随第一个对象出现
func (s *MinIOBlobStore) CreateDir(ctx context.Context, folder string) error {
	_, err := folderPrefix(folder)
	return err
}

// RemoveDir 并发删除前缀下的全部对象
func (s *MinIOBlobStore) RemoveDir(ctx context.Context, folder string) error {
	prefix, err := folderPrefix(folder)
	if err != nil {
		return err
	}

	objCh, errCh := s.client.ListObjects(ctx, s.bucket, prefix, true)

	g := s.pool.NewGroup()
	count := 0
	for obj := range objCh {
		key := obj.Key
		count++
		g.Go(func() error {
			return s.client.RemoveObject(ctx, s.bucket, key)
		})
	}

	listErr := <-errCh
	removeErr := g.Wait()
	if listErr != nil {
		return fmt.Errorf("failed to list %s: %w", prefix, listErr)
	}
	if removeErr != nil {
		return fmt.Errorf("failed to remove objects under %s: %w", prefix, removeErr)
	}

	s.log.Debug("folder objects removed", zap.String("prefix", prefix), zap.Int("count", count))
	return nil
}

// Put 上传对象；同名对象已存在时返回错误
func (s *MinIOBlobStore) Put(ctx context.Context, folder, storedName string, r io.Reader, size int64, contentType string) (*biz.BlobInfo, error) {
	key, err := objectKey(folder, storedName)
	if err != nil {
		return nil, err
	}

	// 先 Stat 再 Put 之间存在竞争窗口，并发写同一 key 时后写者覆盖；
	// 存储名在进程内唯一，冲突时上层换名重试，不会删除已有对象
	if _, err := s.client.StatObject(ctx, s.bucket, key); err == nil {
		return nil, fmt.Errorf("%w: %s", biz.ErrBlobExists, key)
	} else if !pkgminio.IsNotFound(err) {
		return nil, err
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, pkgminio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    minioPartSize,
	})
	if err != nil {
		return nil, err
	}

	return &biz.BlobInfo{Path: s.bucket + "/" + key, Size: info.Size}, nil
}

// Open 打开对象；对象不存在时返回 biz.ErrBlobNotFound
func (s *MinIOBlobStore) Open(ctx context.Context, folder, storedName string) (io.ReadCloser, *biz.BlobInfo, error) {
	key, err := objectKey(folder, storedName)
	if err != nil {
		return nil, nil, err
	}

	rc, info, err := s.client.OpenObject(ctx, s.bucket, key)
	if err != nil {
		if pkgminio.IsNotFound(err) {
			return nil, nil, biz.ErrBlobNotFound
		}
		return nil, nil, err
	}
	return rc, &biz.BlobInfo{Path: s.bucket + "/" + key, Size: info.Size}, nil
}

// Remove 删除对象，S3 对不存在的 key 也返回成功
func (s *MinIOBlobStore) Remove(ctx context.Context, folder, storedName string) error {
	key, err := objectKey(folder, storedName)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key); err != nil && !pkgminio.IsNotFound(err) {
		return err
	}
	return nil
}

func folderPrefix(folder string) (string, error) {
	if folder == "" || strings.Contains(folder, "/") || folder == "." || folder == ".." {
		return "", fmt.Errorf("%w: %q", errInvalidPath, folder)
	}
	return folder + "/", nil
}

func objectKey(folder, storedName string) (string, error) {
	prefix, err := folderPrefix(folder)
	if err != nil {
		return "", err
	}
	if storedName == "" || storedName != path.Base(storedName) || storedName == "." || storedName == ".." {
		return "", fmt.Errorf("%w: %q", errInvalidPath, storedName)
	}
	return prefix + storedName, nil
}
