package biz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lk2023060901/file-container/internal/pkg/logger"
	"github.com/lk2023060901/file-container/internal/pkg/workerpool"
	"go.uber.org/zap"
)

const (
	// DefaultMaxFileSize 未配置时的单文件大小上限
	DefaultMaxFileSize int64 = 100 << 20

	sniffLen         = 512
	maxStoredBaseLen = 200
	maxStoreAttempts = 4
)

// UploadUseCase 上传用例，只接收已存在文件夹的文件
type UploadUseCase struct {
	folders     *FolderUseCase
	files       *FileUseCase
	blobs       BlobStore
	pool        *workerpool.Pool
	maxFileSize int64
	namer       *storedNamer
	log         *zap.Logger
}

// NewUploadUseCase 创建上传用例
func NewUploadUseCase(folders *FolderUseCase, files *FileUseCase, blobs BlobStore, pool *workerpool.Pool, maxFileSize int64, log *zap.Logger) *UploadUseCase {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &UploadUseCase{
		folders:     folders,
		files:       files,
		blobs:       blobs,
		pool:        pool,
		maxFileSize: maxFileSize,
		namer:       newStoredNamer(time.Now),
		log:         log.Named("upload"),
	}
}

// MaxFileSize 单文件大小上限（字节）
func (uc *UploadUseCase) MaxFileSize() int64 {
	return uc.maxFileSize
}

// Begin 校验目标文件夹，成功之前不写入任何内容
func (uc *UploadUseCase) Begin(ctx context.Context, rawFolder string) (*UploadBatch, error) {
	name := SanitizeName(rawFolder)
	if name == "" || !uc.folders.Exists(ctx, name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFolder, rawFolder)
	}
	return &UploadBatch{uc: uc, folder: name}, nil
}

// Rejection 批次中未被存储的文件
type Rejection struct {
	Name string
	Err  error
}

// UploadResult 已提交批次的结果
type UploadResult struct {
	Folder   string
	Files    []*File
	Rejected []Rejection
}

// UploadBatch 收集一次请求的文件，Commit 时一次保存全部记录
type UploadBatch struct {
	uc     *UploadUseCase
	folder string

	mu       sync.Mutex
	accepted []*File
	rejected []Rejection
	closed   bool
}

// Folder 清洗后的目标文件夹
func (b *UploadBatch) Folder() string {
	return b.folder
}

// Add 存储单个文件，contentType 为空时根据内容探测。
// 被拒绝的文件不留痕迹，也不影响整个批次
func (b *UploadBatch) Add(ctx context.Context, fileName, contentType string, r io.Reader) (*File, error) {
	uc := b.uc
	name := SanitizeFileName(fileName)

	file, err := b.store(ctx, name, contentType, r)
	if err != nil {
		uc.log.Info("file rejected",
			logger.RequestID(ctx),
			zap.String("folder", b.folder),
			zap.String("name", name),
			zap.Error(err))

		b.mu.Lock()
		b.rejected = append(b.rejected, Rejection{Name: name, Err: err})
		b.mu.Unlock()
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		// Commit 或 Abort 已执行，该文件无法登记
		b.uc.removeBlobs(ctx, []*File{file})
		return nil, fmt.Errorf("%w: upload batch already closed", ErrInvalidInput)
	}
	b.accepted = append(b.accepted, file)
	return file, nil
}

func (b *UploadBatch) store(ctx context.Context, name, contentType string, r io.Reader) (*File, error) {
	uc := b.uc

	if contentType == "" {
		head := make([]byte, sniffLen)
		n, err := io.ReadFull(r, head)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: read upload: %v", ErrStorageFailure, err)
		}
		head = head[:n]
		contentType = http.DetectContentType(head)
		r = io.MultiReader(bytes.NewReader(head), r)
	}

	limited := &sizeLimitReader{r: r, limit: uc.maxFileSize}

	var (
		storedName string
		info       *BlobInfo
		err        error
	)
	for attempt := 0; attempt < maxStoreAttempts; attempt++ {
		storedName = uc.namer.next(name, attempt > 0)
		info, err = uc.blobs.Put(ctx, b.folder, storedName, limited, -1, contentType)
		if !errors.Is(err, ErrBlobExists) {
			break
		}
		// 同名 blob 属于其他记录，只换名重试，绝不删除
		uc.log.Warn("stored name already taken",
			logger.RequestID(ctx),
			zap.String("folder", b.folder),
			zap.String("stored_name", storedName),
			zap.Int("attempt", attempt+1))
	}

	if err == nil && limited.exceeded() {
		// Put 吞掉了读错误，清理本次写入的对象
		if rmErr := uc.blobs.Remove(ctx, b.folder, storedName); rmErr != nil {
			uc.log.Warn("failed to clean up rejected upload",
				zap.String("folder", b.folder),
				zap.String("stored_name", storedName),
				zap.Error(rmErr))
		}
	}

	if limited.exceeded() {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, name, uc.maxFileSize)
	}
	// Put 失败时由 BlobStore 自行清理部分写入
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case errors.Is(err, ErrInvalidFolder):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: store %s: %v", ErrStorageFailure, name, err)
		}
	}

	return &File{
		ID:         uuid.NewString(),
		Name:       name,
		StoredName: storedName,
		Folder:     b.folder,
		Size:       info.Size,
		MimeType:   contentType,
		UploadedAt: time.Now().UTC(),
		Path:       info.Path,
	}, nil
}

// Commit 一次保存登记所有已接收文件，没有接收任何文件时返回第一个拒绝原因
func (b *UploadBatch) Commit(ctx context.Context) (*UploadResult, error) {
	b.mu.Lock()
	b.closed = true
	accepted := b.accepted
	rejected := b.rejected
	b.mu.Unlock()

	result := &UploadResult{Folder: b.folder, Files: accepted, Rejected: rejected}

	if len(accepted) == 0 {
		if len(rejected) > 0 {
			return result, rejected[0].Err
		}
		return nil, fmt.Errorf("%w: no files uploaded", ErrInvalidInput)
	}

	if err := b.uc.files.RegisterFiles(ctx, accepted...); err != nil {
		b.uc.removeBlobs(ctx, accepted)
		return nil, err
	}

	b.uc.log.Info("files uploaded",
		logger.RequestID(ctx),
		zap.String("folder", b.folder),
		zap.Int("accepted", len(accepted)),
		zap.Int("rejected", len(rejected)))
	return result, nil
}

// Abort 丢弃所有已接收但未登记的文件
func (b *UploadBatch) Abort(ctx context.Context) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	accepted := b.accepted
	b.accepted = nil
	b.mu.Unlock()

	b.uc.removeBlobs(ctx, accepted)
}

func (uc *UploadUseCase) removeBlobs(ctx context.Context, files []*File) {
	if len(files) == 0 {
		return
	}

	// 请求可能已取消，清理仍需执行
	ctx = context.WithoutCancel(ctx)

	g := uc.pool.NewGroup()
	for _, f := range files {
		g.Go(func() error {
			if err := uc.blobs.Remove(ctx, f.Folder, f.StoredName); err != nil {
				uc.log.Warn("failed to remove uploaded file",
					zap.String("folder", f.Folder),
					zap.String("stored_name", f.StoredName),
					zap.Error(err))
				return err
			}
			return nil
		})
	}
	_ = g.Wait()
}

// storedNamer 生成 "{base}_{millis}{ext}" 存储名，毫秒部分在进程内严格递增
type storedNamer struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func newStoredNamer(now func() time.Time) *storedNamer {
	return &storedNamer{now: now}
}

func (n *storedNamer) next(fileName string, salted bool) string {
	ext := path.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)
	if base == "" {
		// 如 ".env" 这样的点文件
		base, ext = fileName, ""
	}
	if len(ext) > 32 {
		base, ext = fileName, ""
	}
	base = truncateUTF8(base, maxStoredBaseLen)

	n.mu.Lock()
	ms := n.now().UnixMilli()
	if ms <= n.last {
		ms = n.last + 1
	}
	n.last = ms
	n.mu.Unlock()

	if salted {
		// 其他进程或回拨的时钟可能占用了同一毫秒
		return fmt.Sprintf("%s_%d-%s%s", base, ms, uuid.NewString()[:8], ext)
	}
	return fmt.Sprintf("%s_%d%s", base, ms, ext)
}

func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// sizeLimitReader 读取超过 limit 字节后返回 ErrFileTooLarge
type sizeLimitReader struct {
	r     io.Reader
	limit int64
	n     int64
}

func (s *sizeLimitReader) Read(p []byte) (int, error) {
	if s.exceeded() {
		return 0, ErrFileTooLarge
	}
	if rem := s.limit + 1 - s.n; int64(len(p)) > rem {
		p = p[:rem]
	}
	n, err := s.r.Read(p)
	s.n += int64(n)
	if s.exceeded() {
		return n, ErrFileTooLarge
	}
	return n, err
}

func (s *sizeLimitReader) exceeded() bool {
	return s.n > s.limit
}
