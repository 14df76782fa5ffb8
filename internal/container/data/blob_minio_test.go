package data

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/lk2023060901/file-container/internal/container/biz"
	pkgminio "github.com/lk2023060901/file-container/internal/pkg/minio"
	"github.com/lk2023060901/file-container/internal/pkg/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeObjectStorage 内存对象存储
type fakeObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	listErr error
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjectStorage) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, opts pkgminio.PutObjectOptions) (pkgminio.ObjectInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return pkgminio.ObjectInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.types[key] = opts.ContentType
	return pkgminio.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: opts.ContentType}, nil
}

func (f *fakeObjectStorage) StatObject(_ context.Context, bucket, key string) (pkgminio.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return pkgminio.ObjectInfo{}, pkgminio.WrapError("StatObject", pkgminio.ErrObjectNotFound, bucket, key)
	}
	return pkgminio.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: f.types[key]}, nil
}

func (f *fakeObjectStorage) OpenObject(ctx context.Context, bucket, key string) (io.ReadCloser, pkgminio.ObjectInfo, error) {
	info, err := f.StatObject(ctx, bucket, key)
	if err != nil {
		return nil, pkgminio.ObjectInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return io.NopCloser(bytes.NewReader(f.objects[key])), info, nil
}

func (f *fakeObjectStorage) RemoveObject(_ context.Context, _, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStorage) ListObjects(_ context.Context, _, prefix string, _ bool) (<-chan pkgminio.ObjectInfo, <-chan error) {
	f.mu.Lock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	listErr := f.listErr
	f.mu.Unlock()

	objCh := make(chan pkgminio.ObjectInfo, len(keys))
	errCh := make(chan error, 1)
	for _, k := range keys {
		objCh <- pkgminio.ObjectInfo{Key: k}
	}
	if listErr != nil {
		errCh <- listErr
	}
	close(objCh)
	close(errCh)
	return objCh, errCh
}

func (f *fakeObjectStorage) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestMinIOBlobStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	fake := newFakeObjectStorage()
	s := NewMinIOBlobStore(fake, "files", nil, nil)

	require.NoError(t, s.CreateDir(ctx, "team-a"))

	info, err := s.Put(ctx, "team-a", "a_1.txt", strings.NewReader("hello"), -1, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "files/team-a/a_1.txt", info.Path)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, "text/plain", fake.types["team-a/a_1.txt"])

	_, err = s.Put(ctx, "team-a", "a_1.txt", strings.NewReader("again"), -1, "text/plain")
	assert.ErrorIs(t, err, biz.ErrBlobExists)

	rc, openInfo, err := s.Open(ctx, "team-a", "a_1.txt")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, int64(5), openInfo.Size)

	require.NoError(t, s.Remove(ctx, "team-a", "a_1.txt"))
	_, _, err = s.Open(ctx, "team-a", "a_1.txt")
	assert.ErrorIs(t, err, biz.ErrBlobNotFound)
}

func TestMinIOBlobStore_RemoveDir(t *testing.T) {
	ctx := context.Background()
	fake := newFakeObjectStorage()

	pool, err := workerpool.New(&workerpool.Config{Size: 4}, nil)
	require.NoError(t, err)
	defer pool.Shutdown(0)

	s := NewMinIOBlobStore(fake, "files", pool, nil)
	for _, key := range []string{"a_1.txt", "b_2.txt", "c_3.txt"} {
		_, err := s.Put(ctx, "doomed", key, strings.NewReader(key), -1, "")
		require.NoError(t, err)
	}
	_, err = s.Put(ctx, "doomed-not", "keep_4.txt", strings.NewReader("k"), -1, "")
	require.NoError(t, err)

	require.NoError(t, s.RemoveDir(ctx, "doomed"))
	assert.Equal(t, []string{"doomed-not/keep_4.txt"}, fake.keys())

	fake.listErr = errors.New("access denied")
	assert.Error(t, s.RemoveDir(ctx, "doomed-not"))
}

func TestMinIOBlobStore_InvalidKeys(t *testing.T) {
	ctx := context.Background()
	s := NewMinIOBlobStore(newFakeObjectStorage(), "files", nil, nil)

	_, err := s.Put(ctx, "a/b", "x", strings.NewReader("x"), -1, "")
	assert.ErrorIs(t, err, errInvalidPath)
	_, err = s.Put(ctx, "a", "../x", strings.NewReader("x"), -1, "")
	assert.ErrorIs(t, err, errInvalidPath)
	assert.ErrorIs(t, s.CreateDir(ctx, ""), errInvalidPath)
	assert.ErrorIs(t, s.RemoveDir(ctx, ".."), errInvalidPath)
}
