package biz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/lk2023060901/file-container/internal/auth"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// memStore is an in-memory MetadataStore with the same locking contract as
// the JSON store.
type memStore struct {
	folderMu sync.Mutex
	fileMu   sync.Mutex

	mu          sync.Mutex
	folders     map[string]*Folder
	files       []*File
	saveErr     error
	folderSaves int
	fileSaves   int
}

func newMemStore() *memStore {
	return &memStore{folders: map[string]*Folder{}}
}

func (s *memStore) LoadFolders(context.Context) map[string]*Folder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*Folder, len(s.folders))
	for k, v := range s.folders {
		out[k] = v
	}
	return out
}

func (s *memStore) SaveFolders(_ context.Context, folders map[string]*Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailure, s.saveErr)
	}
	s.folders = make(map[string]*Folder, len(folders))
	for k, v := range folders {
		s.folders[k] = v
	}
	s.folderSaves++
	return nil
}

func (s *memStore) LoadFiles(context.Context) []*File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*File(nil), s.files...)
}

func (s *memStore) SaveFiles(_ context.Context, files []*File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailure, s.saveErr)
	}
	s.files = append([]*File(nil), files...)
	s.fileSaves++
	return nil
}

func (s *memStore) UpdateFolders(ctx context.Context, fn func(map[string]*Folder) error) error {
	s.folderMu.Lock()
	defer s.folderMu.Unlock()

	folders := s.LoadFolders(ctx)
	if err := fn(folders); err != nil {
		if errors.Is(err, ErrNoChange) {
			return nil
		}
		return err
	}
	return s.SaveFolders(ctx, folders)
}

func (s *memStore) UpdateFiles(ctx context.Context, fn func([]*File) ([]*File, error)) error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	files, err := fn(s.LoadFiles(ctx))
	if err != nil {
		if errors.Is(err, ErrNoChange) {
			return nil
		}
		return err
	}
	return s.SaveFiles(ctx, files)
}

func (s *memStore) counts() (folderSaves, fileSaves int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.folderSaves, s.fileSaves
}

// memBlobs keeps blobs in memory keyed by folder/storedName.
type memBlobs struct {
	mu           sync.Mutex
	dirs         map[string]bool
	blobs        map[string][]byte
	putErr       error
	removeDirErr error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{dirs: map[string]bool{}, blobs: map[string][]byte{}}
}

func blobKey(folder, name string) string { return folder + "/" + name }

func (b *memBlobs) CreateDir(_ context.Context, folder string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dirs[folder] = true
	return nil
}

func (b *memBlobs) RemoveDir(_ context.Context, folder string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.removeDirErr != nil {
		return b.removeDirErr
	}
	delete(b.dirs, folder)
	for k := range b.blobs {
		if len(k) > len(folder) && k[:len(folder)+1] == folder+"/" {
			delete(b.blobs, k)
		}
	}
	return nil
}

func (b *memBlobs) Put(_ context.Context, folder, name string, r io.Reader, _ int64, _ string) (*BlobInfo, error) {
	if b.putErr != nil {
		return nil, b.putErr
	}

	key := blobKey(folder, name)
	b.mu.Lock()
	_, taken := b.blobs[key]
	dirOK := b.dirs[folder]
	b.mu.Unlock()
	if !dirOK {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFolder, folder)
	}
	if taken {
		return nil, fmt.Errorf("%w: %s", ErrBlobExists, key)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.blobs[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrBlobExists, key)
	}
	b.blobs[key] = data
	return &BlobInfo{Path: key, Size: int64(len(data))}, nil
}

// seed stores a blob directly, as another writer would.
func (b *memBlobs) seed(folder, name, data string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[blobKey(folder, name)] = []byte(data)
}

func (b *memBlobs) get(folder, name string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blobs[blobKey(folder, name)]
	return string(data), ok
}

func (b *memBlobs) Open(_ context.Context, folder, name string) (io.ReadCloser, *BlobInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blobs[blobKey(folder, name)]
	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), &BlobInfo{Path: blobKey(folder, name), Size: int64(len(data))}, nil
}

func (b *memBlobs) Remove(_ context.Context, folder, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, blobKey(folder, name))
	return nil
}

func (b *memBlobs) has(folder, name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.blobs[blobKey(folder, name)]
	return ok
}

func (b *memBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blobs)
}

type fixture struct {
	store   *memStore
	blobs   *memBlobs
	folders *FolderUseCase
	files   *FileUseCase
	uploads *UploadUseCase
}

func newFixture(t *testing.T, maxFileSize int64) *fixture {
	t.Helper()

	store := newMemStore()
	blobs := newMemBlobs()
	log := zap.NewNop()

	folders := NewFolderUseCase(store, blobs, auth.NewBcryptHasher(bcrypt.MinCost), log)
	files := NewFileUseCase(store, blobs, folders, log)
	uploads := NewUploadUseCase(folders, files, blobs, nil, maxFileSize, log)

	return &fixture{store: store, blobs: blobs, folders: folders, files: files, uploads: uploads}
}

func (f *fixture) mustCreate(t *testing.T, name, password string) *Folder {
	t.Helper()
	folder, err := f.folders.CreateFolder(context.Background(), name, password)
	require.NoError(t, err)
	return folder
}
