package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFolder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	folder, err := f.folders.CreateFolder(ctx, "  team-a!! ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "team-a", folder.Name)
	assert.NotEqual(t, "secret", folder.PasswordHash)
	assert.False(t, folder.CreatedAt.IsZero())
	assert.True(t, f.blobs.dirs["team-a"])
	assert.Equal(t, []string{"team-a"}, f.folders.ListFolders(ctx))
}

func TestCreateFolder_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		folder   string
		password string
	}{
		{"empty name", "", "secret"},
		{"blank name", "   ", "secret"},
		{"empty password", "team-a", ""},
		{"name sanitizes to empty", "../..", "secret"},
		{"password too long", "team-a", strings.Repeat("x", MaxPasswordBytes+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0)
			_, err := f.folders.CreateFolder(context.Background(), tt.folder, tt.password)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Empty(t, f.folders.ListFolders(context.Background()))
		})
	}
}

func TestCreateFolder_Duplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.mustCreate(t, "team-a", "secret")

	_, err := f.folders.CreateFolder(ctx, "team-a", "other")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// The first password still opens the folder.
	ok, err := f.folders.VerifyPassword(ctx, "team-a", "secret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.folders.VerifyPassword(ctx, "team-a", "other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateFolder_ConcurrentSameName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.folders.CreateFolder(ctx, "shared", fmt.Sprintf("pw-%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAlreadyExists):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, dupes)
	assert.Equal(t, []string{"shared"}, f.folders.ListFolders(ctx))
}

func TestCreateFolder_SaveFailure(t *testing.T) {
	f := newFixture(t, 0)
	f.store.saveErr = errors.New("disk full")

	_, err := f.folders.CreateFolder(context.Background(), "team-a", "secret")
	assert.ErrorIs(t, err, ErrStorageFailure)
}

func TestCreateFolder_PurgesStaleFileRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.store.files = []*File{
		{ID: "1", Name: "old.txt", Folder: "team-a"},
		{ID: "2", Name: "keep.txt", Folder: "team-b"},
	}

	f.mustCreate(t, "team-a", "secret")

	assert.Empty(t, f.files.ListFiles(ctx, "team-a"))
	assert.Len(t, f.files.ListFiles(ctx, "team-b"), 1)
}

func TestListFolders_Order(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.store.folders = map[string]*Folder{
		"zeta":  {Name: "zeta", CreatedAt: base},
		"alpha": {Name: "alpha", CreatedAt: base.Add(time.Minute)},
		"beta":  {Name: "beta", CreatedAt: base},
	}

	assert.Equal(t, []string{"beta", "zeta", "alpha"}, f.folders.ListFolders(ctx))
}

func TestVerifyPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.mustCreate(t, "x", "p")

	ok, err := f.folders.VerifyPassword(ctx, "x", "p")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.folders.VerifyPassword(ctx, "x", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.folders.VerifyPassword(ctx, "y", "p")
	assert.ErrorIs(t, err, ErrFolderNotFound)
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.mustCreate(t, "x", "p")

	folder, err := f.folders.Authorize(ctx, "x", "p")
	require.NoError(t, err)
	assert.Equal(t, "x", folder.Name)

	_, err = f.folders.Authorize(ctx, "x", "nope")
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, err = f.folders.Authorize(ctx, "missing", "p")
	assert.ErrorIs(t, err, ErrFolderNotFound)

	// A corrupt hash never authorizes.
	f.store.folders["broken"] = &Folder{Name: "broken", PasswordHash: "not-a-hash"}
	_, err = f.folders.Authorize(ctx, "broken", "p")
	assert.ErrorIs(t, err, ErrWrongPassword)
}

func TestDeleteFolder_Cascade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.mustCreate(t, "a", "pw")
	f.mustCreate(t, "b", "pw")

	for _, folder := range []string{"a", "a", "b"} {
		batch, err := f.uploads.Begin(ctx, folder)
		require.NoError(t, err)
		_, err = batch.Add(ctx, "doc.txt", "text/plain", strings.NewReader("hello"))
		require.NoError(t, err)
		_, err = batch.Commit(ctx)
		require.NoError(t, err)
	}
	require.Len(t, f.files.ListFiles(ctx, "a"), 2)

	require.NoError(t, f.folders.DeleteFolder(ctx, "a", "pw"))

	assert.Equal(t, []string{"b"}, f.folders.ListFolders(ctx))
	assert.Empty(t, f.files.ListFiles(ctx, "a"))
	assert.Len(t, f.files.ListFiles(ctx, "b"), 1)
	assert.False(t, f.blobs.dirs["a"])
	assert.Equal(t, 1, f.blobs.count())

	// The name is free again.
	f.mustCreate(t, "a", "new")
	assert.Empty(t, f.files.ListFiles(ctx, "a"))
}

func TestDeleteFolder_Gate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.mustCreate(t, "a", "pw")

	assert.ErrorIs(t, f.folders.DeleteFolder(ctx, "a", "wrong"), ErrWrongPassword)
	assert.ErrorIs(t, f.folders.DeleteFolder(ctx, "missing", "pw"), ErrFolderNotFound)
	assert.ErrorIs(t, f.folders.DeleteFolder(ctx, "a", ""), ErrInvalidInput)
	assert.Equal(t, []string{"a"}, f.folders.ListFolders(ctx))
	assert.True(t, f.blobs.dirs["a"])
}

func TestDeleteFolder_RemoveDirFailureStillDropsMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.mustCreate(t, "a", "pw")
	f.blobs.removeDirErr = errors.New("device busy")

	require.NoError(t, f.folders.DeleteFolder(ctx, "a", "pw"))
	assert.Empty(t, f.folders.ListFolders(ctx))

	f.blobs.removeDirErr = nil
	f.mustCreate(t, "a", "pw2")
}
