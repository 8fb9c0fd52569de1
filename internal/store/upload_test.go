package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	at := time.Date(2025, 11, 21, 9, 5, 7, 999, time.UTC)
	assert.Equal(t, "NanoBananaPro_20251121_090507.png", FileName("NanoBananaPro", at, ".png"))
	assert.Equal(t, "edit_20251121_090507.jpg", FileName("edit", at, ".jpg"))
}

func TestFileUploaderCreatesDirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "nested")
	u := &FileUploader{Dir: dir}

	data := []byte{1, 2, 3, 4}
	art, err := u.Upload(context.Background(), UploadParams{Name: "a.png", Data: data, ContentType: "image/png"})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "a.png"), art.Location)
	assert.Equal(t, "a.png", art.Key)
	assert.Equal(t, 4, art.Size)
	got, err := os.ReadFile(art.Location)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestFileUploaderFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	u := &FileUploader{Dir: filepath.Join(blocker, "sub")}
	_, err := u.Upload(context.Background(), UploadParams{Name: "a.png", Data: []byte{1}})
	assert.Error(t, err)
}

func TestNopInvalidator(t *testing.T) {
	assert.NoError(t, NopInvalidator{}.Invalidate(context.Background(), []string{"/x"}))
}

func TestFileUploaderRejectsEscapingNames(t *testing.T) {
	root := t.TempDir()
	u := &FileUploader{Dir: filepath.Join(root, "out")}

	for _, name := range []string{"../escaped.png", "a/../../escaped.png", "/tmp/abs.png", ""} {
		_, err := u.Upload(context.Background(), UploadParams{Name: name, Data: []byte{1}})
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
	_, err := os.Stat(filepath.Join(root, "escaped.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	art, err := u.Upload(context.Background(), UploadParams{Name: "sub/ok.png", Data: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "out", "sub", "ok.png"), art.Location)
}
