package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/iProgramme/AI-shouban/internal/log"
	"github.com/samber/do"
)

const timestampLayout = "20060102_150405"

var ErrInvalidName = errors.New("artifact name must be a relative path inside the output location")

type UploadParams struct {
	Name        string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

type Artifact struct {
	Location string
	Key      string
	Size     int
}

type Uploader interface {
	Upload(context.Context, UploadParams) (Artifact, error)
}

// CheckName rejects empty, absolute and parent-escaping names such as "../x.png".
func CheckName(name string) error {
	if !filepath.IsLocal(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// FileName builds "<prefix>_<YYYYMMDD_HHMMSS><ext>". Two names built within
// the same second collide.
func FileName(prefix string, t time.Time, ext string) string {
	return fmt.Sprintf("%s_%s%s", prefix, t.Format(timestampLayout), ext)
}

type FileUploader struct {
	Dir string
}

func NewFileUploader(i *do.Injector) (*FileUploader, error) {
	return &FileUploader{Dir: do.MustInvokeNamed[string](i, "output_dir")}, nil
}

// Upload writes into a temp file next to the target and renames it into place.
func (u *FileUploader) Upload(ctx context.Context, params UploadParams) (Artifact, error) {
	if err := CheckName(params.Name); err != nil {
		return Artifact{}, err
	}
	path := filepath.Join(u.Dir, params.Name)
	logger := log.FromContextOrDiscard(ctx).WithGroup("file").With("path", path)
	logger.Info("writing artifact", "bytes", len(params.Data))

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return Artifact{}, fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(params.Data); err != nil {
		tmp.Close()
		return Artifact{}, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return Artifact{}, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Artifact{}, fmt.Errorf("writing %s: %w", path, err)
	}

	logger.Info("saved artifact", "kb", fmt.Sprintf("%.2f", float64(len(params.Data))/1024))
	return Artifact{Location: path, Key: params.Name, Size: len(params.Data)}, nil
}
