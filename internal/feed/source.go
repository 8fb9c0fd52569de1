package feed

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/iProgramme/AI-shouban/internal/log"
	"github.com/iProgramme/AI-shouban/internal/store"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".gif"}

// Entry is one saved artifact. Prompt and the image options are only known
// when the store kept them as object metadata; Size is zero for S3 entries.
type Entry struct {
	Key         string
	Prompt      string
	AspectRatio string
	Resolution  string
	Mode        string
	Size        int64
	Updated     time.Time
}

type Source interface {
	Entries(context.Context) ([]Entry, error)
}

func isArtifact(key string) bool {
	base := path.Base(key)
	return lo.Contains(imageExtensions, strings.ToLower(path.Ext(base))) && !strings.HasPrefix(base, "latest")
}

type DirSource struct {
	Dir string
}

func NewDirSource(i *do.Injector) (Source, error) {
	return &DirSource{Dir: do.MustInvokeNamed[string](i, "output_dir")}, nil
}

func (s *DirSource) Entries(ctx context.Context) ([]Entry, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("dir").With("dir", s.Dir)
	logger.Info("listing artifacts")

	files, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.Dir, err)
	}

	var entries []Entry
	for _, f := range files {
		if f.IsDir() || !isArtifact(f.Name()) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", filepath.Join(s.Dir, f.Name()), err)
		}
		entries = append(entries, Entry{Key: f.Name(), Size: info.Size(), Updated: info.ModTime()})
	}
	return entries, nil
}

type S3API interface {
	s3.ListObjectsV2APIClient
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type S3Source struct {
	Client S3API
	Bucket string
	Prefix string
}

func NewS3Source(i *do.Injector) (Source, error) {
	return &S3Source{
		Client: do.MustInvoke[*s3.Client](i),
		Bucket: do.MustInvokeNamed[string](i, "bucket"),
		Prefix: do.MustInvokeNamed[string](i, "bucket_prefix"),
	}, nil
}

func (s *S3Source) Entries(ctx context.Context) ([]Entry, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("s3").With("bucket", s.Bucket, "prefix", s.Prefix)
	logger.Info("listing artifacts")

	pager := s3.NewListObjectsV2Paginator(s.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(s.Prefix),
	})

	var (
		mu      sync.Mutex
		entries []Entry
	)
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(8)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			_ = group.Wait()
			return nil, fmt.Errorf("listing s3://%s/%s: %w", s.Bucket, s.Prefix, err)
		}

		objs := lo.Filter(page.Contents, func(o s3types.Object, _ int) bool {
			return isArtifact(aws.ToString(o.Key))
		})
		for _, obj := range objs {
			obj := obj
			group.Go(func() error {
				out, err := s.Client.HeadObject(gctx, &s3.HeadObjectInput{
					Bucket: aws.String(s.Bucket),
					Key:    obj.Key,
				})
				if err != nil {
					return fmt.Errorf("head s3://%s/%s: %w", s.Bucket, aws.ToString(obj.Key), err)
				}
				meta := store.DecodeMetadata(out.Metadata)
				e := Entry{
					Key:         aws.ToString(obj.Key),
					Prompt:      meta["prompt"],
					AspectRatio: meta["aspect_ratio"],
					Resolution:  meta["resolution"],
					Mode:        meta["mode"],
					Updated:     aws.ToTime(obj.LastModified),
				}
				mu.Lock()
				entries = append(entries, e)
				mu.Unlock()
				return nil
			})
		}
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}
