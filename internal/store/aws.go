package store

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/iProgramme/AI-shouban/internal/log"
	"github.com/samber/do"
)

type S3API interface {
	PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Uploader struct {
	Client S3API
	Bucket string
	Prefix string
}

func NewS3Uploader(i *do.Injector) (*S3Uploader, error) {
	return &S3Uploader{
		Client: do.MustInvoke[*s3.Client](i),
		Bucket: do.MustInvokeNamed[string](i, "bucket"),
		Prefix: do.MustInvokeNamed[string](i, "bucket_prefix"),
	}, nil
}

func (u *S3Uploader) Key(name string) string {
	return path.Join(u.Prefix, name)
}

func (u *S3Uploader) Upload(ctx context.Context, params UploadParams) (Artifact, error) {
	if err := CheckName(params.Name); err != nil {
		return Artifact{}, err
	}
	key := u.Key(params.Name)
	logger := log.FromContextOrDiscard(ctx).WithGroup("s3").With(
		"key", key,
		"content-type", params.ContentType,
		"bucket", u.Bucket,
	)
	logger.Info("uploading to s3", "bytes", len(params.Data))

	_, err := u.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.Bucket),
		Key:          aws.String(key),
		ContentType:  aws.String(params.ContentType),
		Body:         bytes.NewReader(params.Data),
		Metadata:     EncodeMetadata(params.Metadata),
		StorageClass: s3types.StorageClassIntelligentTiering,
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("uploading s3://%s/%s: %w", u.Bucket, key, err)
	}
	return Artifact{Location: fmt.Sprintf("s3://%s/%s", u.Bucket, key), Key: key, Size: len(params.Data)}, nil
}

type CloudFrontAPI interface {
	CreateInvalidation(context.Context, *cloudfront.CreateInvalidationInput, ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error)
}

type CloudFrontInvalidator struct {
	Client       CloudFrontAPI
	Distribution string
}

func NewCloudFrontInvalidator(i *do.Injector) (*CloudFrontInvalidator, error) {
	return &CloudFrontInvalidator{
		Client:       do.MustInvoke[*cloudfront.Client](i),
		Distribution: do.MustInvokeNamed[string](i, "distribution"),
	}, nil
}

func (i *CloudFrontInvalidator) Invalidate(ctx context.Context, paths []string) error {
	logger := log.FromContextOrDiscard(ctx).WithGroup("cloudfront").With("paths", paths, "distribution", i.Distribution)
	logger.Info("invalidating paths in cloudfront")

	_, err := i.Client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(i.Distribution),
		InvalidationBatch: &cftypes.InvalidationBatch{
			CallerReference: aws.String(time.Now().UTC().Format("20060102150405.000000000")),
			Paths: &cftypes.Paths{
				Quantity: aws.Int32(int32(len(paths))),
				Items:    paths,
			},
		},
	})
	return err
}
