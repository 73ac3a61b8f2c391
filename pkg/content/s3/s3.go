// Package s3 implements content.Store using Amazon S3 or S3-compatible
// object storage.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/treelinehq/canopy/internal/logger"
	"github.com/treelinehq/canopy/pkg/content"
)

// S3ContentStore implements content.Store on top of an S3 bucket.
//
// Key Design:
// Snapshots live under an optional key prefix as "<prefix><uuid>". Since
// snapshots are immutable and every Put mints a fresh key, S3's
// last-write-wins semantics never come into play.
//
// Supports custom endpoints for S3-compatible storage (MinIO, Cubbit DS3,
// localstack) via the Endpoint option.
type S3ContentStore struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	maxBytes  int64
}

// Options configures an S3ContentStore.
type Options struct {
	// Bucket is the bucket name. Must already exist.
	Bucket string

	// Region is the AWS region.
	Region string

	// Endpoint overrides the S3 endpoint for S3-compatible storage.
	// Empty means AWS.
	Endpoint string

	// AccessKeyID and SecretAccessKey are static credentials. Empty means
	// the default AWS credential chain.
	AccessKeyID     string
	SecretAccessKey string

	// KeyPrefix is an optional prefix for all object keys, e.g.
	// "canopy/content/".
	KeyPrefix string

	// UsePathStyle forces path-style addressing (required by most
	// S3-compatible servers).
	UsePathStyle bool

	// MaxBytes is the per-snapshot size ceiling. Zero means unlimited.
	MaxBytes int64
}

// NewS3ContentStore builds the client and verifies bucket access. The
// bucket must already exist; this never creates it.
func NewS3ContentStore(ctx context.Context, opts Options) (*S3ContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	// Fail fast on a missing bucket or bad credentials.
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(opts.Bucket)}); err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", opts.Bucket, err)
	}

	logger.Info("Connected to S3 content store: bucket=%s endpoint=%s", opts.Bucket, opts.Endpoint)
	return &S3ContentStore{
		client:    client,
		bucket:    opts.Bucket,
		keyPrefix: opts.KeyPrefix,
		maxBytes:  opts.MaxBytes,
	}, nil
}

func (s *S3ContentStore) key(id content.ID) string {
	return s.keyPrefix + string(id)
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// Put implements content.Store.
func (s *S3ContentStore) Put(ctx context.Context, r io.Reader) (content.ID, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	// Buffer the upload: the size ceiling must be enforced before any
	// bytes reach the bucket, and PutObject wants a known length.
	data, err := content.ReadCapped(r, s.maxBytes)
	if err != nil {
		return "", 0, err
	}

	id := content.ID(uuid.NewString())
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to upload content: %w", err)
	}
	return id, int64(len(data)), nil
}

// Read implements content.Store.
func (s *S3ContentStore) Read(ctx context.Context, id content.ID) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("content %s: %w", id, content.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read content %s: %w", id, err)
	}
	return out.Body, nil
}

// Size implements content.Store.
func (s *S3ContentStore) Size(ctx context.Context, id content.ID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("content %s: %w", id, content.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to stat content %s: %w", id, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Exists implements content.Store.
func (s *S3ContentStore) Exists(ctx context.Context, id content.ID) (bool, error) {
	_, err := s.Size(ctx, id)
	if errors.Is(err, content.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete implements content.Store.
func (s *S3ContentStore) Delete(ctx context.Context, id content.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// DeleteObject is idempotent on S3; an absent key succeeds.
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete content %s: %w", id, err)
	}
	return nil
}

// List implements content.Store.
func (s *S3ContentStore) List(ctx context.Context) ([]content.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ids []content.ID
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list content: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			ids = append(ids, content.ID(key[len(s.keyPrefix):]))
		}
	}
	return ids, nil
}
