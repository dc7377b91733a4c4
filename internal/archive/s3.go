package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds S3 archive settings.
type S3Config struct {
	Region string

	// Endpoint overrides the S3 endpoint (MinIO, localstack).
	Endpoint string

	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible servers.
	UsePathStyle bool

	// MaxRetries bounds the retry loop. Zero means the default of 3.
	MaxRetries int
}

// S3Archive stores snapshots in an S3 bucket.
type S3Archive struct {
	client     *s3.Client
	bucket     string
	maxRetries int
}

// NewS3Archive creates an S3-backed archive using the default AWS
// credential chain.
func NewS3Archive(ctx context.Context, bucket string, cfg S3Config) (*S3Archive, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3ArchiveWithClient(client, bucket, cfg), nil
}

// NewS3ArchiveWithClient wraps an existing S3 client. Used by tests.
func NewS3ArchiveWithClient(client *s3.Client, bucket string, cfg S3Config) *S3Archive {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &S3Archive{
		client:     client,
		bucket:     bucket,
		maxRetries: retries,
	}
}

func (a *S3Archive) Put(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrPutFailed, localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPutFailed, err)
	}

	err = a.retryWithBackoff(ctx, func() error {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(a.bucket),
			Key:           aws.String(key),
			Body:          f,
			ContentLength: aws.Int64(info.Size()),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPutFailed, err)
	}
	return nil
}

func (a *S3Archive) Fetch(ctx context.Context, key, localPath string) error {
	var body io.ReadCloser
	err := a.retryWithBackoff(ctx, func() error {
		out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
		body = out.Body
		return nil
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, key)
		}
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer body.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, body); err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return nil
}

func (a *S3Archive) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *S3Archive) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list archive: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (a *S3Archive) Remove(ctx context.Context, key string) error {
	err := a.retryWithBackoff(ctx, func() error {
		_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoveFailed, err)
	}
	return nil
}

// retryWithBackoff retries op with exponential backoff. Not-found
// errors are returned immediately.
func (a *S3Archive) retryWithBackoff(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		var noSuchKey *s3types.NoSuchKey
		var notFound *s3types.NotFound
		if errors.As(lastErr, &noSuchKey) || errors.As(lastErr, &notFound) {
			return lastErr
		}
	}
	return lastErr
}
