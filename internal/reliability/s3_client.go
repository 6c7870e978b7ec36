// Package reliability provides database maintenance and off-site backups.
package reliability

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// ObjectStore is the storage surface the backup service needs. Keys are
// bare object names; implementations own any bucket-level prefixing.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64) error
	List(ctx context.Context, keyPrefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
}

// S3Client stores backup archives in an S3 bucket.
type S3Client struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	log      zerolog.Logger
}

// NewS3Client creates a client using the default AWS credential chain.
func NewS3Client(ctx context.Context, bucket, region, prefix string, log zerolog.Logger) (*S3Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	return &S3Client{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
		log:      log.With().Str("client", "s3").Str("bucket", bucket).Logger(),
	}, nil
}

// Upload stores an object under the configured prefix.
func (c *S3Client) Upload(ctx context.Context, key string, body io.Reader, size int64) error {
	fullKey := c.fullKey(key)

	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(fullKey),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", fullKey, err)
	}

	c.log.Info().Str("key", fullKey).Int64("size_bytes", size).Msg("Object uploaded")
	return nil
}

// List returns objects whose bare names start with keyPrefix. The bucket
// prefix is stripped from the returned keys.
func (c *S3Client) List(ctx context.Context, keyPrefix string) ([]types.Object, error) {
	fullPrefix := c.fullKey(keyPrefix)

	var objects []types.Object
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(fullPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under %s: %w", fullPrefix, err)
		}

		for _, obj := range page.Contents {
			if obj.Key != nil {
				bare := c.bareKey(*obj.Key)
				obj.Key = &bare
			}
			objects = append(objects, obj)
		}
	}

	return objects, nil
}

// Delete removes an object by its bare name.
func (c *S3Client) Delete(ctx context.Context, key string) error {
	fullKey := c.fullKey(key)

	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", fullKey, err)
	}

	c.log.Info().Str("key", fullKey).Msg("Object deleted")
	return nil
}

func (c *S3Client) fullKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return path.Join(c.prefix, key)
}

func (c *S3Client) bareKey(fullKey string) string {
	if c.prefix == "" {
		return fullKey
	}
	return strings.TrimPrefix(fullKey, c.prefix+"/")
}
