package assets

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ridoystarlord/discontented/config"
)

// ObjectStore is a bucket that asset files are copied into.
type ObjectStore interface {
	// Name identifies the bucket. Stores with the same name share one key index.
	Name() string
	// Keys calls fn with each page of object keys in the bucket.
	Keys(ctx context.Context, fn func(page []string)) error
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// S3Store is an ObjectStore backed by an S3-compatible bucket.
type S3Store struct {
	client *s3.Client
	bucket config.Bucket
}

// NewS3Store builds a client for b with static credentials. A custom
// endpoint switches to path-style addressing.
func NewS3Store(ctx context.Context, b config.Bucket) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(b.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(b.AccessKey, b.AccessSecret, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config for bucket %s: %w", b.Bucket, err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if b.Endpoint != "" {
			o.BaseEndpoint = aws.String(b.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, bucket: b}, nil
}

// StoresFor opens an S3Store for every configured bucket.
func StoresFor(ctx context.Context, buckets []config.Bucket) ([]ObjectStore, error) {
	stores := make([]ObjectStore, 0, len(buckets))
	for _, b := range buckets {
		s, err := NewS3Store(ctx, b)
		if err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	return stores, nil
}

func (s *S3Store) Name() string {
	name := s.bucket.Bucket
	if s.bucket.Region != "" {
		name = s.bucket.Region + "|" + name
	}
	if s.bucket.Endpoint != "" {
		name = s.bucket.Endpoint + "|" + name
	}
	return name
}

func (s *S3Store) Keys(ctx context.Context, fn func(page []string)) error {
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket.Bucket)})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("listing bucket %s: %w", s.bucket.Bucket, err)
		}
		keys := make([]string, 0, len(out.Contents))
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		fn(keys)
	}
	return nil
}

func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("uploading %s to bucket %s: %w", key, s.bucket.Bucket, err)
	}
	return nil
}
