package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"PriceCast/internal/domain/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used for artifacts.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3ArtifactStore keeps artifacts at s3://bucket/prefix/<key>.json.
type S3ArtifactStore struct {
	client S3API
	bucket string
	prefix string
}

// NewS3ArtifactStore builds a client from the default AWS credential chain.
func NewS3ArtifactStore(ctx context.Context, bucket, prefix, region string) (*S3ArtifactStore, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return NewS3ArtifactStoreWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func NewS3ArtifactStoreWithClient(client S3API, bucket, prefix string) *S3ArtifactStore {
	return &S3ArtifactStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3ArtifactStore) objectKey(key string) string {
	return path.Join(s.prefix, key+".json")
}

func (s *S3ArtifactStore) Load(ctx context.Context, key string) (*models.Artifact, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%s: %w", key, models.ErrArtifactNotFound)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, s.objectKey(key), err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return decodeArtifact(b)
}

func (s *S3ArtifactStore) Save(ctx context.Context, key string, a *models.Artifact) error {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, s.objectKey(key), err)
	}
	return nil
}
