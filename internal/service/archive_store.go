package service

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArchiveStore keeps a copy of uploaded originals in object storage. The
// analysis service holds its own copy for parsing; this archive is ours.
type ArchiveStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
}

type s3ArchiveStore struct {
	client *s3.Client
	bucket string
}

// NewS3ArchiveStore creates an ArchiveStore backed by an S3-compatible bucket.
func NewS3ArchiveStore(client *s3.Client, bucket string) ArchiveStore {
	return &s3ArchiveStore{client: client, bucket: bucket}
}

func (s *s3ArchiveStore) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}
