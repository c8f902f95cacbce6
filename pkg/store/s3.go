package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store stores rendered pages in an S3 bucket under
// <prefix><sessionID>/page_<n>.png. References are presigned GET URLs so
// the thin client fetches pages straight from S3 instead of through the
// server's /pages endpoint.
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	client := s3.NewFromConfig(cfg)
//	st := store.NewS3Store(client, "my-bucket", "pages/")
type S3Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	prefix    string
	urlExpiry time.Duration
}

// NewS3Store creates an S3 page store.
func NewS3Store(client *s3.Client, bucket, prefix string) *S3Store {
	return &S3Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		prefix:    prefix,
		urlExpiry: 24 * time.Hour,
	}
}

// WithURLExpiry sets how long presigned page URLs remain valid.
func (s *S3Store) WithURLExpiry(d time.Duration) *S3Store {
	s.urlExpiry = d
	return s
}

// Save uploads the page bitmap and returns a presigned GET URL.
func (s *S3Store) Save(ctx context.Context, sessionID string, pageNum int, data []byte) (string, error) {
	if !safeName(sessionID) {
		return "", ErrInvalidName
	}

	key := s.prefix + sessionID + "/" + PageFilename(pageNum)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return "", fmt.Errorf("store: s3 put %s: %w", key, err)
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.urlExpiry))
	if err != nil {
		return "", fmt.Errorf("store: presign %s: %w", key, err)
	}
	return req.URL, nil
}

// Remove deletes every object under the session's prefix.
func (s *S3Store) Remove(ctx context.Context, sessionID string) error {
	if !safeName(sessionID) {
		return ErrInvalidName
	}

	prefix := s.prefix + sessionID + "/"
	var token *string
	for {
		list, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("store: s3 list %s: %w", prefix, err)
		}
		if len(list.Contents) == 0 {
			return nil
		}

		objects := make([]s3types.ObjectIdentifier, 0, len(list.Contents))
		for _, obj := range list.Contents {
			objects = append(objects, s3types.ObjectIdentifier{Key: obj.Key})
		}
		_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("store: s3 delete %s: %w", prefix, err)
		}

		if list.IsTruncated == nil || !*list.IsTruncated {
			return nil
		}
		token = list.NextContinuationToken
	}
}
