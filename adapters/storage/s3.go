// Package storage provides core.ObjectStore implementations.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/Skryldev/photosync/core"
	apperrors "github.com/Skryldev/photosync/errors"
)

// S3Config holds S3 connection parameters.
type S3Config struct {
	Region          string
	Endpoint        string // R2, MinIO, localstack, ...
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3Client is the subset of *s3.Client used by the adapter, so tests can
// inject a double.
type S3Client interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// NewS3Client builds an aws-sdk-go-v2 client with static credentials and an
// explicit endpoint.  No shared AWS config files are consulted.
func NewS3Client(cfg S3Config) (*s3.Client, error) {
	if cfg.Endpoint == "" {
		return nil, apperrors.New(apperrors.CategoryConfig, "s3.client", errors.New("endpoint must be set"))
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, apperrors.New(apperrors.CategoryConfig, "s3.client", errors.New("credentials must be set"))
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	return s3.New(s3.Options{
		Region:       region,
		BaseEndpoint: aws.String(cfg.Endpoint),
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		UsePathStyle: cfg.UsePathStyle,
	}), nil
}

// S3 is the ObjectStore backed by S3 or an S3-compatible service.
type S3 struct {
	client S3Client
	bucket string
}

// NewS3 creates an S3 adapter writing to bucket.  client must not be nil.
func NewS3(client S3Client, bucket string) (*S3, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 storage: client must not be nil")
	}
	if bucket == "" {
		return nil, fmt.Errorf("s3 storage: bucket must be set")
	}
	return &S3{client: client, bucket: bucket}, nil
}

// Bucket returns the target bucket name.
func (s *S3) Bucket() string { return s.bucket }

func (s *S3) Put(ctx context.Context, name string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryUpload, "s3.put", err)
	}
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(name),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return classify("s3.put", name, err)
	}
	return nil
}

func (s *S3) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryUpload, "s3.delete", err)
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return classify("s3.delete", name, err)
	}
	return nil
}

// permanentCodes are service error codes a retry cannot fix.
var permanentCodes = map[string]bool{
	"AccessDenied":                 true,
	"AllAccessDisabled":            true,
	"AuthorizationHeaderMalformed": true,
	"InvalidAccessKeyId":           true,
	"InvalidArgument":              true,
	"InvalidBucketName":            true,
	"InvalidRequest":               true,
	"NoSuchBucket":                 true,
	"SignatureDoesNotMatch":        true,
	"EntityTooLarge":               true,
}

// classify wraps err in CategoryUpload, retryable unless the service reported
// an authorization or request problem, or the caller cancelled.
func classify(op, name string, err error) error {
	wrapped := fmt.Errorf("%s: %w", name, err)
	if errors.Is(err, context.Canceled) {
		return apperrors.New(apperrors.CategoryUpload, op, wrapped)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && permanentCodes[apiErr.ErrorCode()] {
		return apperrors.New(apperrors.CategoryUpload, op, wrapped)
	}
	return apperrors.Transient(apperrors.CategoryUpload, op, wrapped)
}

var _ core.ObjectStore = (*S3)(nil)
