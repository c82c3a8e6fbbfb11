package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"dockline_server/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// StorageClient is the object-storage surface the core depends on. The core
// only ever holds keys and part metadata, never file bytes; uploads and
// downloads happen client-side through the signed URLs minted here. Tests
// substitute a stub.
type StorageClient interface {
	CreateMultipartUpload(ctx context.Context, key, contentType string) (uploadID string, err error)
	PresignUploadPart(ctx context.Context, key, uploadID string, partNumber int32) (signedURL string, err error)
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []models.PartETag) (location string, err error)
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
	PresignPutObject(ctx context.Context, key, contentType string) (signedURL string, err error)
	PresignGetObject(ctx context.Context, key string) (signedURL string, err error)
	DeleteObject(ctx context.Context, key string) error
}

// S3Client implements StorageClient against AWS S3.
type S3Client struct {
	Client     *s3.Client
	Presigner  *s3.PresignClient
	Bucket     string
	PresignTTL time.Duration
}

var _ StorageClient = (*S3Client)(nil)

// NewS3Client builds an S3-backed storage client from the environment
// (AWS_REGION, S3_BUCKET_NAME), matching the rest of the AWS wiring.
func NewS3Client() (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(), config.WithRegion(os.Getenv("AWS_REGION")))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Client{
		Client:     client,
		Presigner:  s3.NewPresignClient(client),
		Bucket:     os.Getenv("S3_BUCKET_NAME"),
		PresignTTL: 5 * time.Minute,
	}, nil
}

func (c *S3Client) CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	output, err := c.Client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(c.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create multipart upload for key '%s': %w", key, err)
	}
	return aws.ToString(output.UploadId), nil
}

func (c *S3Client) PresignUploadPart(ctx context.Context, key, uploadID string, partNumber int32) (string, error) {
	request, err := c.Presigner.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(c.Bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
	}, s3.WithPresignExpires(c.PresignTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign part %d for key '%s': %w", partNumber, key, err)
	}
	return request.URL, nil
}

func (c *S3Client) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []models.PartETag) (string, error) {
	completedParts := make([]types.CompletedPart, 0, len(parts))
	for _, part := range parts {
		completedParts = append(completedParts, types.CompletedPart{
			ETag:       aws.String(part.ETag),
			PartNumber: aws.Int32(part.PartNumber),
		})
	}

	output, err := c.Client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(c.Bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completedParts,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to complete multipart upload for key '%s': %w", key, err)
	}
	return aws.ToString(output.Location), nil
}

func (c *S3Client) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	_, err := c.Client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(c.Bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return fmt.Errorf("failed to abort multipart upload for key '%s': %w", key, err)
	}
	return nil
}

// PresignPutObject generates a presigned URL for uploading a small file in a
// single PUT.
func (c *S3Client) PresignPutObject(ctx context.Context, key, contentType string) (string, error) {
	request, err := c.Presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(c.PresignTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign put for key '%s': %w", key, err)
	}
	return request.URL, nil
}

// PresignGetObject generates a presigned URL for reading a file
func (c *S3Client) PresignGetObject(ctx context.Context, key string) (string, error) {
	request, err := c.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.PresignTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign get for key '%s': %w", key, err)
	}
	return request.URL, nil
}

func (c *S3Client) DeleteObject(ctx context.Context, key string) error {
	_, err := c.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object '%s': %w", key, err)
	}
	return nil
}
