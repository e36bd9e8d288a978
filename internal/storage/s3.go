package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

var ErrDisabled = errors.New("attachment storage is not configured")

// ObjectStore is the subset of S3Service the rest of the code depends on.
type ObjectStore interface {
	UploadAttachment(ctx context.Context, taskID uint, fileName, contentType string, body io.Reader) (*UploadResult, error)
	GeneratePresignedURL(ctx context.Context, s3Key string, expiration time.Duration) (string, error)
	DeleteFile(ctx context.Context, s3Key string) error
	CheckFileExists(ctx context.Context, s3Key string) (bool, error)
}

// Config selects the bucket and, for MinIO and friends, a custom endpoint.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string
	// MaxSize bounds uploads in bytes; zero means no limit.
	MaxSize int64
}

type S3Service struct {
	client   *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	bucket   string
	maxSize  int64
}

var _ ObjectStore = (*S3Service)(nil)

type UploadResult struct {
	S3Key      string
	S3Bucket   string
	FileHash   string // SHA-256 hash of the file
	FileSize   int64
	MimeType   string
	UploadedAt time.Time
}

// NewS3Service creates a new S3 service instance with MinIO support
func NewS3Service(ctx context.Context, cfg Config) (*S3Service, error) {
	if cfg.Bucket == "" {
		return nil, ErrDisabled
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // MinIO requires path-style addressing
		}
	})

	return &S3Service{
		client:   client,
		presign:  s3.NewPresignClient(client),
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		maxSize:  cfg.MaxSize,
	}, nil
}

// AttachmentKey builds the object key for a file attached to taskID.
func AttachmentKey(taskID uint, id uuid.UUID, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "file"
	}
	return fmt.Sprintf("tasks/%d/%s/%s", taskID, id.String(), base)
}

// UploadAttachment stores a task attachment and reports its hash and size.
func (s *S3Service) UploadAttachment(ctx context.Context, taskID uint, fileName, contentType string, body io.Reader) (*UploadResult, error) {
	if s.maxSize > 0 {
		body = io.LimitReader(body, s.maxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("file exceeds %d bytes", s.maxSize)
	}

	hash := sha256.Sum256(data)
	fileHash := hex.EncodeToString(hash[:])
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	id := uuid.New()
	s3Key := AttachmentKey(taskID, id, fileName)

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s3Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"original-filename": fileName,
			"task-id":           fmt.Sprintf("%d", taskID),
			"attachment-id":     id.String(),
			"original-hash":     fileHash,
		},
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		S3Key:      s3Key,
		S3Bucket:   s.bucket,
		FileHash:   fileHash,
		FileSize:   int64(len(data)),
		MimeType:   contentType,
		UploadedAt: time.Now().UTC(),
	}, nil
}

// GeneratePresignedURL generates a presigned URL for temporary download access
func (s *S3Service) GeneratePresignedURL(ctx context.Context, s3Key string, expiration time.Duration) (string, error) {
	request, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3Key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiration
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return request.URL, nil
}

// DeleteFile deletes a file from S3
func (s *S3Service) DeleteFile(ctx context.Context, s3Key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3Key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}

	return nil
}

// CheckFileExists checks if a file exists in S3
func (s *S3Service) CheckFileExists(ctx context.Context, s3Key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3Key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}

	return true, nil
}
