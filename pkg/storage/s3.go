// Package storage wraps S3 object storage for recording audio: time-limited
// upload/download credentials and server-mediated buffered uploads. Clients
// are injected capabilities so callers can substitute test doubles.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const (
	// FolderRecordings is the S3 prefix for recording objects.
	FolderRecordings = "recordings"
	// PartSize is the chunk size for buffered uploads. Memory per concurrent
	// upload is bounded to roughly one part.
	PartSize = 10 * 1024 * 1024
)

// PresignAPI issues pre-signed S3 requests.
type PresignAPI interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// UploadAPI streams objects into S3 in parts.
type UploadAPI interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Config holds gateway configuration.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// UploadExpire bounds presigned PUT validity. Short by design: the client
	// is expected to use the credential immediately.
	UploadExpire time.Duration
	// DownloadExpire bounds presigned GET validity.
	DownloadExpire time.Duration
}

// UploadCredential is a time-limited write grant for one object.
type UploadCredential struct {
	URL       string
	Key       string
	PublicURL string
}

// StoredObject describes an object after a confirmed server-side upload.
type StoredObject struct {
	Key       string
	PublicURL string
	ByteSize  int64
}

// Gateway provides recording object storage operations. It never touches the
// database and never retries; retry policy belongs to callers.
type Gateway struct {
	presign  PresignAPI
	uploader UploadAPI
	cfg      Config
	now      func() time.Time
	logger   *zap.Logger
}

// NewGateway creates a gateway against real S3, using credentials from config
// or the environment (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY), falling back
// to the default credential chain.
func NewGateway(ctx context.Context, cfg Config, logger *zap.Logger) (*Gateway, error) {
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
	} else if logger != nil {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = PartSize
		// Abort the multipart upload on any part failure so no orphaned
		// partial object remains.
		u.LeavePartsOnError = false
	})
	return NewGatewayWithClients(s3.NewPresignClient(client), uploader, cfg, nil, logger), nil
}

// NewGatewayWithClients creates a gateway over injected presign/upload
// capabilities. A nil clock means time.Now.
func NewGatewayWithClients(presign PresignAPI, uploader UploadAPI, cfg Config, clock func() time.Time, logger *zap.Logger) *Gateway {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UploadExpire <= 0 {
		cfg.UploadExpire = 10 * time.Minute
	}
	if cfg.DownloadExpire <= 0 {
		cfg.DownloadExpire = time.Hour
	}
	return &Gateway{presign: presign, uploader: uploader, cfg: cfg, now: clock, logger: logger}
}

// ObjectKey builds the storage key: recordings/{ownerID}/{unixMillis}-{fileName}.
// Owner prefix isolates users; the millisecond timestamp keeps repeated
// uploads of the same file name from colliding. The layout is persisted and
// must stay stable.
func (g *Gateway) ObjectKey(ownerID, fileName string) string {
	return fmt.Sprintf("%s/%s/%d-%s", FolderRecordings, ownerID, g.now().UnixMilli(), path.Base(fileName))
}

// PublicURL reconstructs the permanent object URL for a key.
func (g *Gateway) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", g.cfg.Bucket, g.cfg.Region, key)
}

// IssueUploadCredential returns a presigned PUT URL for direct client upload.
// The content type is bound into the signature so storage rejects mismatched
// uploads. Ownership of the target is the caller's concern.
func (g *Gateway) IssueUploadCredential(ctx context.Context, ownerID, fileName, contentType string) (*UploadCredential, error) {
	key := g.ObjectKey(ownerID, fileName)
	req, err := g.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = g.cfg.UploadExpire
	})
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}
	return &UploadCredential{URL: req.URL, Key: key, PublicURL: g.PublicURL(key)}, nil
}

// IssueDownloadCredential returns a presigned GET URL for an existing key.
// The caller must have checked ownership before invoking.
func (g *Gateway) IssueDownloadCredential(ctx context.Context, key string) (string, error) {
	req, err := g.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.cfg.Bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = g.cfg.DownloadExpire
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// BufferedUpload streams body into storage in parts, for clients that cannot
// upload directly. On failure the partial multipart upload is aborted, so
// either the whole object exists or nothing does.
func (g *Gateway) BufferedUpload(ctx context.Context, ownerID, fileName, contentType string, body io.Reader, size int64) (*StoredObject, error) {
	key := g.ObjectKey(ownerID, fileName)
	var contentLength *int64
	if size > 0 {
		contentLength = &size
	}
	_, err := g.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(g.cfg.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: contentLength,
	})
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	g.logger.Info("buffered upload completed", zap.String("key", key), zap.Int64("size", size))
	return &StoredObject{Key: key, PublicURL: g.PublicURL(key), ByteSize: size}, nil
}

// UploadExpire returns the presigned PUT validity window.
func (g *Gateway) UploadExpire() time.Duration { return g.cfg.UploadExpire }

// DownloadExpire returns the presigned GET validity window.
func (g *Gateway) DownloadExpire() time.Duration { return g.cfg.DownloadExpire }
