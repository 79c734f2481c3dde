package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/abduss/mediadrive/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultObjectStoreTimeout = 5 * time.Second

// NewMinIOClient establishes a MinIO client using the provided configuration.
func NewMinIOClient(cfg config.StorageConfig) (*minio.Client, error) {
	endpoint := cfg.ResolvedEndpoint()
	secure := cfg.UseSSL
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}
	if !strings.Contains(endpoint, ":") && !secure {
		// default to MinIO API port when not supplied explicitly
		endpoint = fmt.Sprintf("%s:9000", endpoint)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return client, nil
}

// EnsureBucket ensures the target bucket exists, creating it if necessary.
func EnsureBucket(ctx context.Context, client bucketMaker, bucket, region string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultObjectStoreTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}

	if exists {
		return nil
	}

	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", bucket, err)
	}

	return nil
}

type bucketMaker interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

type minioAPI interface {
	bucketMaker
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// MinIOGateway implements the direct strategy with minio-go.
type MinIOGateway struct {
	client     minioAPI
	bucket     string
	publicBase string
	readTTL    time.Duration
}

// NewMinIOGateway wraps client for bucket.
func NewMinIOGateway(client minioAPI, cfg config.StorageConfig) *MinIOGateway {
	return &MinIOGateway{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: cfg.PublicBaseURL,
		readTTL:    cfg.ReadURLTTL,
	}
}

func (g *MinIOGateway) Strategy() Strategy { return StrategyDirect }

func (g *MinIOGateway) Key(userID, _ string) string {
	return directKey(userID)
}

func (g *MinIOGateway) List(ctx context.Context, prefix string) ([]Object, error) {
	objects := []Object{}
	for info := range g.client.ListObjects(ctx, g.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, wrap(KindListFailed, prefix, info.Err)
		}
		objects = append(objects, Object{Key: info.Key, ETag: strings.Trim(info.ETag, `"`)})
	}
	return filterPrefix(objects, prefix), nil
}

func (g *MinIOGateway) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := g.client.PutObject(ctx, g.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	return wrap(KindUploadFailed, key, err)
}

func (g *MinIOGateway) Delete(ctx context.Context, key string) error {
	err := g.client.RemoveObject(ctx, g.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return nil
	}
	return wrap(KindDeleteFailed, key, err)
}

func (g *MinIOGateway) URL(ctx context.Context, key string) (string, error) {
	if g.publicBase != "" {
		return PublicURL(g.publicBase, key), nil
	}
	u, err := g.client.PresignedGetObject(ctx, g.bucket, key, g.readTTL, url.Values{})
	if err != nil {
		return "", wrap(KindURLFailed, key, err)
	}
	return u.String(), nil
}
