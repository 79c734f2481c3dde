package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abduss/mediadrive/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// NewS3Client builds an S3 client for the configured endpoint. For Cloudflare R2
// the endpoint derives from the account id and the region is "auto".
func NewS3Client(ctx context.Context, cfg config.StorageConfig) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := cfg.ResolvedEndpoint()
	if endpoint != "" && !strings.Contains(endpoint, "://") {
		scheme := "https"
		if !cfg.UseSSL {
			scheme = "http"
		}
		endpoint = scheme + "://" + endpoint
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.Region = cfg.Region
		o.UsePathStyle = cfg.Endpoint != ""
	}), nil
}

// CheckBucket verifies the bucket is reachable.
func CheckBucket(ctx context.Context, client s3.HeadBucketAPIClient, bucket string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultObjectStoreTimeout)
	defer cancel()

	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
			return fmt.Errorf("bucket %q does not exist", bucket)
		}
		return fmt.Errorf("check bucket %q: %w", bucket, err)
	}
	return nil
}

type s3API interface {
	s3.ListObjectsV2APIClient
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SignedRequest is a presigned upload a browser can perform on its own.
type SignedRequest struct {
	Key       string            `json:"key"`
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// SignedGateway implements the signed strategy: every upload is a presigned PUT.
type SignedGateway struct {
	client     s3API
	presign    presigner
	http       httpDoer
	bucket     string
	publicBase string
	uploadTTL  time.Duration
	readTTL    time.Duration
	now        func() time.Time
}

// NewSignedGateway wires an S3 client and its presigner.
func NewSignedGateway(client *s3.Client, cfg config.StorageConfig, doer httpDoer) *SignedGateway {
	return newSignedGateway(client, s3.NewPresignClient(client), doer, cfg)
}

func newSignedGateway(client s3API, p presigner, doer httpDoer, cfg config.StorageConfig) *SignedGateway {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &SignedGateway{
		client:     client,
		presign:    p,
		http:       doer,
		bucket:     cfg.Bucket,
		publicBase: cfg.PublicBaseURL,
		uploadTTL:  cfg.UploadURLTTL,
		readTTL:    cfg.ReadURLTTL,
		now:        time.Now,
	}
}

func (g *SignedGateway) Strategy() Strategy { return StrategySigned }

func (g *SignedGateway) Key(userID, filename string) string {
	return signedKey(userID, filename)
}

// SignUpload presigns a PUT for key. The content type is part of the signature
// so the uploader must send the same Content-Type.
func (g *SignedGateway) SignUpload(ctx context.Context, key, contentType string) (SignedRequest, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req, err := g.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(g.uploadTTL))
	if err != nil {
		return SignedRequest{}, wrap(KindUploadFailed, key, fmt.Errorf("presign put: %w", err))
	}

	headers := map[string]string{"Content-Type": contentType}
	for name, values := range req.SignedHeader {
		if strings.EqualFold(name, "host") || len(values) == 0 {
			continue
		}
		headers[http.CanonicalHeaderKey(name)] = values[0]
	}

	return SignedRequest{
		Key:       key,
		Method:    http.MethodPut,
		URL:       req.URL,
		Headers:   headers,
		ExpiresAt: g.now().Add(g.uploadTTL),
	}, nil
}

func (g *SignedGateway) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	signed, err := g.SignUpload(ctx, key, contentType)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signed.URL, body)
	if err != nil {
		return wrap(KindUploadFailed, key, fmt.Errorf("build put request: %w", err))
	}
	req.ContentLength = size
	for name, value := range signed.Headers {
		req.Header.Set(name, value)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return wrap(KindUploadFailed, key, fmt.Errorf("put object: %w", err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return wrap(KindUploadFailed, key, fmt.Errorf("put object: unexpected status %s", resp.Status))
	}
	return nil
}

func (g *SignedGateway) List(ctx context.Context, prefix string) ([]Object, error) {
	objects := []Object{}
	p := s3.NewListObjectsV2Paginator(g.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(g.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, wrap(KindListFailed, prefix, err)
		}
		for _, o := range page.Contents {
			objects = append(objects, Object{
				Key:  aws.ToString(o.Key),
				ETag: strings.Trim(aws.ToString(o.ETag), `"`),
			})
		}
	}
	return filterPrefix(objects, prefix), nil
}

func (g *SignedGateway) Delete(ctx context.Context, key string) error {
	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return nil
		}
	}
	return wrap(KindDeleteFailed, key, err)
}

func (g *SignedGateway) URL(ctx context.Context, key string) (string, error) {
	if g.publicBase != "" {
		return PublicURL(g.publicBase, key), nil
	}
	req, err := g.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(g.readTTL))
	if err != nil {
		return "", wrap(KindURLFailed, key, err)
	}
	return req.URL, nil
}
