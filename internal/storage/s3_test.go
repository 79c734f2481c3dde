package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringsReader(s string) io.Reader { return strings.NewReader(s) }

type fakeS3 struct {
	pages     [][]types.Object
	listErr   error
	deleted   []string
	deleteErr error
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	idx := 0
	if in.ContinuationToken != nil {
		idx = int(aws.ToString(in.ContinuationToken)[0] - '0')
	}
	out := &s3.ListObjectsV2Output{}
	if idx < len(f.pages) {
		out.Contents = f.pages[idx]
	}
	if idx+1 < len(f.pages) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(string(rune('0' + idx + 1)))
	}
	return out, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

type fakePresigner struct {
	baseURL     string
	err         error
	contentType string
}

func (f *fakePresigner) PresignPutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.contentType = aws.ToString(in.ContentType)
	return &v4.PresignedHTTPRequest{
		URL:    f.baseURL + "/" + aws.ToString(in.Key) + "?X-Amz-Signature=put",
		Method: http.MethodPut,
		SignedHeader: http.Header{
			"Host":         []string{"example"},
			"Content-Type": []string{aws.ToString(in.ContentType)},
		},
	}, nil
}

func (f *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{URL: f.baseURL + "/" + aws.ToString(in.Key) + "?X-Amz-Signature=get"}, nil
}

type receivedPut struct {
	mu            sync.Mutex
	path          string
	contentType   string
	contentLength int64
	body          string
}

func newPutServer(t *testing.T, status int) (*httptest.Server, *receivedPut) {
	t.Helper()
	got := &receivedPut{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		got.mu.Lock()
		got.path = r.URL.Path
		got.contentType = r.Header.Get("Content-Type")
		got.contentLength = r.ContentLength
		got.body = string(data)
		got.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestSignedUploadPutsWithMatchingHeaders(t *testing.T) {
	srv, got := newPutServer(t, http.StatusOK)
	p := &fakePresigner{baseURL: srv.URL}
	g := newSignedGateway(&fakeS3{}, p, srv.Client(), testStorageConfig())

	key := g.Key("u1", "cat.png")
	err := g.Upload(context.Background(), key, stringsReader("meow!"), 5, "image/png")
	require.NoError(t, err)

	assert.Equal(t, "image/png", p.contentType)
	assert.Equal(t, "/"+key, got.path)
	assert.Equal(t, "image/png", got.contentType)
	assert.Equal(t, int64(5), got.contentLength)
	assert.Equal(t, "meow!", got.body)
}

func TestSignedUploadNon2xxFails(t *testing.T) {
	srv, _ := newPutServer(t, http.StatusForbidden)
	g := newSignedGateway(&fakeS3{}, &fakePresigner{baseURL: srv.URL}, srv.Client(), testStorageConfig())

	err := g.Upload(context.Background(), "u1/k-cat.png", stringsReader("x"), 1, "image/png")
	require.Error(t, err)
	assert.Equal(t, KindUploadFailed, KindOf(err))
	assert.Contains(t, err.Error(), "403")
}

func TestSignedUploadPresignFailure(t *testing.T) {
	g := newSignedGateway(&fakeS3{}, &fakePresigner{err: errors.New("no creds")}, http.DefaultClient, testStorageConfig())

	err := g.Upload(context.Background(), "u1/k", stringsReader("x"), 1, "image/png")
	assert.Equal(t, KindUploadFailed, KindOf(err))
}

func TestSignUploadExposesHeaders(t *testing.T) {
	g := newSignedGateway(&fakeS3{}, &fakePresigner{baseURL: "https://acct.r2.cloudflarestorage.com/media"}, nil, testStorageConfig())

	req, err := g.SignUpload(context.Background(), "u1/k-clip.mp4", "")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "application/octet-stream", req.Headers["Content-Type"])
	_, hasHost := req.Headers["Host"]
	assert.False(t, hasHost)
	assert.True(t, req.ExpiresAt.After(g.now()))
}

func TestSignedListFollowsPagesAndPrefix(t *testing.T) {
	fake := &fakeS3{pages: [][]types.Object{
		{{Key: aws.String("u1/a"), ETag: aws.String(`"1"`)}},
		{{Key: aws.String("u1/b"), ETag: aws.String(`"2"`)}, {Key: aws.String("u2/c")}},
	}}
	g := newSignedGateway(fake, &fakePresigner{}, nil, testStorageConfig())

	objects, err := g.List(context.Background(), "u1/")
	require.NoError(t, err)
	assert.Equal(t, []Object{{Key: "u1/a", ETag: "1"}, {Key: "u1/b", ETag: "2"}}, objects)
}

func TestSignedListError(t *testing.T) {
	g := newSignedGateway(&fakeS3{listErr: errors.New("down")}, &fakePresigner{}, nil, testStorageConfig())

	_, err := g.List(context.Background(), "u1/")
	assert.Equal(t, KindListFailed, KindOf(err))
}

func TestSignedDelete(t *testing.T) {
	fake := &fakeS3{}
	g := newSignedGateway(fake, &fakePresigner{}, nil, testStorageConfig())

	require.NoError(t, g.Delete(context.Background(), "u1/k"))
	assert.Equal(t, []string{"u1/k"}, fake.deleted)

	fake.deleteErr = errors.New("denied")
	assert.Equal(t, KindDeleteFailed, KindOf(g.Delete(context.Background(), "u1/k")))
}

func TestSignedURLFallsBackToPresignedGet(t *testing.T) {
	cfg := testStorageConfig()
	cfg.PublicBaseURL = ""
	g := newSignedGateway(&fakeS3{}, &fakePresigner{baseURL: "https://r2"}, nil, cfg)

	u, err := g.URL(context.Background(), "u1/k")
	require.NoError(t, err)
	assert.Equal(t, "https://r2/u1/k?X-Amz-Signature=get", u)
}
