package gallery

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedEnv struct {
	ctrl *Controller
}

func (e fixedEnv) Controller(*gin.Context) *Controller { return e.ctrl }

func newMediaRouter(ctrl *Controller, maxUpload int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r.Group("/v1"), fixedEnv{ctrl: ctrl}, maxUpload)
	return r
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for name, content := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
		h.Set("Content-Type", "image/png")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestUploadHandlerStoresSingleFile(t *testing.T) {
	gw := newMemoryGateway()
	ctrl := NewController(signedIn("u1"), gw, nil)
	defer ctrl.Close()
	r := newMediaRouter(ctrl, 1<<20)

	body, ct := multipartBody(t, map[string]string{"cat.png": "meow"})
	req := httptest.NewRequest(http.MethodPost, "/v1/media", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var out struct {
		Success bool `json:"success"`
		Data    struct {
			Key  string `json:"key"`
			View View   `json:"view"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.True(t, out.Success)
	require.Len(t, out.Data.View.Items, 1)
	assert.Equal(t, out.Data.Key, out.Data.View.Items[0].Key)
	assert.Equal(t, "meow", gw.objects[out.Data.Key])
}

func TestUploadHandlerRejectsTwoFiles(t *testing.T) {
	ctrl := NewController(signedIn("u1"), newMemoryGateway(), nil)
	defer ctrl.Close()
	r := newMediaRouter(ctrl, 1<<20)

	body, ct := multipartBody(t, map[string]string{"a.png": "1", "b.png": "2"})
	req := httptest.NewRequest(http.MethodPost, "/v1/media", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteHandlerNeedsConfirm(t *testing.T) {
	gw := newMemoryGateway()
	gw.objects["u1/a"] = "x"
	ctrl := NewController(signedIn("u1"), gw, nil)
	defer ctrl.Close()
	r := newMediaRouter(ctrl, 0)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/v1/media?key=u1/a", nil))
	assert.Equal(t, http.StatusPreconditionRequired, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/v1/media?key=u1/a&confirm=true", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, gw.objects, "u1/a")

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/v1/media?key=u2/a&confirm=true", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestViewHandlerListFailure(t *testing.T) {
	gw := newMemoryGateway()
	gw.listErr = assert.AnError
	ctrl := NewController(signedIn("u1"), gw, nil)
	defer ctrl.Close()
	r := newMediaRouter(ctrl, 0)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/media", nil))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), `"kind":"list_failed"`)
}

func TestMenuHandlers(t *testing.T) {
	gw := newMemoryGateway()
	gw.objects["u1/a"] = "x"
	ctrl := NewController(signedIn("u1"), gw, nil)
	defer ctrl.Close()
	r := newMediaRouter(ctrl, 0)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/media", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	req := httptest.NewRequest(http.MethodPut, "/v1/media/menu", bytes.NewBufferString(`{"key":"u1/a"}`))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/v1/media/menu", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUploadURLHandlerUnsupported(t *testing.T) {
	ctrl := NewController(signedIn("u1"), newMemoryGateway(), nil)
	defer ctrl.Close()
	r := newMediaRouter(ctrl, 0)

	req := httptest.NewRequest(http.MethodPost, "/v1/media/upload-url", bytes.NewBufferString(`{"name":"clip.mp4","content_type":"video/mp4"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
