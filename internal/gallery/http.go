package gallery

import (
	"errors"
	"net/http"

	"github.com/abduss/mediadrive/internal/result"
	"github.com/abduss/mediadrive/internal/storage"
	"github.com/gin-gonic/gin"
)

// Env resolves the caller's controller.
type Env interface {
	Controller(c *gin.Context) *Controller
}

// RegisterRoutes mounts media operations under /media on an already
// protected group.
func RegisterRoutes(group *gin.RouterGroup, env Env, maxUploadBytes int64) {
	handler := &httpHandler{env: env, maxUploadBytes: maxUploadBytes}
	media := group.Group("/media")
	{
		media.GET("", handler.view)
		media.POST("", handler.upload)
		media.DELETE("", handler.delete)
		media.POST("/upload-url", handler.uploadURL)
		media.PUT("/menu", handler.openMenu)
		media.DELETE("/menu", handler.closeMenu)
	}
}

type httpHandler struct {
	env            Env
	maxUploadBytes int64
}

type uploadURLRequest struct {
	Name        string `json:"name" binding:"required"`
	ContentType string `json:"content_type"`
}

type menuRequest struct {
	Key string `json:"key" binding:"required"`
}

type uploadResponse struct {
	Key  string `json:"key"`
	View View   `json:"view"`
}

func (h *httpHandler) view(c *gin.Context) {
	ctrl := h.env.Controller(c)
	if c.Query("refresh") == "true" {
		if err := ctrl.Refresh(c.Request.Context()); err != nil {
			fail(c, err)
			return
		}
	}
	view, err := ctrl.View(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result.Ok(view))
}

func (h *httpHandler) upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+(1<<20))
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, result.Fail[any](result.KindBadRequest, "Could not read the upload: "+err.Error()))
		return
	}
	files := form.File["file"]
	if len(files) != 1 {
		fail(c, ErrNoFile)
		return
	}
	header := files[0]
	if h.maxUploadBytes > 0 && header.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, result.Fail[any](result.KindBadRequest, "The file is too large."))
		return
	}

	body, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, result.Fail[any](result.KindBadRequest, "Could not read the upload: "+err.Error()))
		return
	}
	defer body.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ctrl := h.env.Controller(c)
	key, err := ctrl.Upload(c.Request.Context(), File{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        body,
	})
	if err != nil {
		fail(c, err)
		return
	}

	view, err := ctrl.View(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result.Ok(uploadResponse{Key: key, View: view}))
}

func (h *httpHandler) delete(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, result.Fail[any](result.KindBadRequest, "key is required"))
		return
	}

	ctrl := h.env.Controller(c)
	if err := ctrl.Delete(c.Request.Context(), key, c.Query("confirm") == "true"); err != nil {
		fail(c, err)
		return
	}
	view, err := ctrl.View(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result.Ok(view))
}

func (h *httpHandler) uploadURL(c *gin.Context) {
	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, result.Fail[any](result.KindBadRequest, err.Error()))
		return
	}

	signed, err := h.env.Controller(c).SignUpload(c.Request.Context(), req.Name, req.ContentType)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result.Ok(signed))
}

func (h *httpHandler) openMenu(c *gin.Context) {
	var req menuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, result.Fail[any](result.KindBadRequest, err.Error()))
		return
	}
	if err := h.env.Controller(c).OpenMenu(req.Key); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result.Ok(gin.H{"open_menu": req.Key}))
}

func (h *httpHandler) closeMenu(c *gin.Context) {
	h.env.Controller(c).CloseMenu()
	c.JSON(http.StatusOK, result.Ok(gin.H{"open_menu": ""}))
}

func fail(c *gin.Context, err error) {
	rerr := ToResult(err)
	c.JSON(rerr.HTTPStatus(), result.FailWith[any](rerr))
}

// ToResult converts controller and storage errors into user-facing failures.
func ToResult(err error) *result.Error {
	switch {
	case errors.Is(err, ErrNoSession):
		return &result.Error{Kind: result.KindUnauthenticated, Message: "You are not signed in."}
	case errors.Is(err, ErrNoFile):
		return &result.Error{Kind: result.KindBadRequest, Message: "Select exactly one file."}
	case errors.Is(err, ErrConfirmationRequired):
		return &result.Error{Kind: result.KindConfirmationRequired, Message: "Confirm the deletion to continue."}
	case errors.Is(err, ErrForeignKey):
		return &result.Error{Kind: result.KindForbidden, Message: "This file does not belong to you."}
	case errors.Is(err, ErrUnknownItem):
		return &result.Error{Kind: result.KindBadRequest, Message: "That file is not in your gallery."}
	case errors.Is(err, ErrSigningUnsupported):
		return &result.Error{Kind: result.KindBadRequest, Message: "Signed uploads are not enabled."}
	}

	switch storage.KindOf(err) {
	case storage.KindUploadFailed:
		return &result.Error{Kind: result.KindUploadFailed, Message: MsgUploadFailed}
	case storage.KindDeleteFailed:
		return &result.Error{Kind: result.KindDeleteFailed, Message: "Could not delete the file. Please try again."}
	case storage.KindListFailed:
		return &result.Error{Kind: result.KindListFailed, Message: "Could not load your files."}
	case storage.KindURLFailed:
		return &result.Error{Kind: result.KindURLFailed, Message: "Could not create a link for the file."}
	}
	return &result.Error{Kind: result.KindUnknown, Message: "Error: " + err.Error()}
}
