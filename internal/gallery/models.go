package gallery

import (
	"io"
	"path"
	"strings"
)

// MediaKind decides how an item is rendered.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

// StatusKind is the phase of the latest upload.
type StatusKind string

const (
	StatusUploading StatusKind = "uploading"
	StatusSuccess   StatusKind = "success"
	StatusError     StatusKind = "error"
)

// Status messages.
const (
	MsgUploading     = "Uploading..."
	MsgUploadSuccess = "Upload complete."
	MsgUploadFailed  = "Upload failed. Please try again."
)

// MediaItem is one file in the gallery.
type MediaItem struct {
	Key  string    `json:"key"`
	Name string    `json:"name"`
	ID   string    `json:"id"`
	URL  string    `json:"url"`
	Kind MediaKind `json:"kind"`
}

// UploadStatus is the transient outcome banner of the latest upload.
type UploadStatus struct {
	Kind    StatusKind `json:"kind"`
	Message string     `json:"message"`
}

// File is a single selected upload.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// View is a snapshot of the gallery for rendering.
type View struct {
	UserID   string        `json:"user_id"`
	Items    []MediaItem   `json:"items"`
	Status   *UploadStatus `json:"status"`
	OpenMenu string        `json:"open_menu,omitempty"`
}

var videoExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".ogg":  true,
}

// Classify picks the media kind from the file extension alone.
func Classify(name string) MediaKind {
	if videoExtensions[strings.ToLower(path.Ext(name))] {
		return KindVideo
	}
	return KindImage
}

// DisplayName is the last path segment of a key.
func DisplayName(key string) string {
	return path.Base(key)
}
