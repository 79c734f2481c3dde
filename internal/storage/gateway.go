// Package storage talks to the S3-compatible object store holding user media.
package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Strategy selects how bytes reach the object store.
type Strategy string

const (
	// StrategyDirect uploads with the store's native client.
	StrategyDirect Strategy = "direct"
	// StrategySigned presigns a PUT and uploads over plain HTTP.
	StrategySigned Strategy = "signed"
	// StrategyNone is reported by the unconfigured gateway.
	StrategyNone Strategy = "none"
)

// Object is one listed entry.
type Object struct {
	Key  string `json:"key"`
	ETag string `json:"etag"`
}

// Gateway is the object store boundary used by the gallery.
type Gateway interface {
	Strategy() Strategy
	// Key builds a fresh, collision-resistant key under {userID}/.
	Key(userID, filename string) string
	// List returns every object under prefix; an empty result is not an error.
	List(ctx context.Context, prefix string) ([]Object, error)
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// Delete removes key; a missing key is not an error.
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// UserPrefix is the namespace every key of userID lives under.
func UserPrefix(userID string) string {
	return userID + "/"
}

// OwnedBy reports whether key lies in userID's namespace.
func OwnedBy(key, userID string) bool {
	return userID != "" && strings.HasPrefix(key, UserPrefix(userID)) && len(key) > len(UserPrefix(userID))
}

// PublicURL joins the public base URL and key.
func PublicURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + key
}

func directKey(userID string) string {
	return UserPrefix(userID) + uuid.NewString()
}

func signedKey(userID, filename string) string {
	return UserPrefix(userID) + uuid.NewString() + "-" + SanitizeName(filename)
}

// SanitizeName reduces a client-supplied filename to a safe key segment.
func SanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func filterPrefix(objects []Object, prefix string) []Object {
	out := make([]Object, 0, len(objects))
	for _, o := range objects {
		if strings.HasPrefix(o.Key, prefix) {
			out = append(out, o)
		}
	}
	return out
}
