// Package storage defines where image files live.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotExist is returned when a key has no stored object.
var ErrNotExist = errors.New("storage: object does not exist")

// FileStore persists image bytes under slash-separated keys such as
// "uploads/batch_1700000000_ab12cd34/CS001_a.jpg". Remove is idempotent.
type FileStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// CleanKey normalizes a key and rejects absolute paths and parent traversal.
func CleanKey(key string) (string, error) {
	key = strings.ReplaceAll(key, `\`, "/")
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return cleaned, nil
}

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// ContentType derives the MIME type of a stored image from its extension.
func ContentType(key string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(key))]; ok {
		return ct
	}
	return "application/octet-stream"
}
