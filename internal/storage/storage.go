package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store is the object-store contract the attachment path depends on: put bytes
// under a key, get them back or learn they are absent.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

var ErrNotExist = errors.New("object does not exist")

// AttachmentKey builds the storage key for one uploaded file.
func AttachmentKey(taskID, updateID int64, ts time.Time, filename string) string {
	return fmt.Sprintf("task-attachments/%d/%d/%d-%s", taskID, updateID, ts.UnixMilli(), filename)
}

// Dir is a filesystem-backed Store rooted at a directory. Keys map to paths
// under the root; path traversal in keys is rejected.
type Dir struct {
	Root string
}

func NewDir(root string) (Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Dir{}, err
	}
	return Dir{Root: root}, nil
}

func (d Dir) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(d.Root, clean), nil
}

func (d Dir) Put(ctx context.Context, key, contentType string, data []byte) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (d Dir) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := d.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	return data, nil
}
