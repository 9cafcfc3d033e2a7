package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/xxxsen/docqa/internal/config"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

// Object is a downloaded file. The caller closes Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Store keeps raw uploaded files. Upload never replaces an existing key; it
// fails with an error matching errors.ErrConflict instead.
type Store interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.FileStoreConfig) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("file_store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported file store type: %s", cfg.Type)
	}
	return factory(cfg.Data)
}

// ObjectKey lays objects out per owner.
func ObjectKey(ownerID, filename string) string {
	return ownerID + "/" + filename
}

// cleanKey rejects keys that would escape the store root.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", fmt.Errorf("%w: file key is required", appErr.ErrInvalid)
	}
	cleaned := path.Clean("/" + key)
	if cleaned == "/" || cleaned != "/"+strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("%w: invalid file key %q", appErr.ErrInvalid, key)
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}

func conflictError(key string) error {
	return fmt.Errorf("%w: object %s already exists", appErr.ErrConflict, key)
}

func notFoundError(key string) error {
	return fmt.Errorf("%w: object %s", appErr.ErrNotFound, key)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}
