package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/xxxsen/docqa/internal/model"
)

type localConfig struct {
	Dir string `json:"dir"`
}

type localStore struct {
	dir string
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Store, error) {
	config := &localConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("local store dir is required")
	}
	return &localStore{dir: config.Dir}, nil
}

func (s *localStore) path(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, filepath.FromSlash(cleaned)), nil
}

func (s *localStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_ = contentType
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return conflictError(key)
		}
		return err
	}
	if _, err := out.Write(data); err != nil {
		_ = out.Close()
		_ = os.Remove(p)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(p)
		return err
	}
	return ctx.Err()
}

// Download infers the content type from the extension; the local store keeps
// no metadata.
func (s *localStore) Download(ctx context.Context, key string) (*Object, error) {
	_ = ctx
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFoundError(key)
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Object{
		Body:        f,
		ContentType: model.MediaKindOfFile(p).ContentType(),
		Size:        info.Size(),
	}, nil
}

func (s *localStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
