package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	appErr "github.com/xxxsen/coachrag/internal/pkg/errors"
)

type localConfig struct {
	Dir string `json:"dir"`
}

// localStore serves files below dir. Keys are slash separated and may not
// leave the root.
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
	return NewLocalStore(config.Dir)
}

func NewLocalStore(dir string) (Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &localStore{dir: abs}, nil
}

func (s *localStore) Type() string {
	return "local"
}

func (s *localStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	_ = ctx
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open %s: %w", key, appErr.ErrNotFound)
		}
		return nil, err
	}
	return f, nil
}

func (s *localStore) resolve(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.Contains(key, "\\") || filepath.IsAbs(key) {
		return "", fmt.Errorf("invalid file key %q: %w", key, appErr.ErrInvalidInput)
	}
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("file key %q escapes store root: %w", key, appErr.ErrInvalidInput)
	}
	return path, nil
}
