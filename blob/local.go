package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/teranos/catalogix/am"
	"github.com/teranos/catalogix/errors"
)

// ErrKeyOutsideStore marks a key that would be written outside the store.
var ErrKeyOutsideStore = errors.New("key escapes store directory")

// LocalStore writes into a directory. Image keys lose their models/ prefix so
// images land at {dir}/{internalId}.{ext}; other keys keep their subdirectory.
type LocalStore struct {
	dir          string
	publicPrefix string
}

// NewLocalStore creates dir if needed. With an empty publicPrefix the
// returned URLs are the slash-separated file paths.
func NewLocalStore(dir, publicPrefix string) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("local store needs a directory")
	}
	if err := os.MkdirAll(dir, am.DefaultDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", dir)
	}
	return &LocalStore{dir: dir, publicPrefix: publicPrefix}, nil
}

// Path is where key is stored on disk. Keys that would resolve outside the
// store's directory are rejected.
func (s *LocalStore) Path(key string) (string, error) {
	rel := filepath.FromSlash(strings.TrimPrefix(key, ImagePrefix))
	if !filepath.IsLocal(rel) {
		return "", errors.Wrapf(ErrKeyOutsideStore, "key %q", key)
	}
	return filepath.Join(s.dir, rel), nil
}

// Put writes data to Path(key) through a temp file so readers never see a
// partial image.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.Path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), am.DefaultDirPermissions); err != nil {
		return "", errors.Wrapf(err, "failed to create %s", filepath.Dir(path))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return "", errors.Wrap(err, "failed to create image file")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "failed to write image file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "failed to write image file")
	}
	if err := os.Chmod(tmp.Name(), am.DefaultFilePermissions); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "failed to set permissions")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrapf(err, "failed to move image into %s", path)
	}

	if s.publicPrefix == "" {
		return filepath.ToSlash(path), nil
	}
	return PublicURL(s.publicPrefix, key), nil
}

// Describe identifies the store in headers and logs.
func (s *LocalStore) Describe() string {
	return "local dir=" + s.dir
}
