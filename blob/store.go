// Package blob persists processed images, document bodies and batch files
// and hands back the public URL they will be served from.
package blob

import (
	"context"
	"strings"

	"github.com/teranos/catalogix/am"
	"github.com/teranos/catalogix/errors"
)

// Key prefixes inside the bucket.
const (
	ImagePrefix   = "models/"
	BodyPrefix    = "bodies/"
	RawDataPrefix = "raw-data/"
)

// Store is an object-storage sink. Put must be safe for concurrent use with
// distinct keys.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (publicURL string, err error)
	Describe() string
}

// keySeparators are flattened so an internal id is always one key segment.
var keySeparators = strings.NewReplacer("/", "-", "\\", "-")

// KeyName is internalID as a single key segment. The SQL keeps the internal
// id verbatim; only storage keys are flattened.
func KeyName(internalID string) string {
	return keySeparators.Replace(internalID)
}

// ImageKey is the key of a record's processed image.
func ImageKey(internalID, ext string) string {
	return ImagePrefix + KeyName(internalID) + "." + ext
}

// BodyKey is the key of a record's document body.
func BodyKey(internalID string) string {
	return BodyPrefix + KeyName(internalID) + ".md"
}

// RawDataKey is the key of an exported batch file.
func RawDataKey(name string) string {
	return RawDataPrefix + name
}

// PublicURL joins a public prefix and a key with exactly one slash.
func PublicURL(prefix, key string) string {
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(key, "/")
}

// FromConfig selects the store for storage.mode. A nil Store with a nil
// error means storage is disabled and records proceed without images.
func FromConfig(cfg *am.Config) (Store, error) {
	s := cfg.Storage
	switch s.Mode {
	case am.StorageNone:
		return nil, nil
	case am.StorageAuto:
		if !s.RemoteComplete() {
			return nil, nil
		}
		return NewR2Store(s)
	case am.StorageR2:
		if !s.RemoteComplete() {
			return nil, errors.Wrapf(errors.ErrNotConfigured, "r2 storage missing %s", strings.Join(s.MissingRemote(), ", "))
		}
		return NewR2Store(s)
	case am.StorageLocal:
		return NewLocalStore(cfg.Image.ImagesDir, s.PublicURLPrefix)
	default:
		return nil, errors.Newf("unknown storage mode %q", s.Mode)
	}
}
