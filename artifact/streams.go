package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/teranos/catalogix/am"
	"github.com/teranos/catalogix/errors"
)

// Artifact file names inside out_dir.
const (
	UpsertFile = "upsert.sql"
	UpdateFile = "update_urls.sql"
)

const (
	upsertBanner = "-- Auto-generated upsert SQL\n"
	updateBanner = "-- Auto-generated update URLs SQL\n"
)

// Header is the debug block at the top of both SQL streams. Credentials are
// only ever reported as set or unset.
type Header struct {
	RunID           string
	SchemaVersion   string
	Input           string
	Workers         int
	Storage         string
	StorageMode     string
	Bucket          string
	AccountID       string
	PublicURLPrefix string
	AccessKeyID     string // "set" or "unset"
	SecretKey       string // "set" or "unset"
}

// NewHeader fills a Header from the resolved configuration. storage is the
// active store's description, or "none".
func NewHeader(cfg *am.Config, runID, schemaVersion, input, storage string) Header {
	s := cfg.Storage
	return Header{
		RunID:           runID,
		SchemaVersion:   schemaVersion,
		Input:           input,
		Workers:         cfg.Ingest.Workers,
		Storage:         storage,
		StorageMode:     s.Mode,
		Bucket:          s.Bucket,
		AccountID:       s.AccountID,
		PublicURLPrefix: s.PublicURLPrefix,
		AccessKeyID:     am.SetOrUnset(s.AccessKeyID),
		SecretKey:       am.SetOrUnset(s.SecretAccessKey),
	}
}

// HeaderPrefix starts the schema version line, for readers of the artifacts.
const HeaderPrefix = "-- schema_version: "

// Render returns the header as "-- key: value" lines.
func (h Header) Render() string {
	var b strings.Builder
	line := func(key, value string) {
		value = strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
		fmt.Fprintf(&b, "-- %s: %s\n", key, value)
	}
	line("run_id", h.RunID)
	b.WriteString(HeaderPrefix + h.SchemaVersion + "\n")
	line("input", h.Input)
	line("workers", fmt.Sprint(h.Workers))
	line("storage", h.Storage)
	line("storage.mode", h.StorageMode)
	line("storage.bucket", h.Bucket)
	line("storage.account_id", h.AccountID)
	line("storage.public_url_prefix", h.PublicURLPrefix)
	line("storage.access_key_id", h.AccessKeyID)
	line("storage.secret_access_key", h.SecretKey)
	return b.String()
}

// WriteStreams writes upsert.sql and update_urls.sql into dir.
func WriteStreams(dir string, header Header, o Outcome) error {
	rendered := header.Render()
	if err := writeFile(dir, UpsertFile, upsertBanner+rendered+o.Upsert); err != nil {
		return err
	}
	return writeFile(dir, UpdateFile, updateBanner+rendered+o.Update)
}

// WritePlaceholders writes the empty-run marker into both SQL files so
// downstream steps find them.
func WritePlaceholders(dir, reason string) error {
	content := "-- Empty: " + reason + "\n"
	if err := writeFile(dir, UpsertFile, content); err != nil {
		return err
	}
	return writeFile(dir, UpdateFile, content)
}

// writeFile replaces dir/name through a temp file and rename.
func writeFile(dir, name, content string) error {
	if err := os.MkdirAll(dir, am.DefaultDirPermissions); err != nil {
		return errors.Wrapf(err, "failed to create output directory %s", dir)
	}

	path := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, "."+name+"-*")
	if err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := os.Chmod(tmp.Name(), am.DefaultFilePermissions); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
