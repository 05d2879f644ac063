package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/teranos/catalogix/blob"
	"github.com/teranos/catalogix/errors"
	"github.com/teranos/catalogix/ixgest/catalog"
)

const (
	// ManifestFile sits next to the batch files.
	ManifestFile = "manifest.json"
	// ManifestVersion is the manifest layout version.
	ManifestVersion = "1.0.0"

	batchFilePrefix = "batch_"
)

// BatchOptions configure WriteBatches.
type BatchOptions struct {
	ItemsPerBatch int    // default 25
	MaxSizeKB     int    // 0 disables the size cap
	RunID         string // recorded in the manifest
	Source        string // input the projections came from
	Now           func() time.Time
}

// BatchConfig is the chunking configuration recorded in the manifest.
type BatchConfig struct {
	ItemsPerBatch int `json:"items_per_batch"`
	MaxSizeKB     int `json:"max_size_kb"`
}

// BatchFile describes one written batch.
type BatchFile struct {
	Filename string `json:"filename"`
	Count    int    `json:"count"`
}

// Manifest indexes the batch files of one run.
type Manifest struct {
	Version      string      `json:"version"`
	GeneratedAt  string      `json:"generated_at"`
	RunID        string      `json:"run_id,omitempty"`
	SourceFile   string      `json:"source_file"`
	TotalItems   int         `json:"total_items"`
	TotalBatches int         `json:"total_batches"`
	BatchConfig  BatchConfig `json:"batch_config"`
	Batches      []BatchFile `json:"batches"`
}

// BatchFileName is the zero-based, zero-padded name of batch i.
func BatchFileName(i int) string {
	return fmt.Sprintf("%s%03d.json", batchFilePrefix, i)
}

// Chunk splits projections into batches of at most itemsPerBatch items and,
// when maxSizeKB > 0, at most maxSizeKB of compact JSON. A single item larger
// than the size cap still gets a batch of its own.
func Chunk(projections []catalog.Projection, itemsPerBatch, maxSizeKB int) ([][]catalog.Projection, error) {
	if itemsPerBatch <= 0 {
		itemsPerBatch = 25
	}
	maxBytes := maxSizeKB * 1024

	var (
		batches [][]catalog.Projection
		current []catalog.Projection
		size    int
	)
	for _, p := range projections {
		encoded, err := json.Marshal(p)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode projection %s", p.ID)
		}
		itemSize := len(encoded)

		exceedsItems := len(current) >= itemsPerBatch
		exceedsSize := maxBytes > 0 && size+itemSize > maxBytes
		if len(current) > 0 && (exceedsItems || exceedsSize) {
			batches = append(batches, current)
			current, size = nil, 0
		}
		current = append(current, p)
		size += itemSize
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches, nil
}

// WriteBatches clears stale batch files in dir, writes the new batches as
// indented JSON and then the manifest.
func WriteBatches(dir string, projections []catalog.Projection, opts BatchOptions) (Manifest, error) {
	if opts.ItemsPerBatch <= 0 {
		opts.ItemsPerBatch = 25
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	batches, err := Chunk(projections, opts.ItemsPerBatch, opts.MaxSizeKB)
	if err != nil {
		return Manifest{}, err
	}

	if err := removeStaleBatches(dir); err != nil {
		return Manifest{}, err
	}

	manifest := Manifest{
		Version:      ManifestVersion,
		GeneratedAt:  opts.Now().UTC().Format(time.RFC3339),
		RunID:        opts.RunID,
		SourceFile:   filepath.Base(opts.Source),
		TotalBatches: len(batches),
		BatchConfig:  BatchConfig{ItemsPerBatch: opts.ItemsPerBatch, MaxSizeKB: opts.MaxSizeKB},
		Batches:      []BatchFile{},
	}

	for i, batch := range batches {
		name := BatchFileName(i)
		data, err := json.MarshalIndent(batch, "", "  ")
		if err != nil {
			return Manifest{}, errors.Wrapf(err, "failed to encode %s", name)
		}
		if err := writeFile(dir, name, string(data)); err != nil {
			return Manifest{}, err
		}
		manifest.Batches = append(manifest.Batches, BatchFile{Filename: name, Count: len(batch)})
		manifest.TotalItems += len(batch)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return Manifest{}, errors.Wrap(err, "failed to encode manifest")
	}
	if err := writeFile(dir, ManifestFile, string(data)); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

func removeStaleBatches(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to list %s", dir)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), batchFilePrefix) || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return errors.Wrapf(err, "failed to remove stale %s", e.Name())
		}
	}
	return nil
}

// UploadBatches stores every batch file and the manifest under raw-data/.
// It returns the public URLs keyed by file name.
func UploadBatches(ctx context.Context, store blob.Store, dir string, m Manifest) (map[string]string, error) {
	if store == nil {
		return nil, errors.Wrap(errors.ErrNotConfigured, "batch upload needs object storage")
	}

	names := make([]string, 0, len(m.Batches)+1)
	for _, b := range m.Batches {
		names = append(names, b.Filename)
	}
	names = append(names, ManifestFile)

	urls := make(map[string]string, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return urls, errors.Wrapf(err, "failed to read %s", name)
		}
		url, err := store.Put(ctx, blob.RawDataKey(name), data, "application/json")
		if err != nil {
			return urls, errors.Wrapf(err, "failed to upload %s", name)
		}
		urls[name] = url
	}
	return urls, nil
}
