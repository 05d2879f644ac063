package am

import (
	"strings"

	"github.com/teranos/catalogix/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Workers: the semaphore needs at least one slot
	if c.Ingest.Workers < 1 {
		return invalid(errors.Newf("ingest.workers must be >= 1, got %d", c.Ingest.Workers))
	}
	if c.Ingest.BatchSize < 1 {
		return invalid(errors.Newf("ingest.batch_size must be >= 1, got %d", c.Ingest.BatchSize))
	}
	// Batch size cap: 0 = no byte cap, negative = invalid
	if c.Ingest.BatchMaxKB < 0 {
		return invalid(errors.Newf("ingest.batch_max_kb must be >= 0, got %d", c.Ingest.BatchMaxKB))
	}
	if c.Ingest.SQLChunkKB < 0 {
		return invalid(errors.Newf("ingest.sql_chunk_kb must be >= 0, got %d", c.Ingest.SQLChunkKB))
	}
	if c.Ingest.OutDir == "" {
		return invalid(errors.New("ingest.out_dir cannot be empty"))
	}
	if c.Ingest.WriteBatches && c.Ingest.BatchDir == "" {
		return invalid(errors.New("ingest.batch_dir cannot be empty when write_batches is enabled"))
	}

	if c.Image.MaxWidth < 1 {
		return invalid(errors.Newf("image.max_width must be >= 1, got %d", c.Image.MaxWidth))
	}
	switch strings.ToLower(c.Image.Format) {
	case "jpeg", "jpg", "png":
	default:
		return invalid(errors.Newf("image.format must be jpeg or png, got %q", c.Image.Format))
	}
	if c.Image.Quality < 1 || c.Image.Quality > 100 {
		return invalid(errors.Newf("image.quality must be between 1 and 100, got %d", c.Image.Quality))
	}
	// The fetch timeout bounds every record, so it must be finite
	if c.Image.FetchTimeoutSeconds <= 0 {
		return invalid(errors.Newf("image.fetch_timeout_seconds must be > 0, got %d", c.Image.FetchTimeoutSeconds))
	}
	if c.Image.MaxBytes <= 0 {
		return invalid(errors.Newf("image.max_bytes must be > 0, got %d", c.Image.MaxBytes))
	}

	switch c.Storage.Mode {
	case StorageAuto, StorageNone:
	case StorageR2:
		if missing := c.Storage.MissingRemote(); len(missing) > 0 {
			err := invalid(errors.Newf("storage.mode is r2 but %s not set", strings.Join(missing, ", ")))
			return errors.WithHint(err, "set R2_BUCKET, CLOUDFLARE_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY and R2_PUBLIC_URL_PREFIX, or use --storage local")
		}
	case StorageLocal:
		if c.Image.ImagesDir == "" {
			return invalid(errors.New("image.images_dir cannot be empty when storage.mode is local"))
		}
	default:
		return invalid(errors.Newf("storage.mode must be one of auto, r2, local, none, got %q", c.Storage.Mode))
	}

	return nil
}

func invalid(err error) error {
	return errors.Wrap(errors.ErrInvalidConfig, err.Error())
}
