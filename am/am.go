// Package am resolves catalogix configuration ("I am").
//
// A Config is resolved once at startup and handed down the call chain; no
// package reads configuration from globals after that.
package am

import "time"

// Config represents the resolved catalogix configuration
type Config struct {
	Ingest  IngestConfig  `mapstructure:"ingest" toml:"ingest" json:"ingest" yaml:"ingest"`
	Image   ImageConfig   `mapstructure:"image" toml:"image" json:"image" yaml:"image"`
	Storage StorageConfig `mapstructure:"storage" toml:"storage" json:"storage" yaml:"storage"`
}

// IngestConfig configures scheduling and artifact output
type IngestConfig struct {
	Workers       int    `mapstructure:"workers" toml:"workers" json:"workers" yaml:"workers"`                      // Records in flight at once (default: 10)
	BatchSize     int    `mapstructure:"batch_size" toml:"batch_size" json:"batch_size" yaml:"batch_size"`          // Projections per batch file (default: 25)
	BatchMaxKB    int    `mapstructure:"batch_max_kb" toml:"batch_max_kb" json:"batch_max_kb" yaml:"batch_max_kb"`  // Size cap per batch file, 0 = none (default: 50)
	SQLChunkKB    int    `mapstructure:"sql_chunk_kb" toml:"sql_chunk_kb" json:"sql_chunk_kb" yaml:"sql_chunk_kb"`  // Split SQL files for size-limited executors, 0 = off (default: 500)
	OutDir        string `mapstructure:"out_dir" toml:"out_dir" json:"out_dir" yaml:"out_dir"`                      // upsert.sql and update_urls.sql
	BatchDir      string `mapstructure:"batch_dir" toml:"batch_dir" json:"batch_dir" yaml:"batch_dir"`              // batch_NNN.json and manifest.json
	WriteBatches  bool   `mapstructure:"write_batches" toml:"write_batches" json:"write_batches" yaml:"write_batches"`
	UploadBatches bool   `mapstructure:"upload_batches" toml:"upload_batches" json:"upload_batches" yaml:"upload_batches"` // Also store batches under raw-data/
}

// ImageConfig configures image acquisition and transform
type ImageConfig struct {
	MaxWidth            int    `mapstructure:"max_width" toml:"max_width" json:"max_width" yaml:"max_width"`
	Format              string `mapstructure:"format" toml:"format" json:"format" yaml:"format"`    // jpeg or png
	Quality             int    `mapstructure:"quality" toml:"quality" json:"quality" yaml:"quality"` // JPEG quality 1-100
	FetchTimeoutSeconds int    `mapstructure:"fetch_timeout_seconds" toml:"fetch_timeout_seconds" json:"fetch_timeout_seconds" yaml:"fetch_timeout_seconds"`
	MaxBytes            int64  `mapstructure:"max_bytes" toml:"max_bytes" json:"max_bytes" yaml:"max_bytes"`
	ImagesDir           string `mapstructure:"images_dir" toml:"images_dir" json:"images_dir" yaml:"images_dir"`
	AvatarFallback      bool   `mapstructure:"avatar_fallback" toml:"avatar_fallback" json:"avatar_fallback" yaml:"avatar_fallback"` // Generated avatar when nothing else is known
	UserAgent           string `mapstructure:"user_agent" toml:"user_agent" json:"user_agent" yaml:"user_agent"`
}

// StorageConfig configures where processed images and bodies are persisted.
// Credentials are also bound to the R2_* / CLOUDFLARE_ACCOUNT_ID variables
// used by the publishing workflow.
type StorageConfig struct {
	Mode            string `mapstructure:"mode" toml:"mode" json:"mode" yaml:"mode"` // auto, r2, local, none
	Bucket          string `mapstructure:"bucket" toml:"bucket" json:"bucket" yaml:"bucket"`
	AccountID       string `mapstructure:"account_id" toml:"account_id" json:"account_id" yaml:"account_id"`
	Endpoint        string `mapstructure:"endpoint" toml:"endpoint" json:"endpoint" yaml:"endpoint"` // Overrides the account-derived R2 endpoint
	Region          string `mapstructure:"region" toml:"region" json:"region" yaml:"region"`
	AccessKeyID     string `mapstructure:"access_key_id" toml:"access_key_id" json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" toml:"secret_access_key" json:"secret_access_key" yaml:"secret_access_key"`
	PublicURLPrefix string `mapstructure:"public_url_prefix" toml:"public_url_prefix" json:"public_url_prefix" yaml:"public_url_prefix"`
}

// Storage modes
const (
	StorageAuto  = "auto"
	StorageR2    = "r2"
	StorageLocal = "local"
	StorageNone  = "none"
)

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

const redacted = "********"

// FetchTimeout returns the image fetch timeout as a duration
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Image.FetchTimeoutSeconds) * time.Second
}

// RemoteComplete reports whether every value the R2 store needs is present.
func (s StorageConfig) RemoteComplete() bool {
	return len(s.MissingRemote()) == 0
}

// MissingRemote lists the storage keys an R2 store still needs.
func (s StorageConfig) MissingRemote() []string {
	var missing []string
	if s.Bucket == "" {
		missing = append(missing, "storage.bucket")
	}
	if s.AccountID == "" && s.Endpoint == "" {
		missing = append(missing, "storage.account_id")
	}
	if s.AccessKeyID == "" {
		missing = append(missing, "storage.access_key_id")
	}
	if s.SecretAccessKey == "" {
		missing = append(missing, "storage.secret_access_key")
	}
	if s.PublicURLPrefix == "" {
		missing = append(missing, "storage.public_url_prefix")
	}
	return missing
}

// Redacted returns a copy safe to print: credentials are masked.
func (c Config) Redacted() Config {
	if c.Storage.AccessKeyID != "" {
		c.Storage.AccessKeyID = redacted
	}
	if c.Storage.SecretAccessKey != "" {
		c.Storage.SecretAccessKey = redacted
	}
	return c
}

// SetOrUnset renders a secret for headers and logs without revealing it.
func SetOrUnset(s string) string {
	if s == "" {
		return "unset"
	}
	return "set"
}
