package am

import (
	"github.com/spf13/viper"
)

// Defaults mirror the publishing workflow: ten records in flight, 25 items per
// batch file, images capped at 1200px wide.
const (
	DefaultWorkers      = 10
	DefaultBatchSize    = 25
	DefaultBatchMaxKB   = 50
	DefaultSQLChunkKB   = 500
	DefaultMaxWidth     = 1200
	DefaultFormat       = "jpeg"
	DefaultQuality      = 85
	DefaultFetchTimeout = 30 // seconds
	DefaultMaxBytes     = 20 << 20
	DefaultOutDir       = "data"
	DefaultImagesDir    = "data/images"
	DefaultBatchDir     = "data/ingest"
	DefaultUserAgent    = "catalogix/1.0"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Ingest defaults
	v.SetDefault("ingest.workers", DefaultWorkers)
	v.SetDefault("ingest.batch_size", DefaultBatchSize)
	v.SetDefault("ingest.batch_max_kb", DefaultBatchMaxKB)
	v.SetDefault("ingest.sql_chunk_kb", DefaultSQLChunkKB)
	v.SetDefault("ingest.out_dir", DefaultOutDir)
	v.SetDefault("ingest.batch_dir", DefaultBatchDir)
	v.SetDefault("ingest.write_batches", true)
	v.SetDefault("ingest.upload_batches", false)

	// Image defaults
	v.SetDefault("image.max_width", DefaultMaxWidth)
	v.SetDefault("image.format", DefaultFormat)
	v.SetDefault("image.quality", DefaultQuality)
	v.SetDefault("image.fetch_timeout_seconds", DefaultFetchTimeout)
	v.SetDefault("image.max_bytes", DefaultMaxBytes)
	v.SetDefault("image.images_dir", DefaultImagesDir)
	v.SetDefault("image.avatar_fallback", false)
	v.SetDefault("image.user_agent", DefaultUserAgent)

	// Storage defaults: auto only uploads when fully configured
	v.SetDefault("storage.mode", StorageAuto)
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.account_id", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.public_url_prefix", "")
}

// BindSensitiveEnvVars binds storage settings to both the CATALOGIX_* names and
// the variables the publishing workflow already exports.
func BindSensitiveEnvVars(v *viper.Viper) {
	_ = v.BindEnv("storage.bucket", "CATALOGIX_STORAGE_BUCKET", "R2_BUCKET")
	_ = v.BindEnv("storage.account_id", "CATALOGIX_STORAGE_ACCOUNT_ID", "CLOUDFLARE_ACCOUNT_ID")
	_ = v.BindEnv("storage.access_key_id", "CATALOGIX_STORAGE_ACCESS_KEY_ID", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("storage.secret_access_key", "CATALOGIX_STORAGE_SECRET_ACCESS_KEY", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("storage.public_url_prefix", "CATALOGIX_STORAGE_PUBLIC_URL_PREFIX", "R2_PUBLIC_URL_PREFIX")
}
