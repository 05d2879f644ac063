package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/catalogix/am"
	"github.com/teranos/catalogix/display"
	"github.com/teranos/catalogix/ixgest/pipeline"
	"github.com/teranos/catalogix/logger"
	"github.com/teranos/catalogix/pulse"
	"github.com/teranos/catalogix/sym"
)

// IxCmd runs one ingest
var IxCmd = NewIxCmd()

// NewIxCmd builds the ix command with fresh flags.
func NewIxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ix <input>",
		Short: sym.Short("ix", "Ingest a catalog export into SQL and batch artifacts"),
		Long: sym.IX + ` ix: ingest a catalog export

Reads a JSON array of model records (local path or any go-getter source such
as https:// or s3://), resolves each record's identity, fetches and stores its
cover image, and writes:

  <out-dir>/upsert.sql        one INSERT OR REPLACE per record
  <out-dir>/update_urls.sql   one UPDATE per stored cover image
  <batch-dir>/batch_NNN.json  chunked projections for the import API
  <batch-dir>/manifest.json   index of the batch files

Per-record failures never stop the run; they are recorded in the LOGS block
appended to both SQL files.

Examples:
  catalogix ix data/models.json
  catalogix ix data/models.json --storage local --images-dir public/covers
  catalogix ix https://example.com/export.json -w 4 --no-batches
  catalogix ix data/models.json --json | jq .`,
		Args: cobra.ExactArgs(1),
		RunE: runIx,
	}

	f := cmd.Flags()
	f.String("out-dir", "", "Directory for upsert.sql and update_urls.sql (default ingest.out_dir)")
	f.IntP("workers", "w", 0, "Records processed concurrently (default ingest.workers)")
	f.Int("batch-size", 0, "Projections per batch file (default ingest.batch_size)")
	f.Int("sql-chunk-kb", 0, "Also split the SQL into files of at most this many KB, 0 disables (default ingest.sql_chunk_kb)")
	f.String("batch-dir", "", "Directory for batch files and manifest.json (default ingest.batch_dir)")
	f.Bool("no-batches", false, "Skip writing batch files")
	f.Bool("upload-batches", false, "Also store batch files under raw-data/ in object storage")
	f.String("images-dir", "", "Directory for processed images when storage is local")
	f.String("storage", "", "Storage mode: auto, r2, local, none")
	f.String("format", "", "Output image format: jpeg or png")
	f.Bool("avatar-fallback", false, "Use a generated avatar for records without any image")
	f.Bool("json", false, "Emit progress as JSON lines on stdout")
	addConfigFlag(cmd)
	return cmd
}

func runIx(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyIxFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	verbosity, _ := cmd.Flags().GetCount("verbose")
	var emitter pulse.ProgressEmitter
	if display.ShouldOutputJSON(cmd) {
		emitter = pipeline.NewJSONEmitterTo(cmd.OutOrStdout())
	} else {
		emitter = pipeline.NewCLIEmitterTo(verbosity, cmd.ErrOrStderr())
	}

	runner, err := pipeline.New(cfg,
		pipeline.WithEmitter(emitter),
		pipeline.WithLogger(logger.ComponentLogger("ix")))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = runner.Run(ctx, args[0])
	return err
}

// applyIxFlags overrides configuration with the flags the user actually set.
func applyIxFlags(cmd *cobra.Command, cfg *am.Config) {
	f := cmd.Flags()
	if f.Changed("out-dir") {
		cfg.Ingest.OutDir, _ = f.GetString("out-dir")
	}
	if f.Changed("workers") {
		cfg.Ingest.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("batch-size") {
		cfg.Ingest.BatchSize, _ = f.GetInt("batch-size")
	}
	if f.Changed("sql-chunk-kb") {
		cfg.Ingest.SQLChunkKB, _ = f.GetInt("sql-chunk-kb")
	}
	if f.Changed("batch-dir") {
		cfg.Ingest.BatchDir, _ = f.GetString("batch-dir")
	}
	if noBatches, _ := f.GetBool("no-batches"); noBatches {
		cfg.Ingest.WriteBatches = false
	}
	if upload, _ := f.GetBool("upload-batches"); upload {
		cfg.Ingest.UploadBatches = true
	}
	if f.Changed("images-dir") {
		cfg.Image.ImagesDir, _ = f.GetString("images-dir")
	}
	if f.Changed("storage") {
		cfg.Storage.Mode, _ = f.GetString("storage")
	}
	if f.Changed("format") {
		cfg.Image.Format, _ = f.GetString("format")
	}
	if fallback, _ := f.GetBool("avatar-fallback"); fallback {
		cfg.Image.AvatarFallback = true
	}
}
