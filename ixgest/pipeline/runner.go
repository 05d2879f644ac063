// Package pipeline runs one ingest: load the input, process every record
// under the concurrency cap and write the artifacts.
package pipeline

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/catalogix/am"
	"github.com/teranos/catalogix/artifact"
	"github.com/teranos/catalogix/blob"
	"github.com/teranos/catalogix/errors"
	"github.com/teranos/catalogix/imaging"
	"github.com/teranos/catalogix/internal/httpclient"
	"github.com/teranos/catalogix/ixgest/catalog"
	"github.com/teranos/catalogix/logger"
	"github.com/teranos/catalogix/pulse"
	"github.com/teranos/catalogix/pulse/batch"
)

// Runner executes ingest runs for one resolved configuration.
type Runner struct {
	cfg       *am.Config
	fetcher   catalog.Fetcher
	store     blob.Store
	storeSet  bool
	transform catalog.TransformFunc
	emitter   pulse.ProgressEmitter
	logger    *zap.SugaredLogger
	now       func() time.Time
	newRunID  func() string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithFetcher replaces the SSRF-guarded HTTP client.
func WithFetcher(f catalog.Fetcher) Option {
	return func(r *Runner) { r.fetcher = f }
}

// WithStore replaces the store selected from configuration. A nil store
// disables images.
func WithStore(s blob.Store) Option {
	return func(r *Runner) { r.store, r.storeSet = s, true }
}

// WithTransform replaces the image transform.
func WithTransform(t catalog.TransformFunc) Option {
	return func(r *Runner) { r.transform = t }
}

// WithEmitter sets the progress emitter (default: discard).
func WithEmitter(e pulse.ProgressEmitter) Option {
	return func(r *Runner) { r.emitter = e }
}

// WithLogger sets the runner's logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithClock fixes the time used for manifests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithRunID fixes the run id.
func WithRunID(id string) Option {
	return func(r *Runner) { r.newRunID = func() string { return id } }
}

// Summary describes a finished run.
type Summary struct {
	RunID        string            `json:"run_id"`
	Input        string            `json:"input"`
	Empty        bool              `json:"empty"`
	EmptyReason  string            `json:"empty_reason,omitempty"`
	Total        int               `json:"total"`
	WithImage    int               `json:"with_image"`
	WithoutImage int               `json:"without_image"`
	ImagePercent float64           `json:"image_percent"`
	Batches      int               `json:"batches"`
	SQLChunks    int               `json:"sql_chunks"`
	Uploaded     map[string]string `json:"uploaded,omitempty"`
	Stats        batch.Stats       `json:"stats"`
	Duration     time.Duration     `json:"duration"`
}

// Fields flattens the summary for progress emitters.
func (s Summary) Fields(outDir string) map[string]interface{} {
	return map[string]interface{}{
		"run_id":            s.RunID,
		"out_dir":           outDir,
		SummaryTotal:        s.Total,
		SummaryWithImage:    s.WithImage,
		SummaryWithoutImage: s.WithoutImage,
		SummaryImagePercent: s.ImagePercent,
		"batches":           s.Batches,
		"sql_chunks":        s.SQLChunks,
		"peak_in_flight":    s.Stats.PeakInFlight,
		"duration_ms":       s.Duration.Milliseconds(),
	}
}

// New builds a Runner. cfg must already be validated.
func New(cfg *am.Config, opts ...Option) (*Runner, error) {
	r := &Runner{
		cfg:      cfg,
		emitter:  pulse.NopEmitter{},
		logger:   logger.ComponentLogger("ix"),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.fetcher == nil {
		r.fetcher = httpclient.NewSaferClientWithOptions(cfg.FetchTimeout(), httpclient.Options{
			UserAgent: cfg.Image.UserAgent,
		})
	}
	if !r.storeSet {
		store, err := blob.FromConfig(cfg)
		if err != nil {
			return nil, errors.WithHint(err, "set storage.mode = \"none\" to run without object storage")
		}
		r.store = store
	}
	return r, nil
}

// StoreDescription names the active store for headers and logs.
func (r *Runner) StoreDescription() string {
	if r.store == nil {
		return "none"
	}
	return r.store.Describe()
}

// Run ingests input. Record-level failures only show up in the trails;
// the returned error is reserved for unreadable or invalid input and failed
// artifact writes. Empty input writes placeholders and succeeds.
func (r *Runner) Run(ctx context.Context, input string) (Summary, error) {
	start := time.Now()
	runID := r.newRunID()
	ctx = logger.WithRunID(ctx, runID)
	log := r.logger.With(logger.FieldRunID, runID)
	summary := Summary{RunID: runID, Input: input}

	r.emitter.EmitStage("load", "Processing input file: "+input)
	src, err := ResolveInput(ctx, input, log)
	if err != nil {
		r.emitter.EmitError("load", err)
		return summary, err
	}
	defer src.Cleanup()

	data, err := src.Read()
	if err != nil {
		r.emitter.EmitError("load", err)
		return summary, err
	}

	records, err := catalog.DecodeRecords(data)
	if errors.Is(err, catalog.ErrEmptyInput) {
		return r.writeEmpty(summary, catalog.EmptyReason(err), start)
	}
	if err != nil {
		r.emitter.EmitError("parse", err)
		return summary, err
	}
	r.emitter.EmitInfo(pluralModels(len(records)) + " found in the input")

	format, err := imaging.ParseFormat(r.cfg.Image.Format)
	if err != nil {
		return summary, errors.Wrap(err, "image.format")
	}
	processor := catalog.NewProcessor(r.fetcher, r.store, catalog.Options{
		Format:         format,
		MaxWidth:       r.cfg.Image.MaxWidth,
		Quality:        r.cfg.Image.Quality,
		MaxBytes:       r.cfg.Image.MaxBytes,
		AvatarFallback: r.cfg.Image.AvatarFallback,
		StoreBodies:    true,
		Transform:      r.transform,
	})

	r.emitter.EmitStage("process", "Starting concurrent image processing for "+pluralModels(len(records))+" via "+r.StoreDescription())
	builder := artifact.NewBuilder()
	summary.Stats = batch.Run(ctx, records, batch.Options[catalog.Record, catalog.Result]{
		Workers: r.cfg.Ingest.Workers,
		OnPanic: processor.Degraded,
		Logger:  log.Named("pulse.batch"),
	}, processor.Process, func(_ int, res catalog.Result) {
		builder.Add(res)
	})
	outcome := builder.Outcome()
	r.emitter.EmitProgress(outcome.Total, map[string]interface{}{"type": "models"})

	r.emitter.EmitStage("write", "Writing artifacts to "+r.cfg.Ingest.OutDir)
	header := artifact.NewHeader(r.cfg, runID, catalog.SchemaVersion, input, r.StoreDescription())
	if err := artifact.WriteStreams(r.cfg.Ingest.OutDir, header, outcome); err != nil {
		r.emitter.EmitError("write", err)
		return summary, err
	}
	chunks, err := artifact.WriteSQLChunks(r.cfg.Ingest.OutDir, header, outcome, r.cfg.Ingest.SQLChunkKB)
	if err != nil {
		r.emitter.EmitError("write", err)
		return summary, err
	}
	summary.SQLChunks = chunks.TotalChunks

	if r.cfg.Ingest.WriteBatches {
		manifest, err := artifact.WriteBatches(r.cfg.Ingest.BatchDir, outcome.Projections, artifact.BatchOptions{
			ItemsPerBatch: r.cfg.Ingest.BatchSize,
			MaxSizeKB:     r.cfg.Ingest.BatchMaxKB,
			RunID:         runID,
			Source:        input,
			Now:           r.now,
		})
		if err != nil {
			r.emitter.EmitError("batches", err)
			return summary, err
		}
		summary.Batches = manifest.TotalBatches

		if r.cfg.Ingest.UploadBatches {
			summary.Uploaded = r.uploadBatches(ctx, manifest, log)
		}
	}

	summary.Total = outcome.Total
	summary.WithImage = outcome.WithImage
	summary.WithoutImage = outcome.WithoutImage
	summary.ImagePercent = outcome.ImagePercent()
	summary.Duration = time.Since(start)

	log.Infow("ingest complete",
		logger.FieldCount, summary.Total,
		logger.FieldWithImage, summary.WithImage,
		logger.FieldDurationMS, summary.Duration.Milliseconds())
	r.emitter.EmitComplete(summary.Fields(r.cfg.Ingest.OutDir))
	return summary, nil
}

// uploadBatches mirrors the batch files into object storage. Upload problems
// are reported but never fail the run: the local files are complete.
func (r *Runner) uploadBatches(ctx context.Context, m artifact.Manifest, log *zap.SugaredLogger) map[string]string {
	if r.store == nil {
		r.emitter.EmitInfo("object storage not configured, batch upload skipped")
		return nil
	}
	urls, err := artifact.UploadBatches(ctx, r.store, r.cfg.Ingest.BatchDir, m)
	if err != nil {
		log.Warnw("batch upload failed", logger.FieldError, err)
		r.emitter.EmitError("upload", err)
	}
	return urls
}

func (r *Runner) writeEmpty(summary Summary, reason string, start time.Time) (Summary, error) {
	r.emitter.EmitInfo("WARNING: " + reason + ". Generating empty SQL files.")
	if err := artifact.WritePlaceholders(r.cfg.Ingest.OutDir, reason); err != nil {
		r.emitter.EmitError("write", err)
		return summary, err
	}
	summary.Empty = true
	summary.EmptyReason = reason
	summary.Duration = time.Since(start)
	r.emitter.EmitComplete(summary.Fields(r.cfg.Ingest.OutDir))
	return summary, nil
}

func pluralModels(n int) string {
	if n == 1 {
		return "1 model"
	}
	return strconv.Itoa(n) + " models"
}
