// Package catalog turns one catalog record into its upsert statement, an
// optional cover-image update and a diagnostic trail.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/catalogix/blob"
	"github.com/teranos/catalogix/imaging"
	"github.com/teranos/catalogix/logger"
)

// Options configure a Processor.
type Options struct {
	Format         imaging.Format
	MaxWidth       int
	Quality        int
	MaxBytes       int64
	AvatarFallback bool
	StoreBodies    bool
	// Transform overrides imaging.ResizeAndEncode, for tests.
	Transform TransformFunc
}

// Result is everything one record contributes to the artifacts. It is built
// once and not modified afterwards.
type Result struct {
	Index      int
	Identity   Identity
	Upsert     string
	Update     string // "" when no image was stored
	Logs       []string
	Projection Projection
	Duration   time.Duration
}

// HasImage reports whether the record produced an image-update statement.
func (r Result) HasImage() bool { return r.Update != "" }

// Trail is a record's ordered diagnostic log.
type Trail struct {
	lines []string
}

// Add appends one line. Lines are kept on one line and never close the
// surrounding comment block.
func (t *Trail) Add(line string) {
	line = strings.ReplaceAll(line, "\r", " ")
	line = strings.ReplaceAll(line, "\n", " ")
	line = strings.ReplaceAll(line, "*/", "* /")
	t.lines = append(t.lines, line)
}

// Addf appends a formatted line.
func (t *Trail) Addf(format string, args ...interface{}) {
	t.Add(fmt.Sprintf(format, args...))
}

// Lines returns the collected lines.
func (t *Trail) Lines() []string { return t.lines }

// Processor runs the per-record pipeline. It is safe for concurrent use.
type Processor struct {
	fetcher   Fetcher
	store     blob.Store
	transform TransformFunc
	opts      Options
	logger    *zap.SugaredLogger
}

// NewProcessor builds a Processor. A nil store disables images and bodies.
func NewProcessor(fetcher Fetcher, store blob.Store, opts Options) *Processor {
	if opts.Format == "" {
		opts.Format = imaging.JPEG
	}
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = 1200
	}
	transform := opts.Transform
	if transform == nil {
		transform = defaultTransform(opts.MaxWidth, opts.Format, opts.Quality)
	}
	return &Processor{
		fetcher:   fetcher,
		store:     store,
		transform: transform,
		opts:      opts,
		logger:    logger.ComponentLogger("ix.catalog"),
	}
}

// Process runs identity, normalization, image and body handling for one
// record, strictly in that order. It always returns a Result with an upsert
// statement; failures only add lines to the trail.
func (p *Processor) Process(ctx context.Context, index int, rec Record) Result {
	start := time.Now()
	var trail Trail

	id := Resolve(rec.Get(KeyID...), rec.Get(KeyAuthor...), rec.Get(KeyName...), rec.Get(KeySource...))

	fields, notes := Normalize(rec)
	for _, note := range notes {
		trail.Add(note)
	}

	coverURL := p.imageStep(ctx, id, fields, &trail)
	bodyURL := p.bodyStep(ctx, id, fields, &trail)

	result := Result{
		Index:      index,
		Identity:   id,
		Upsert:     UpsertStatement(id, fields),
		Logs:       trail.Lines(),
		Projection: NewProjection(id, fields, coverURL, bodyURL),
		Duration:   time.Since(start),
	}
	if coverURL != "" {
		result.Update = UpdateStatement(id, coverURL)
	}

	logger.LoggerFromContext(ctx).Named("ix.catalog").Debugw("record processed",
		logger.FieldIndex, index,
		logger.FieldRecordID, id.InternalID,
		logger.FieldWithImage, result.HasImage(),
		logger.FieldDurationMS, result.Duration.Milliseconds())
	return result
}

// Degraded is the result for a record whose processing panicked: identity and
// fields only, no image. If even that panics, the record is reduced to its
// trail.
func (p *Processor) Degraded(index int, rec Record, cause interface{}) (result Result) {
	var trail Trail
	trail.Addf("processing aborted: %v", cause)

	defer func() {
		if r := recover(); r != nil {
			trail.Addf("metadata could not be built: %v", r)
			p.logger.Errorw("record dropped", logger.FieldIndex, index, logger.FieldError, r)
			result = Result{Index: index, Logs: trail.Lines()}
		}
	}()

	id := Resolve(rec.Get(KeyID...), rec.Get(KeyAuthor...), rec.Get(KeyName...), rec.Get(KeySource...))
	fields, _ := Normalize(rec)
	return Result{
		Index:      index,
		Identity:   id,
		Upsert:     UpsertStatement(id, fields),
		Logs:       trail.Lines(),
		Projection: NewProjection(id, fields, "", ""),
	}
}
