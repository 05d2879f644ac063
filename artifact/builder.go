// Package artifact assembles per-record results into the SQL streams and
// batch files a run leaves behind.
package artifact

import (
	"strings"

	"github.com/teranos/catalogix/ixgest/catalog"
)

// Outcome is the finalized aggregate of one run.
type Outcome struct {
	Upsert       string
	Update       string
	Total        int
	WithImage    int
	WithoutImage int
	Projections  []catalog.Projection

	// Per-record pieces of each stream, for splitting without cutting a
	// statement away from its trail.
	UpsertParts []Part
	UpdateParts []Part
}

// Part is one record's slice of a stream: its statement, if any, and its trail.
type Part struct {
	SQL        string
	Statements int
}

// ImagePercent is the share of records that got an image, 0 for an empty run.
func (o Outcome) ImagePercent() float64 {
	if o.Total == 0 {
		return 0
	}
	return float64(o.WithImage) / float64(o.Total) * 100
}

// Builder accumulates results. It is not safe for concurrent use; the batch
// collector is its only caller.
type Builder struct {
	upsert      strings.Builder
	update      strings.Builder
	total       int
	withImage   int
	projections []catalog.Projection
	upsertParts []Part
	updateParts []Part
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends one result in arrival order. Its trail follows its statements
// in both streams.
func (b *Builder) Add(r catalog.Result) {
	b.total++
	if r.Update != "" {
		b.withImage++
	}

	block := LogBlock(r.Logs)
	b.upsertParts = addPart(&b.upsert, b.upsertParts, r.Upsert, block)
	b.updateParts = addPart(&b.update, b.updateParts, r.Update, block)

	if r.Upsert != "" {
		b.projections = append(b.projections, r.Projection)
	}
}

// Outcome finalizes the counters and streams.
func (b *Builder) Outcome() Outcome {
	return Outcome{
		Upsert:       b.upsert.String(),
		Update:       b.update.String(),
		Total:        b.total,
		WithImage:    b.withImage,
		WithoutImage: b.total - b.withImage,
		Projections:  b.projections,
		UpsertParts:  b.upsertParts,
		UpdateParts:  b.updateParts,
	}
}

func addPart(stream *strings.Builder, parts []Part, statement, block string) []Part {
	if statement == "" && block == "" {
		return parts
	}
	stream.WriteString(statement)
	stream.WriteString(block)

	p := Part{SQL: statement + block}
	if statement != "" {
		p.Statements = 1
	}
	return append(parts, p)
}

// LogBlock renders a trail as a SQL comment, or "" for an empty trail.
func LogBlock(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return "/* LOGS:\n" + strings.Join(lines, "\n") + "\n*/\n"
}
