package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/teranos/catalogix/errors"
)

// SQLManifestFile indexes the split SQL files inside out_dir.
const SQLManifestFile = "sql_manifest.json"

const (
	upsertChunkPrefix = "upsert_"
	updateChunkPrefix = "update_urls_"
)

// SQLChunk describes one split SQL file.
type SQLChunk struct {
	File       string `json:"file"`
	Statements int    `json:"statements"`
	SizeBytes  int    `json:"size_bytes"`
}

// SQLManifest lists the split files of both streams in apply order.
type SQLManifest struct {
	RunID           string     `json:"run_id,omitempty"`
	MaxKB           int        `json:"max_kb"`
	TotalChunks     int        `json:"total_chunks"`
	TotalStatements int        `json:"total_statements"`
	Upsert          []SQLChunk `json:"upsert"`
	Update          []SQLChunk `json:"update"`
}

// SQLChunkName is the zero-based, zero-padded name of chunk i of a stream.
func SQLChunkName(prefix string, i int) string {
	return fmt.Sprintf("%s%03d.sql", prefix, i)
}

// SplitSQL groups parts into chunks of at most maxKB of SQL. A part is never
// cut, so a statement always stays whole and keeps its trail; a single part
// larger than the cap gets a chunk of its own.
func SplitSQL(parts []Part, maxKB int) [][]Part {
	maxBytes := maxKB * 1024

	var (
		chunks  [][]Part
		current []Part
		size    int
	)
	for _, p := range parts {
		if len(current) > 0 && size+len(p.SQL) > maxBytes {
			chunks = append(chunks, current)
			current, size = nil, 0
		}
		current = append(current, p)
		size += len(p.SQL)
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// WriteSQLChunks splits both streams for executors with a request size limit.
// Every chunk carries the banner and header so it verifies and applies on
// its own. Stale chunks from an earlier run are removed first.
func WriteSQLChunks(dir string, header Header, o Outcome, maxKB int) (SQLManifest, error) {
	m := SQLManifest{RunID: header.RunID, MaxKB: maxKB, Upsert: []SQLChunk{}, Update: []SQLChunk{}}
	if maxKB <= 0 {
		return m, nil
	}
	if err := removeStaleChunks(dir); err != nil {
		return m, err
	}

	rendered := header.Render()
	var err error
	if m.Upsert, err = writeChunks(dir, upsertChunkPrefix, upsertBanner+rendered, o.UpsertParts, maxKB); err != nil {
		return m, err
	}
	if m.Update, err = writeChunks(dir, updateChunkPrefix, updateBanner+rendered, o.UpdateParts, maxKB); err != nil {
		return m, err
	}

	for _, stream := range [][]SQLChunk{m.Upsert, m.Update} {
		m.TotalChunks += len(stream)
		for _, c := range stream {
			m.TotalStatements += c.Statements
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return m, errors.Wrap(err, "failed to encode SQL manifest")
	}
	if err := writeFile(dir, SQLManifestFile, string(data)); err != nil {
		return m, err
	}
	return m, nil
}

func writeChunks(dir, prefix, preamble string, parts []Part, maxKB int) ([]SQLChunk, error) {
	written := []SQLChunk{}
	for i, chunk := range SplitSQL(parts, maxKB) {
		var b strings.Builder
		b.WriteString(preamble)
		statements := 0
		for _, p := range chunk {
			b.WriteString(p.SQL)
			statements += p.Statements
		}

		name := SQLChunkName(prefix, i)
		if err := writeFile(dir, name, b.String()); err != nil {
			return written, err
		}
		written = append(written, SQLChunk{File: name, Statements: statements, SizeBytes: b.Len()})
	}
	return written, nil
}

func removeStaleChunks(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to list %s", dir)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		if !strings.HasPrefix(name, upsertChunkPrefix) && !strings.HasPrefix(name, updateChunkPrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return errors.Wrapf(err, "failed to remove stale %s", name)
		}
	}
	return nil
}
