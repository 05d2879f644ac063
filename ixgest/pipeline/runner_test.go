package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/catalogix/am"
	"github.com/teranos/catalogix/artifact"
	"github.com/teranos/catalogix/blob"
	"github.com/teranos/catalogix/errors"
	"github.com/teranos/catalogix/internal/httpclient"
	qtesting "github.com/teranos/catalogix/internal/testing"
	"github.com/teranos/catalogix/ixgest/catalog"
)

func testConfig(t *testing.T) *am.Config {
	dir := t.TempDir()
	return &am.Config{
		Ingest: am.IngestConfig{
			Workers:      3,
			BatchSize:    2,
			BatchMaxKB:   50,
			OutDir:       filepath.Join(dir, "out"),
			BatchDir:     filepath.Join(dir, "ingest"),
			WriteBatches: true,
		},
		Image: am.ImageConfig{
			MaxWidth:            64,
			Format:              "jpeg",
			Quality:             80,
			FetchTimeoutSeconds: 5,
			MaxBytes:            1 << 20,
			ImagesDir:           filepath.Join(dir, "images"),
		},
		Storage: am.StorageConfig{Mode: am.StorageNone},
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 200, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func imageServer(t *testing.T) *httptest.Server {
	data := pngBytes(t, 128, 32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(data)
		case "/garbage.png":
			w.Write([]byte("definitely not an image"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunEndToEnd(t *testing.T) {
	srv := imageServer(t)
	cfg := testConfig(t)
	store, err := blob.NewLocalStore(cfg.Image.ImagesDir, "https://cdn.example")
	require.NoError(t, err)

	input := qtesting.WriteInput(t, "models.json", `[
		{"id": "acme/ok", "raw_image_url": "`+srv.URL+`/ok.png", "likes": 1},
		{"id": "acme/missing", "raw_image_url": "`+srv.URL+`/missing.png"},
		{"id": "acme/garbage", "raw_image_url": "`+srv.URL+`/garbage.png"},
		{"id": "acme/plain", "body_content": "# Plain"}
	]`)

	r, err := New(cfg,
		WithFetcher(httpclient.WrapClient(srv.Client())),
		WithStore(store),
		WithLogger(zaptest.NewLogger(t).Sugar()),
		WithRunID("run-test"))
	require.NoError(t, err)

	summary, err := r.Run(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "run-test", summary.RunID)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.WithImage)
	assert.Equal(t, 3, summary.WithoutImage)
	assert.Equal(t, 2, summary.Batches)
	assert.LessOrEqual(t, summary.Stats.PeakInFlight, 3)

	upsert := readFile(t, filepath.Join(cfg.Ingest.OutDir, artifact.UpsertFile))
	assert.Equal(t, 4, strings.Count(upsert, "INSERT OR REPLACE INTO models"))
	assert.Contains(t, upsert, "-- run_id: run-test\n")
	assert.Contains(t, upsert, "Download failed: HTTP error: 404 Not Found")
	assert.Contains(t, upsert, "Transform failed: decode failed")

	update := readFile(t, filepath.Join(cfg.Ingest.OutDir, artifact.UpdateFile))
	assert.Contains(t, update,
		"UPDATE models SET cover_image_url = 'https://cdn.example/models/huggingface-acme-ok.jpg' WHERE id = 'huggingface-acme-ok';\n")
	assert.Equal(t, 1, strings.Count(update, "UPDATE models"))

	stored := readFile(t, filepath.Join(cfg.Image.ImagesDir, "huggingface-acme-ok.jpg"))
	img, format, err := image.Decode(strings.NewReader(stored))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 64, img.Bounds().Dx())

	assert.Equal(t, "# Plain", readFile(t, filepath.Join(cfg.Image.ImagesDir, "bodies", "huggingface-acme-plain.md")))

	var manifest artifact.Manifest
	require.NoError(t, json.Unmarshal([]byte(readFile(t, filepath.Join(cfg.Ingest.BatchDir, artifact.ManifestFile))), &manifest))
	assert.Equal(t, 4, manifest.TotalItems)
	assert.Equal(t, "run-test", manifest.RunID)
	assert.Equal(t, "models.json", manifest.SourceFile)

	batchData := readFile(t, filepath.Join(cfg.Ingest.BatchDir, "batch_000.json"))
	assert.NotContains(t, batchData, "body_content\"")
}

func TestRunSplitsSQL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.SQLChunkKB = 1
	cfg.Ingest.WriteBatches = false

	var records []string
	for i := 0; i < 8; i++ {
		records = append(records, `{"id": "org/m`+string(rune('0'+i))+`", "description": "`+strings.Repeat("d", 300)+`"}`)
	}
	input := qtesting.WriteInput(t, "models.json", "["+strings.Join(records, ",")+"]")

	r, err := New(cfg, WithStore(nil))
	require.NoError(t, err)
	summary, err := r.Run(context.Background(), input)
	require.NoError(t, err)

	var m artifact.SQLManifest
	require.NoError(t, json.Unmarshal([]byte(readFile(t, filepath.Join(cfg.Ingest.OutDir, artifact.SQLManifestFile))), &m))
	assert.Equal(t, m.TotalChunks, summary.SQLChunks)
	assert.Greater(t, len(m.Upsert), 1)
	assert.Equal(t, 8, m.TotalStatements)

	var joined []string
	for _, c := range m.Upsert {
		joined = append(joined, statementLines(readFile(t, filepath.Join(cfg.Ingest.OutDir, c.File)))...)
	}
	whole := statementLines(readFile(t, filepath.Join(cfg.Ingest.OutDir, artifact.UpsertFile)))
	assert.Equal(t, whole, joined)
	for _, line := range joined {
		assert.True(t, strings.HasSuffix(line, ";"), line)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	input := qtesting.WriteInput(t, "models.json", `[
		{"id": "a/one", "likes": 3, "tags": ["x"]},
		{"id": "b/two", "description": "it's here"},
		{"id": "c/three", "velocity_score": 1.5}
	]`)

	run := func() (string, string) {
		cfg := testConfig(t)
		r, err := New(cfg, WithStore(nil))
		require.NoError(t, err)
		_, err = r.Run(context.Background(), input)
		require.NoError(t, err)
		return readFile(t, filepath.Join(cfg.Ingest.OutDir, artifact.UpsertFile)),
			readFile(t, filepath.Join(cfg.Ingest.OutDir, artifact.UpdateFile))
	}

	upsert1, update1 := run()
	upsert2, update2 := run()

	// arrival order may differ between runs, the statement set may not
	assert.ElementsMatch(t, statementLines(upsert1), statementLines(upsert2))
	assert.ElementsMatch(t, statementLines(update1), statementLines(update2))
	assert.Len(t, statementLines(upsert1), 3)
}

func statementLines(script string) []string {
	var out []string
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(line, "INSERT") || strings.HasPrefix(line, "UPDATE") {
			out = append(out, line)
		}
	}
	return out
}

func TestRunPartialFailureContainment(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.Workers = 2

	var calls atomic.Int64
	fetcher := fetcherFunc(func(ctx context.Context, url string, max int64) ([]byte, error) {
		calls.Add(1)
		if strings.HasSuffix(url, "/bad") {
			return nil, errors.New("connection reset")
		}
		return []byte("img"), nil
	})

	input := qtesting.WriteInput(t, "models.json", `[
		{"id": "a/1", "raw_image_url": "https://img.example/ok"},
		{"id": "a/2", "raw_image_url": "https://img.example/bad"},
		{"id": "a/3", "raw_image_url": "https://img.example/ok"},
		{"id": "a/4", "raw_image_url": "https://img.example/bad"},
		{"id": "a/5", "raw_image_url": "https://img.example/ok"}
	]`)

	r, err := New(cfg,
		WithFetcher(fetcher),
		WithStore(&memStore{}),
		WithTransform(func(b []byte) ([]byte, error) { return b, nil }))
	require.NoError(t, err)

	summary, err := r.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 3, summary.WithImage)
	assert.Equal(t, 2, summary.WithoutImage)
	assert.InDelta(t, 60.0, summary.ImagePercent, 0.001)
	assert.EqualValues(t, 5, calls.Load())

	upsert := readFile(t, filepath.Join(cfg.Ingest.OutDir, artifact.UpsertFile))
	assert.Equal(t, 2, strings.Count(upsert, "Download failed: connection reset"))
}

func TestRunConcurrencyBound(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.Workers = 3
	cfg.Ingest.WriteBatches = false

	var inFlight, peak atomic.Int64
	fetcher := fetcherFunc(func(ctx context.Context, url string, max int64) ([]byte, error) {
		n := inFlight.Add(1)
		for {
			cur := peak.Load()
			if n <= cur || peak.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		inFlight.Add(-1)
		return nil, errors.New("slow host gave up")
	})

	var records []string
	for i := 0; i < 10; i++ {
		records = append(records, `{"id": "org/m`+string(rune('0'+i))+`", "raw_image_url": "https://slow.example/x.png"}`)
	}
	input := qtesting.WriteInput(t, "models.json", "["+strings.Join(records, ",")+"]")

	r, err := New(cfg, WithFetcher(fetcher), WithStore(&memStore{}))
	require.NoError(t, err)
	summary, err := r.Run(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 10, summary.Total)
	assert.Equal(t, int64(3), peak.Load(), "all three slots were used, and never more")
	assert.Equal(t, 3, summary.Stats.PeakInFlight)
	assert.NoDirExists(t, cfg.Ingest.BatchDir)
}

func TestRunEmptyInputs(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty file", "", "-- Empty: No models in input\n"},
		{"whitespace", "  \n\t", "-- Empty: No models in input\n"},
		{"empty array", "[]", "-- Empty: 0 models in array\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			r, err := New(cfg, WithStore(nil))
			require.NoError(t, err)

			summary, err := r.Run(context.Background(), qtesting.WriteInput(t, "models.json", tt.content))
			require.NoError(t, err)
			assert.True(t, summary.Empty)
			assert.Zero(t, summary.Total)

			assert.Equal(t, tt.want, readFile(t, filepath.Join(cfg.Ingest.OutDir, artifact.UpsertFile)))
			assert.Equal(t, tt.want, readFile(t, filepath.Join(cfg.Ingest.OutDir, artifact.UpdateFile)))
		})
	}
}

func TestRunFatalInputs(t *testing.T) {
	t.Run("unreadable", func(t *testing.T) {
		cfg := testConfig(t)
		r, err := New(cfg, WithStore(nil))
		require.NoError(t, err)

		_, err = r.Run(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, catalog.ErrInputUnreadable))
		assert.NoFileExists(t, filepath.Join(cfg.Ingest.OutDir, artifact.UpsertFile))
	})

	for _, content := range []string{`{"id": "a"}`, `[{"id": "a"`, `not json`} {
		t.Run("invalid "+content, func(t *testing.T) {
			cfg := testConfig(t)
			r, err := New(cfg, WithStore(nil))
			require.NoError(t, err)

			_, err = r.Run(context.Background(), qtesting.WriteInput(t, "models.json", content))
			require.Error(t, err)
			assert.True(t, errors.Is(err, catalog.ErrInvalidJSON))
			assert.NoFileExists(t, filepath.Join(cfg.Ingest.OutDir, artifact.UpsertFile))
		})
	}
}

func TestRunTagsObject(t *testing.T) {
	cfg := testConfig(t)
	r, err := New(cfg, WithStore(nil))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), qtesting.WriteInput(t, "models.json", `[{"id": "a/b", "tags": {"lang": "en"}}]`))
	require.NoError(t, err)
	assert.Contains(t, readFile(t, filepath.Join(cfg.Ingest.OutDir, artifact.UpsertFile)), `'{"lang":"en"}'`)
}

func TestNewRejectsIncompleteR2(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage = am.StorageConfig{Mode: am.StorageR2, Bucket: "b"}

	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, errors.IsNotConfigured(err))
}

func TestRunUploadsBatches(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.UploadBatches = true
	store := &memStore{}

	r, err := New(cfg, WithStore(store), WithFetcher(fetcherFunc(func(context.Context, string, int64) ([]byte, error) {
		return nil, errors.New("unused")
	})))
	require.NoError(t, err)

	summary, err := r.Run(context.Background(), qtesting.WriteInput(t, "models.json", `[{"id": "a/b"}]`))
	require.NoError(t, err)
	assert.Contains(t, summary.Uploaded, "batch_000.json")
	assert.Contains(t, summary.Uploaded, artifact.ManifestFile)
	assert.Contains(t, store.keys(), "raw-data/manifest.json")
}
