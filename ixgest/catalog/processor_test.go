package catalog

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/catalogix/blob"
	"github.com/teranos/catalogix/errors"
	"github.com/teranos/catalogix/imaging"
)

type fakeFetcher struct {
	mu    sync.Mutex
	data  []byte
	err   error
	calls []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string, maxBytes int64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *memStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.types[key] = contentType
	return blob.PublicURL("https://cdn.example", key), nil
}

func (s *memStore) Describe() string { return "memory" }

func passthrough(data []byte) ([]byte, error) {
	return append([]byte("img:"), data...), nil
}

func TestProcessWithoutImage(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("boom")}
	p := NewProcessor(fetcher, newMemStore(), Options{Transform: passthrough})

	rec := NewRecord("id", "acme/widget", "likes", 5, "downloads", 10, "raw_image_url", "https://img.example/w.png")
	res := p.Process(context.Background(), 0, rec)

	assert.Equal(t, "huggingface-acme-widget", res.Identity.InternalID)
	assert.Equal(t, "huggingface--acme--widget", res.Identity.Slug)
	assert.Contains(t, res.Upsert, "'huggingface-acme-widget', 'huggingface--acme--widget', 'widget', 'acme', 'huggingface'")
	assert.Contains(t, res.Upsert, ", 5, 10, NULL, ")
	assert.False(t, res.HasImage())
	assert.Empty(t, res.Update)
	assert.Equal(t, []string{
		"Downloading image for huggingface-acme-widget from https://img.example/w.png (raw_image_url)",
		"Download failed: boom",
	}, res.Logs)
	assert.Equal(t, []string{"https://img.example/w.png"}, fetcher.calls)
}

func TestProcessStoresImage(t *testing.T) {
	fetcher := &fakeFetcher{data: []byte("png")}
	store := newMemStore()
	p := NewProcessor(fetcher, store, Options{Transform: passthrough})

	rec := NewRecord("id", "acme/widget", "raw_image_url", "https://img.example/w.png")
	res := p.Process(context.Background(), 3, rec)

	require.True(t, res.HasImage())
	assert.Equal(t, 3, res.Index)
	assert.Equal(t,
		"UPDATE models SET cover_image_url = 'https://cdn.example/models/huggingface-acme-widget.jpg' WHERE id = 'huggingface-acme-widget';\n",
		res.Update)
	assert.Equal(t, []byte("img:png"), store.objects["models/huggingface-acme-widget.jpg"])
	assert.Equal(t, "image/jpeg", store.types["models/huggingface-acme-widget.jpg"])
	require.NotNil(t, res.Projection.CoverImageURL)
	assert.Equal(t, "https://cdn.example/models/huggingface-acme-widget.jpg", *res.Projection.CoverImageURL)
	// the upsert never carries the cover URL
	assert.Contains(t, res.Upsert, ", 0, 0, NULL, ")
	assert.Equal(t, []string{
		"Downloading image for huggingface-acme-widget from https://img.example/w.png (raw_image_url)",
		"Downloaded 3 bytes",
		"Transformed to jpeg (7 bytes)",
		"Stored models/huggingface-acme-widget.jpg at https://cdn.example/models/huggingface-acme-widget.jpg",
	}, res.Logs)
}

func TestProcessPNGFormat(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(&fakeFetcher{data: []byte("x")}, store, Options{Format: imaging.PNG, Transform: passthrough})

	res := p.Process(context.Background(), 0, NewRecord("id", "a/b", "image_url", "http://img.example/b"))
	require.True(t, res.HasImage())
	assert.Equal(t, "image/png", store.types["models/huggingface-a-b.png"])
}

func TestProcessNilStore(t *testing.T) {
	fetcher := &fakeFetcher{data: []byte("x")}
	p := NewProcessor(fetcher, nil, Options{Transform: passthrough, StoreBodies: true})

	res := p.Process(context.Background(), 0, NewRecord("id", "a/b", "raw_image_url", "https://x/y.png", "body_content", "text"))
	assert.False(t, res.HasImage())
	assert.Empty(t, fetcher.calls)
	assert.Equal(t, []string{
		"object storage not configured, skipping image",
		"object storage not configured, skipping body",
	}, res.Logs)
}

func TestProcessImageSources(t *testing.T) {
	t.Run("non-http url is ignored", func(t *testing.T) {
		fetcher := &fakeFetcher{data: []byte("x")}
		p := NewProcessor(fetcher, newMemStore(), Options{Transform: passthrough})
		res := p.Process(context.Background(), 0, NewRecord("id", "a/b", "raw_image_url", "ftp://x/y.png"))
		assert.Empty(t, fetcher.calls)
		assert.Equal(t, []string{`ignoring non-http image URL "ftp://x/y.png"`, "no image URL, skipping"}, res.Logs)
	})

	t.Run("github avatar", func(t *testing.T) {
		fetcher := &fakeFetcher{data: []byte("x")}
		p := NewProcessor(fetcher, newMemStore(), Options{Transform: passthrough})
		res := p.Process(context.Background(), 0, NewRecord("id", "torvalds/linux", "source", "github"))
		assert.Equal(t, []string{"https://github.com/torvalds.png"}, fetcher.calls)
		assert.True(t, res.HasImage())
	})

	t.Run("generated avatar only when enabled", func(t *testing.T) {
		fetcher := &fakeFetcher{data: []byte("x")}
		p := NewProcessor(fetcher, newMemStore(), Options{Transform: passthrough})
		p.Process(context.Background(), 0, NewRecord("id", "a/my model"))
		assert.Empty(t, fetcher.calls)

		p = NewProcessor(fetcher, newMemStore(), Options{Transform: passthrough, AvatarFallback: true})
		p.Process(context.Background(), 0, NewRecord("id", "a/my model"))
		require.Len(t, fetcher.calls, 1)
		assert.True(t, strings.HasPrefix(fetcher.calls[0], "https://ui-avatars.com/api/?name=my+model&"))
	})
}

func TestProcessFailureStages(t *testing.T) {
	t.Run("transform", func(t *testing.T) {
		p := NewProcessor(&fakeFetcher{data: []byte("x")}, newMemStore(), Options{
			Transform: func([]byte) ([]byte, error) { return nil, errors.New("decode failed: bad header") },
		})
		res := p.Process(context.Background(), 0, NewRecord("id", "a/b", "raw_image_url", "https://x/y.png"))
		assert.False(t, res.HasImage())
		assert.Equal(t, "Transform failed: decode failed: bad header", res.Logs[len(res.Logs)-1])
	})

	t.Run("store", func(t *testing.T) {
		store := newMemStore()
		store.err = errors.New("access denied")
		p := NewProcessor(&fakeFetcher{data: []byte("x")}, store, Options{Transform: passthrough})
		res := p.Process(context.Background(), 0, NewRecord("id", "a/b", "raw_image_url", "https://x/y.png"))
		assert.False(t, res.HasImage())
		assert.Equal(t, "Storage write failed: access denied", res.Logs[len(res.Logs)-1])
		assert.NotEmpty(t, res.Upsert)
	})
}

func TestProcessSourceCannotEscapeImagesDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "data", "images")
	store, err := blob.NewLocalStore(dir, "")
	require.NoError(t, err)
	p := NewProcessor(&fakeFetcher{data: []byte("x")}, store, Options{Transform: passthrough, StoreBodies: true})

	rec := NewRecord("id", "acme/widget", "source", "x/../../../escaped",
		"raw_image_url", "https://img.example/w.png", "body_content", "# body")
	res := p.Process(context.Background(), 0, rec)

	// the SQL keeps the internal id verbatim
	assert.Equal(t, "x/../../../escaped-acme-widget", res.Identity.InternalID)
	assert.Contains(t, res.Update, "WHERE id = 'x/../../../escaped-acme-widget';")
	require.True(t, res.HasImage())
	assert.FileExists(t, filepath.Join(dir, "x-..-..-..-escaped-acme-widget.jpg"))
	assert.FileExists(t, filepath.Join(dir, "bodies", "x-..-..-..-escaped-acme-widget.md"))

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		if !d.IsDir() {
			rel, relErr := filepath.Rel(dir, path)
			require.NoError(t, relErr)
			assert.True(t, filepath.IsLocal(rel), "%s written outside images dir", path)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestProcessStoresBody(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(&fakeFetcher{}, store, Options{Transform: passthrough, StoreBodies: true})

	res := p.Process(context.Background(), 0, NewRecord("id", "a/b", "body_content", "# Title"))
	assert.Equal(t, []byte("# Title"), store.objects["bodies/huggingface-a-b.md"])
	require.NotNil(t, res.Projection.BodyContentURL)
	assert.Equal(t, "https://cdn.example/bodies/huggingface-a-b.md", *res.Projection.BodyContentURL)
	assert.Contains(t, res.Logs, "Stored body (7 bytes) at https://cdn.example/bodies/huggingface-a-b.md")
}

func TestProcessSanitizesTrail(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("bad */ thing\nDROP")}
	p := NewProcessor(fetcher, newMemStore(), Options{Transform: passthrough})

	res := p.Process(context.Background(), 0, NewRecord("id", "a/b", "raw_image_url", "https://x/y.png"))
	for _, line := range res.Logs {
		assert.NotContains(t, line, "*/")
		assert.NotContains(t, line, "\n")
	}
	assert.Equal(t, "Download failed: bad * / thing DROP", res.Logs[len(res.Logs)-1])
}

func TestProcessNotesComeFirst(t *testing.T) {
	p := NewProcessor(&fakeFetcher{}, nil, Options{})
	res := p.Process(context.Background(), 0, NewRecord("id", "a/b", "likes", "many"))
	require.Len(t, res.Logs, 2)
	assert.Equal(t, "likes string is not numeric, using 0", res.Logs[0])
}

func TestDegraded(t *testing.T) {
	p := NewProcessor(&fakeFetcher{}, nil, Options{})

	res := p.Degraded(4, NewRecord("id", "a/b"), "runtime error: index out of range")
	assert.Equal(t, 4, res.Index)
	assert.Equal(t, "huggingface-a-b", res.Identity.InternalID)
	assert.NotEmpty(t, res.Upsert)
	assert.False(t, res.HasImage())
	assert.Equal(t, []string{"processing aborted: runtime error: index out of range"}, res.Logs)
}

func TestProcessConcurrentUse(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(&fakeFetcher{data: []byte("x")}, store, Options{Transform: passthrough})

	var wg sync.WaitGroup
	results := make([]Result, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "org/model-" + string(rune('a'+i))
			results[i] = p.Process(context.Background(), i, NewRecord("id", id, "raw_image_url", "https://x/"+id))
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		assert.Equal(t, i, res.Index)
		assert.True(t, res.HasImage())
	}
	assert.Len(t, store.objects, 20)
}
