package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/teranos/catalogix/blob"
)

type fetcherFunc func(ctx context.Context, url string, maxBytes int64) ([]byte, error)

func (f fetcherFunc) Fetch(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	return f(ctx, url, maxBytes)
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = data
	return blob.PublicURL("https://cdn.example", key), nil
}

func (s *memStore) Describe() string { return "memory" }

func (s *memStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.objects))
	for k := range s.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
