package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/Lllllllleong/listingflow/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&syncWriter{w: &buf}, nil)), &buf
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// memObjects is an in-memory object store keyed by container/key.
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  map[string]error
	putErr  error
	gets    int
	puts    map[string][]byte
	putOpts map[string]PutOptions
}

func newMemObjects() *memObjects {
	return &memObjects{
		objects: map[string][]byte{},
		getErr:  map[string]error{},
		puts:    map[string][]byte{},
		putOpts: map[string]PutOptions{},
	}
}

func (m *memObjects) add(container, key, body string) {
	m.objects[container+"/"+key] = []byte(body)
}

func (m *memObjects) Get(_ context.Context, container, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	id := container + "/" + key
	if err, ok := m.getErr[id]; ok {
		return nil, err
	}
	body, ok := m.objects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return body, nil
}

func (m *memObjects) Put(_ context.Context, container, key string, body []byte, opts PutOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.puts[container+"/"+key] = body
	m.putOpts[container+"/"+key] = opts
	return nil
}

func (m *memObjects) getCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

// memTable records every Put.
type memTable struct {
	mu     sync.Mutex
	items  []Item
	tables []string
	err    error
}

func (m *memTable) Put(_ context.Context, table string, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items = append(m.items, item)
	m.tables = append(m.tables, table)
	return nil
}

func (m *memTable) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type recordingEmitter struct {
	mu      sync.Mutex
	emitted []models.Descriptor
	err     error
}

func (e *recordingEmitter) Emit(_ context.Context, src models.Descriptor, _ []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.emitted = append(e.emitted, src)
	return nil
}

// countingFetcher counts Fetch calls made through it.
type countingFetcher struct {
	inner Fetcher
	mu    sync.Mutex
	calls int
}

func (f *countingFetcher) Fetch(ctx context.Context, src models.Descriptor) (RawDocument, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.inner.Fetch(ctx, src)
}
