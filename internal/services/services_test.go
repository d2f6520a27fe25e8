package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/listingflow/internal/config"
	"github.com/Lllllllleong/listingflow/internal/external"
	"github.com/Lllllllleong/listingflow/internal/kv"
	"github.com/Lllllllleong/listingflow/internal/models"
	"github.com/Lllllllleong/listingflow/internal/pipeline"
)

type bucketStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	written map[string][]byte
}

func newBucketStore() *bucketStore {
	return &bucketStore{objects: map[string][]byte{}, written: map[string][]byte{}}
}

func (b *bucketStore) Get(_ context.Context, container, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	body, ok := b.objects[container+"/"+key]
	if !ok {
		return nil, pipeline.ErrNotFound
	}
	return body, nil
}

func (b *bucketStore) Put(_ context.Context, container, key string, body []byte, _ pipeline.PutOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.written[container+"/"+key] = body
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEvent(t *testing.T, eventType string, data any) cloudevents.Event {
	t.Helper()
	e := cloudevents.NewEvent()
	e.SetID("evt-1")
	e.SetSource("//storage.googleapis.com/projects/_/buckets/listings-raw")
	e.SetType(eventType)
	require.NoError(t, e.SetData(cloudevents.ApplicationJSON, data))
	return e
}

func TestDescriptorsFromEvent_Notification(t *testing.T) {
	e := newEvent(t, "com.listingflow.batch", models.Notification{Records: []models.NotificationRecord{
		{Source: models.Descriptor{Container: "listings-raw", Key: "people/1.json"}},
		{Source: models.Descriptor{Container: "listings-raw", Key: "people/2.json"}},
	}})

	got, err := DescriptorsFromEvent(e)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "people/2.json", got[1].Key)
}

func TestDescriptorsFromEvent_StorageObject(t *testing.T) {
	e := newEvent(t, "google.cloud.storage.object.v1.finalized", map[string]any{
		"bucket": "listings-raw",
		"name":   "people/1.json",
		"size":   "42",
	})

	got, err := DescriptorsFromEvent(e)
	require.NoError(t, err)
	assert.Equal(t, []models.Descriptor{{Container: "listings-raw", Key: "people/1.json"}}, got)
}

func TestDescriptorsFromEvent_Empty(t *testing.T) {
	e := newEvent(t, "com.listingflow.batch", models.Notification{})
	_, err := DescriptorsFromEvent(e)
	assert.ErrorIs(t, err, models.ErrEmptyNotification)
}

func TestLoader_EndToEndWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	table := kv.NewRedisTableFromClient(client)

	objects := newBucketStore()
	objects.objects["listings-raw/people/1.json"] = []byte(`{"category":"male","height":172,"mass":77,"films":["a","b"],"vehicles":["v1","v2"]}`)
	objects.objects["listings-raw/people/2.json"] = []byte(`{"category":"female","height":150,"mass":49}`)

	cfg := &config.Config{DestinationTable: "listings", TransformStrategy: "identity", PartitionLabel: "LISTING"}
	f, err := NewLoaderWith(cfg, LoaderDeps{Objects: objects, Table: table, Logger: quietLogger(), Closers: []io.Closer{table}})
	require.NoError(t, err)
	defer f.Close()

	e := newEvent(t, "com.listingflow.batch", models.Notification{Records: []models.NotificationRecord{
		{Source: models.Descriptor{Container: "listings-raw", Key: "people/1.json"}},
		{Source: models.Descriptor{Container: "listings-raw", Key: "people/2.json"}},
	}})
	require.NoError(t, HandleEvent(context.Background(), f, e))

	item, err := table.Get(context.Background(), "listings", "LISTING#male", "LISTING#male")
	require.NoError(t, err)
	assert.Equal(t, float64(95), item["delta"])
	assert.Equal(t, float64(2), item["cnt"])
	assert.Equal(t, []any{"a", "b"}, item["reviews"])

	_, err = table.Get(context.Background(), "listings", "LISTING#female", "LISTING#female")
	require.NoError(t, err)
}

func TestLoader_MissingObjectFailsBatch(t *testing.T) {
	mr := miniredis.RunT(t)
	table := kv.NewRedisTableFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer table.Close()

	objects := newBucketStore()
	objects.objects["listings-raw/a.json"] = []byte(`{"name":"Luke"}`)

	cfg := &config.Config{DestinationTable: "listings", TransformStrategy: "name", PartitionLabel: "LISTING"}
	f, err := NewLoaderWith(cfg, LoaderDeps{Objects: objects, Table: table, Logger: quietLogger()})
	require.NoError(t, err)

	err = f.Process(context.Background(), []models.Descriptor{
		{Container: "listings-raw", Key: "a.json"},
		{Container: "listings-raw", Key: "missing.json"},
	})
	assert.ErrorIs(t, err, pipeline.ErrFetch)
	assert.ErrorIs(t, err, pipeline.ErrNotFound)

	// The healthy sibling was still written.
	item, err := table.Get(context.Background(), "listings", "LISTING", "Luke")
	require.NoError(t, err)
	assert.Equal(t, "Luke", item.SortKey())
}

type recordingNotifier struct {
	calls [][]models.Descriptor
	table string
	err   error
}

func (n *recordingNotifier) BatchLoaded(_ context.Context, table string, batch []models.Descriptor) error {
	n.table = table
	n.calls = append(n.calls, batch)
	return n.err
}

func TestLoader_NotifiesOnlyCompleteBatches(t *testing.T) {
	mr := miniredis.RunT(t)
	table := kv.NewRedisTableFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer table.Close()

	objects := newBucketStore()
	objects.objects["listings-raw/a.json"] = []byte(`{"name":"Luke"}`)
	notifier := &recordingNotifier{}

	cfg := &config.Config{DestinationTable: "listings", TransformStrategy: "name"}
	f, err := NewLoaderWith(cfg, LoaderDeps{Objects: objects, Table: table, Notifier: notifier, Logger: quietLogger()})
	require.NoError(t, err)

	ok := []models.Descriptor{{Container: "listings-raw", Key: "a.json"}}
	require.NoError(t, f.Process(context.Background(), ok))
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "listings", notifier.table)
	assert.Equal(t, ok, notifier.calls[0])

	require.Error(t, f.Process(context.Background(), []models.Descriptor{{Container: "listings-raw", Key: "missing.json"}}))
	assert.Len(t, notifier.calls, 1)

	notifier.err = errors.New("workflow unavailable")
	assert.ErrorContains(t, f.Process(context.Background(), ok), "workflow unavailable")
}

type countingPusher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *countingPusher) Push(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func TestFunctions_PushMetricsAfterEveryBatch(t *testing.T) {
	mr := miniredis.RunT(t)
	table := kv.NewRedisTableFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer table.Close()

	objects := newBucketStore()
	objects.objects["listings-raw/a.json"] = []byte(`{"name":"Luke"}`)
	ok := []models.Descriptor{{Container: "listings-raw", Key: "a.json"}}
	missing := []models.Descriptor{{Container: "listings-raw", Key: "missing.json"}}

	loaderPusher := &countingPusher{}
	loader, err := NewLoaderWith(&config.Config{DestinationTable: "listings", TransformStrategy: "name"},
		LoaderDeps{Objects: objects, Table: table, Metrics: loaderPusher, Logger: quietLogger()})
	require.NoError(t, err)

	require.NoError(t, loader.Process(context.Background(), ok))
	require.Error(t, loader.Process(context.Background(), missing))
	assert.Equal(t, 2, loaderPusher.calls)

	exporterPusher := &countingPusher{err: errors.New("gateway down")}
	exporter, err := NewExporterWith(&config.Config{DestinationBucket: "listings-export", ValidateField: "name"},
		ExporterDeps{Source: pipeline.NewObjectFetcher(objects), Objects: objects, Metrics: exporterPusher, Logger: quietLogger()})
	require.NoError(t, err)

	// A failed push is logged, never surfaced.
	require.NoError(t, exporter.Process(context.Background(), ok))
	assert.Equal(t, 1, exporterPusher.calls)
}

func TestNewLoaderWith_UnknownStrategy(t *testing.T) {
	cfg := &config.Config{DestinationTable: "listings", TransformStrategy: "sideways"}
	_, err := NewLoaderWith(cfg, LoaderDeps{Objects: newBucketStore(), Table: kv.NewRedisTableFromClient(nil)})
	assert.Error(t, err)
}

func TestExporter_CopiesFromExternalAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/people/1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Luke Skywalker"}`))
	}))
	defer srv.Close()

	api, err := external.NewAPIFetcher(srv.URL+"/api", 0)
	require.NoError(t, err)
	objects := newBucketStore()

	cfg := &config.Config{DestinationBucket: "listings-export", KeyPrefix: "swapi/", ValidateField: "name", ContentType: "application/json"}
	f, err := NewExporterWith(cfg, ExporterDeps{Source: api, Objects: objects, Logger: quietLogger()})
	require.NoError(t, err)

	require.NoError(t, f.Process(context.Background(), []models.Descriptor{{Container: "swapi", Key: "people/1"}}))
	assert.JSONEq(t, `{"name":"Luke Skywalker"}`, string(objects.written["listings-export/swapi/people/1"]))

	err = f.Process(context.Background(), []models.Descriptor{
		{Container: "swapi", Key: "people/1"},
		{Container: "swapi", Key: "people/404"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, external.ErrExternalAPI))
}

func TestExporter_RejectsInvalidDocument(t *testing.T) {
	objects := newBucketStore()
	objects.objects["listings-raw/people/1.json"] = []byte(`{"height":"172"}`)

	cfg := &config.Config{DestinationBucket: "listings-export", ValidateField: "name"}
	f, err := NewExporterWith(cfg, ExporterDeps{Source: pipeline.NewObjectFetcher(objects), Objects: objects, Logger: quietLogger()})
	require.NoError(t, err)

	err = f.Process(context.Background(), []models.Descriptor{{Container: "listings-raw", Key: "people/1.json"}})
	assert.ErrorIs(t, err, pipeline.ErrInvalidSourceData)
	assert.Empty(t, objects.written)
}
