package ingest

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/classify"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/imagestore"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/notify"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/topic"
)

var sampleJPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

type fixture struct {
	pipeline *Pipeline
	store    *imagestore.Store
	notifier *notify.Notifier
}

func newFixture(t *testing.T, gallery bool, fetchTimeout time.Duration) *fixture {
	t.Helper()

	pattern := "frigate/hofcam1/person/snapshot"
	if gallery {
		pattern = "frigate/+/+/snapshot"
	}

	store := imagestore.New()
	notifier := notify.New()

	var fetcher *classify.Fetcher
	if gallery {
		fetcher = classify.NewFetcher(fetchTimeout, nil)
	}

	p := New(Deps{
		Router:   topic.NewRouter(pattern, gallery),
		Store:    store,
		Notifier: notifier,
		Fetcher:  fetcher,
	})

	return &fixture{pipeline: p, store: store, notifier: notifier}
}

func signalled(l *notify.Listener) bool {
	select {
	case <-l.C():
		return true
	case <-time.After(100 * time.Millisecond):
		return false
	}
}

func TestPipeline_RawJPEGStoredAndNotified(t *testing.T) {
	f := newFixture(t, true, time.Second)
	l := f.notifier.Subscribe()
	defer f.notifier.Unsubscribe(l)

	f.pipeline.HandleMessage(context.Background(), "frigate/cam1/person/snapshot", sampleJPEG)

	entries := f.store.ReadAll()
	require.Len(t, entries, 1)
	assert.Equal(t, topic.Key{Camera: "cam1", Object: "person"}, entries[0].Key)
	assert.Equal(t, sampleJPEG, entries[0].Record.Data)

	assert.True(t, signalled(l), "listener should be notified after a successful upsert")

	stats := f.pipeline.Stats()
	assert.EqualValues(t, 1, stats.Received)
	assert.EqualValues(t, 1, stats.Stored)
	assert.EqualValues(t, 0, stats.Dropped)
}

func TestPipeline_Base64PayloadStoredDecoded(t *testing.T) {
	f := newFixture(t, true, time.Second)

	encoded := []byte(base64.StdEncoding.EncodeToString(sampleJPEG))
	f.pipeline.HandleMessage(context.Background(), "frigate/cam1/person/snapshot", encoded)

	rec, ok := f.store.Read(topic.Key{Camera: "cam1", Object: "person"})
	require.True(t, ok)
	assert.Equal(t, sampleJPEG, rec.Data, "store holds decoded bytes, not base64 text")
}

func TestPipeline_SingleModeUsesSingletonKey(t *testing.T) {
	f := newFixture(t, false, 0)

	f.pipeline.HandleMessage(context.Background(), "frigate/hofcam1/person/snapshot", sampleJPEG)

	rec, ok := f.store.Read(topic.Singleton)
	require.True(t, ok)
	assert.Equal(t, sampleJPEG, rec.Data)
}

func TestPipeline_RoutingRejectionsDropped(t *testing.T) {
	f := newFixture(t, true, time.Second)
	l := f.notifier.Subscribe()
	defer f.notifier.Unsubscribe(l)

	// Wrong suffix
	f.pipeline.HandleMessage(context.Background(), "frigate/cam1/person/clip", sampleJPEG)
	// Wrong segment count
	f.pipeline.HandleMessage(context.Background(), "frigate/cam1/snapshot", sampleJPEG)

	assert.Equal(t, 0, f.store.Len())
	assert.False(t, signalled(l))
	assert.EqualValues(t, 2, f.pipeline.Stats().Dropped)
}

func TestPipeline_UnclassifiablePayloadDropped(t *testing.T) {
	f := newFixture(t, true, time.Second)
	l := f.notifier.Subscribe()
	defer f.notifier.Unsubscribe(l)

	f.pipeline.HandleMessage(context.Background(), "frigate/cam1/person/snapshot", []byte("not an image"))

	assert.Equal(t, 0, f.store.Len())
	assert.False(t, signalled(l))
	assert.EqualValues(t, 1, f.pipeline.Stats().Dropped)
}

func TestPipeline_URLPayloadFetched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(sampleJPEG)
	}))
	defer srv.Close()

	f := newFixture(t, true, time.Second)
	l := f.notifier.Subscribe()
	defer f.notifier.Unsubscribe(l)

	f.pipeline.HandleMessage(context.Background(), "frigate/cam1/person/snapshot", []byte(srv.URL))

	rec, ok := f.store.Read(topic.Key{Camera: "cam1", Object: "person"})
	require.True(t, ok)
	assert.Equal(t, sampleJPEG, rec.Data)
	assert.True(t, signalled(l))
}

func TestPipeline_FailedFetchDropsWithoutFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>no image here</html>"))
	}))
	defer srv.Close()

	f := newFixture(t, true, time.Second)
	l := f.notifier.Subscribe()
	defer f.notifier.Unsubscribe(l)

	f.pipeline.HandleMessage(context.Background(), "frigate/cam1/person/snapshot", []byte(srv.URL))

	assert.Equal(t, 0, f.store.Len(), "no store mutation on fetch failure")
	assert.False(t, signalled(l), "no notification on fetch failure")
	assert.EqualValues(t, 1, f.pipeline.Stats().Dropped)
}

func TestPipeline_FetchTimeoutDrops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write(sampleJPEG)
	}))
	defer srv.Close()

	f := newFixture(t, true, 50*time.Millisecond)

	f.pipeline.HandleMessage(context.Background(), "frigate/cam1/person/snapshot", []byte(srv.URL))

	assert.Equal(t, 0, f.store.Len())
}

func TestPipeline_SingleModeDoesNotFetchURLs(t *testing.T) {
	f := newFixture(t, false, 0)

	// Without a fetcher a URL payload falls through to classification and is
	// dropped as not-a-JPEG.
	f.pipeline.HandleMessage(context.Background(), "frigate/hofcam1/person/snapshot",
		[]byte("https://example.invalid/img.jpg"))

	assert.Equal(t, 0, f.store.Len())
	assert.EqualValues(t, 1, f.pipeline.Stats().Dropped)
}

func TestPipeline_LatestReflectsNewestUpsert(t *testing.T) {
	base := time.Now()
	clock := base
	f := newFixture(t, true, time.Second)
	f.pipeline.now = func() time.Time { return clock }

	f.pipeline.HandleMessage(context.Background(), "frigate/cam1/person/snapshot", sampleJPEG)
	clock = base.Add(time.Second)
	f.pipeline.HandleMessage(context.Background(), "frigate/cam2/car/snapshot", sampleJPEG)

	latest, ok := f.store.Latest()
	require.True(t, ok)
	assert.Equal(t, topic.Key{Camera: "cam2", Object: "car"}, latest.Key)
}

func TestPipeline_Health(t *testing.T) {
	f := newFixture(t, true, time.Second)
	f.pipeline.HandleMessage(context.Background(), "frigate/cam1/person/snapshot", sampleJPEG)

	status := f.pipeline.Health()
	assert.True(t, status.IsHealthy())
	require.NotNil(t, status.Metrics)
	assert.EqualValues(t, 1, status.Metrics.MessagesProcessed)
}
