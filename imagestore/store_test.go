package imagestore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/topic"
)

var (
	keyFront = topic.Key{Camera: "front", Object: "person"}
	keyBack  = topic.Key{Camera: "back", Object: "car"}
)

func TestStore_UpsertAndRead(t *testing.T) {
	s := New()

	_, ok := s.Read(keyFront)
	assert.False(t, ok)

	ts := time.Now()
	s.Upsert(keyFront, []byte("jpeg-1"), ts)

	rec, ok := s.Read(keyFront)
	require.True(t, ok)
	assert.Equal(t, []byte("jpeg-1"), rec.Data)
	assert.Equal(t, ts, rec.CapturedAt)
	assert.Equal(t, 6, rec.Size())
}

func TestStore_UpsertReplacesWholesale(t *testing.T) {
	s := New()
	t1 := time.Now()
	t2 := t1.Add(time.Second)

	s.Upsert(keyFront, []byte("old"), t1)
	s.Upsert(keyFront, []byte("new"), t2)

	rec, ok := s.Read(keyFront)
	require.True(t, ok)
	assert.Equal(t, []byte("new"), rec.Data)
	assert.Equal(t, t2, rec.CapturedAt)
	assert.Equal(t, 1, s.Len())
}

func TestStore_UpsertIdempotent(t *testing.T) {
	s := New()
	ts := time.Now()

	for i := 0; i < 5; i++ {
		s.Upsert(keyFront, []byte("same"), ts)
	}

	assert.Equal(t, 1, s.Len())
	rec, ok := s.Read(keyFront)
	require.True(t, ok)
	assert.Equal(t, []byte("same"), rec.Data)
	assert.EqualValues(t, 5, s.Upserts())
}

func TestStore_LastWriteWinsByArrival(t *testing.T) {
	s := New()
	newer := time.Now()
	older := newer.Add(-time.Minute)

	// Arrival order wins, not the embedded timestamp.
	s.Upsert(keyFront, []byte("first"), newer)
	s.Upsert(keyFront, []byte("second"), older)

	rec, _ := s.Read(keyFront)
	assert.Equal(t, []byte("second"), rec.Data)
	assert.Equal(t, older, rec.CapturedAt)
}

func TestStore_ReadAllSnapshot(t *testing.T) {
	s := New()
	t0 := time.Now()

	s.Upsert(keyFront, []byte("a"), t0)
	s.Upsert(keyBack, []byte("b"), t0.Add(time.Second))

	entries := s.ReadAll()
	require.Len(t, entries, 2)
	// First-seen order
	assert.Equal(t, keyFront, entries[0].Key)
	assert.Equal(t, keyBack, entries[1].Key)

	// Snapshot is not a live view
	s.Upsert(topic.Key{Camera: "side", Object: "dog"}, []byte("c"), t0)
	assert.Len(t, entries, 2)
}

func TestStore_Latest(t *testing.T) {
	s := New()

	_, ok := s.Latest()
	assert.False(t, ok, "latest over empty store is absent")

	t0 := time.Now()
	s.Upsert(keyFront, []byte("a"), t0)
	s.Upsert(keyBack, []byte("b"), t0.Add(time.Second))

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, keyBack, latest.Key)

	s.Upsert(keyFront, []byte("a2"), t0.Add(2*time.Second))
	latest, _ = s.Latest()
	assert.Equal(t, keyFront, latest.Key)
}

func TestStore_LatestTieBreaksFirstSeen(t *testing.T) {
	s := New()
	ts := time.Now()

	s.Upsert(keyFront, []byte("a"), ts)
	s.Upsert(keyBack, []byte("b"), ts)

	for i := 0; i < 10; i++ {
		latest, ok := s.Latest()
		require.True(t, ok)
		assert.Equal(t, keyFront, latest.Key, "equal timestamps resolve to first-seen key")
	}
}

func TestStore_CamerasAndObjects(t *testing.T) {
	s := New()
	ts := time.Now()

	s.Upsert(topic.Key{Camera: "front", Object: "person"}, []byte("a"), ts)
	s.Upsert(topic.Key{Camera: "back", Object: "person"}, []byte("b"), ts)
	s.Upsert(topic.Key{Camera: "front", Object: "car"}, []byte("c"), ts)

	assert.Equal(t, []string{"back", "front"}, s.Cameras())
	assert.Equal(t, []string{"car", "person"}, s.Objects())
}

func TestStore_EntriesCallback(t *testing.T) {
	var got int
	s := New(WithEntriesCallback(func(entries int) { got = entries }))
	ts := time.Now()

	s.Upsert(keyFront, []byte("a"), ts)
	assert.Equal(t, 1, got)
	s.Upsert(keyBack, []byte("b"), ts)
	assert.Equal(t, 2, got)
	s.Upsert(keyFront, []byte("a2"), ts)
	assert.Equal(t, 2, got)
}

func TestStore_ConcurrentReadersSingleWriter(t *testing.T) {
	s := New()
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s.Upsert(keyFront, []byte{byte(i)}, time.Now())
		}
		close(done)
	}()

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if rec, ok := s.Read(keyFront); ok {
					// A reader must never observe a torn record.
					assert.Len(t, rec.Data, 1)
				}
				_ = s.ReadAll()
				_, _ = s.Latest()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, s.Len())
}
