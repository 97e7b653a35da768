// Package imagestore maintains the latest known image per logical key.
//
// The store is the single shared mutable resource between the ingestion path
// (one writer) and the HTTP surface (many readers). Records are immutable and
// replaced wholesale on update, so a reader can never observe a torn record.
// Entries are never evicted; a write for an existing key fully replaces the
// prior record, last-write-wins by arrival order.
package imagestore

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/topic"
)

// Record holds one stored image. Immutable once constructed.
type Record struct {
	Data       []byte
	CapturedAt time.Time
}

// Size returns the stored image size in bytes.
func (r Record) Size() int {
	return len(r.Data)
}

// Entry pairs a logical key with its record for snapshot reads.
type Entry struct {
	Key    topic.Key
	Record Record
}

// Store is a concurrently-safe mapping from logical key to the latest image
// record. The zero value is not usable; use New.
type Store struct {
	mu      sync.RWMutex
	records map[topic.Key]Record
	// order preserves first-seen insertion order so Latest() tie-breaks
	// deterministically within a process run.
	order []topic.Key

	upserts atomic.Int64

	onChange func(entries int)
}

// Option configures a Store.
type Option func(*Store)

// WithEntriesCallback registers a callback invoked with the entry count after
// every upsert. Used to keep an external gauge in sync.
func WithEntriesCallback(fn func(entries int)) Option {
	return func(s *Store) {
		s.onChange = fn
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		records: make(map[topic.Key]Record),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert replaces the record for key. Creates the entry on first write.
func (s *Store) Upsert(key topic.Key, data []byte, capturedAt time.Time) {
	s.mu.Lock()
	if _, exists := s.records[key]; !exists {
		s.order = append(s.order, key)
	}
	s.records[key] = Record{Data: data, CapturedAt: capturedAt}
	entries := len(s.records)
	s.mu.Unlock()

	s.upserts.Add(1)
	if s.onChange != nil {
		s.onChange(entries)
	}
}

// Read returns the record for key, or false when no image has been stored for
// it yet.
func (s *Store) Read(key topic.Key) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	return rec, ok
}

// ReadAll returns a point-in-time snapshot of all entries in first-seen key
// order. Mutations after the call are not reflected in the result.
func (s *Store) ReadAll() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.order))
	for _, key := range s.order {
		entries = append(entries, Entry{Key: key, Record: s.records[key]})
	}
	return entries
}

// Latest returns the entry with the greatest CapturedAt across all keys. Ties
// resolve to the first-seen key, which is deterministic within a single
// process run. Returns false over an empty store.
func (s *Store) Latest() (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 {
		return Entry{}, false
	}

	best := Entry{Key: s.order[0], Record: s.records[s.order[0]]}
	for _, key := range s.order[1:] {
		rec := s.records[key]
		if rec.CapturedAt.After(best.Record.CapturedAt) {
			best = Entry{Key: key, Record: rec}
		}
	}
	return best, true
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// Upserts returns the total number of writes since startup.
func (s *Store) Upserts() int64 {
	return s.upserts.Load()
}

// Cameras returns the sorted distinct camera components of all stored keys.
func (s *Store) Cameras() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return distinct(s.order, func(k topic.Key) string { return k.Camera })
}

// Objects returns the sorted distinct object components of all stored keys.
func (s *Store) Objects() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return distinct(s.order, func(k topic.Key) string { return k.Object })
}

func distinct(keys []topic.Key, component func(topic.Key) string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		v := component(k)
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
