// Package ingest orchestrates per-message snapshot processing: route the
// topic to a logical key, classify the payload as a usable JPEG, store it,
// and notify live listeners.
package ingest

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/classify"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/health"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/imagestore"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/metric"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/notify"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/topic"
)

// Drop reasons used as metric labels.
const (
	dropNoRoute     = "no_route"
	dropNotJPEG     = "not_jpeg"
	dropFetchFailed = "fetch_failed"
)

// Deps holds runtime dependencies for the ingestion pipeline.
type Deps struct {
	Router   *topic.Router
	Store    *imagestore.Store
	Notifier *notify.Notifier
	// Fetcher enables URL-payload fetching; nil disables it (single mode).
	Fetcher *classify.Fetcher
	Metrics *metric.Registry
	Logger  *slog.Logger
	// Now is the clock used for capture timestamps; nil means time.Now.
	Now func() time.Time
}

// Pipeline processes inbound bus messages. HandleMessage is expected to be
// called from a single delivery goroutine, but the pipeline itself holds no
// mutable state beyond counters and is safe under concurrent delivery.
type Pipeline struct {
	router   *topic.Router
	store    *imagestore.Store
	notifier *notify.Notifier
	fetcher  *classify.Fetcher
	metrics  *metric.Registry
	logger   *slog.Logger
	now      func() time.Time

	received atomic.Int64
	stored   atomic.Int64
	dropped  atomic.Int64
}

// New creates an ingestion pipeline.
func New(deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "ingest")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Pipeline{
		router:   deps.Router,
		store:    deps.Store,
		notifier: deps.Notifier,
		fetcher:  deps.Fetcher,
		metrics:  deps.Metrics,
		logger:   logger,
		now:      now,
	}
}

// HandleMessage processes one inbound message. Every per-message failure is
// contained here: the message is dropped, a log line is emitted, and the
// delivery context keeps running. There are no retries; the store only ever
// reflects the latest successfully classified message per key.
func (p *Pipeline) HandleMessage(ctx context.Context, msgTopic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic while processing message", "topic", msgTopic, "panic", r)
		}
	}()

	start := p.now()
	p.received.Add(1)
	if p.metrics != nil {
		p.metrics.Core().MessagesReceived.Inc()
	}

	key, ok := p.router.Route(msgTopic)
	if !ok {
		// In gallery mode many unrelated topics are expected under the
		// subscription, so rejections stay at debug level.
		if p.router.Gallery() {
			p.logger.Debug("ignoring message on unroutable topic", "topic", msgTopic)
		} else {
			p.logger.Warn("message topic does not match subscription", "topic", msgTopic)
		}
		p.drop(dropNoRoute)
		return
	}

	data, ok := p.classifyPayload(ctx, msgTopic, payload)
	if !ok {
		return
	}

	p.store.Upsert(key, data, p.now())
	p.notifier.Broadcast()

	p.stored.Add(1)
	if p.metrics != nil {
		p.metrics.Core().ImagesStored.Inc()
		p.metrics.Core().ProcessingDuration.Observe(p.now().Sub(start).Seconds())
	}
	p.logger.Info("stored image", "key", key.String(), "size", len(data))
}

// classifyPayload resolves the payload to JPEG bytes. URL-shaped payloads are
// fetched when a fetcher is configured; a failed fetch gives up for this
// message without falling back to base64 classification.
func (p *Pipeline) classifyPayload(ctx context.Context, msgTopic string, payload []byte) ([]byte, bool) {
	if p.fetcher != nil {
		if url, isURL := classify.AsURL(payload); isURL {
			data, err := p.fetcher.Fetch(ctx, url)
			if err != nil {
				p.logger.Warn("remote image fetch failed", "topic", msgTopic, "url", url, "error", err)
				if p.metrics != nil {
					p.metrics.Core().FetchesTotal.WithLabelValues("error").Inc()
				}
				p.drop(dropFetchFailed)
				return nil, false
			}
			if p.metrics != nil {
				p.metrics.Core().FetchesTotal.WithLabelValues("ok").Inc()
			}
			return data, true
		}
	}

	data, ok := classify.Classify(payload)
	if !ok {
		p.logger.Warn("message is not a recognizable JPEG", "topic", msgTopic, "payload_size", len(payload))
		p.drop(dropNotJPEG)
		return nil, false
	}
	return data, true
}

func (p *Pipeline) drop(reason string) {
	p.dropped.Add(1)
	if p.metrics != nil {
		p.metrics.Core().MessagesDropped.WithLabelValues(reason).Inc()
	}
}

// Health reports pipeline throughput for the health endpoint.
func (p *Pipeline) Health() health.Status {
	return health.NewHealthy("ingest", "processing messages").WithMetrics(&health.Metrics{
		MessagesProcessed: p.received.Load(),
	})
}

// Stats is a point-in-time snapshot of pipeline counters.
type Stats struct {
	Received int64
	Stored   int64
	Dropped  int64
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Received: p.received.Load(),
		Stored:   p.stored.Load(),
		Dropped:  p.dropped.Load(),
	}
}
