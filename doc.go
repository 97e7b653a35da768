// Package snapviewer bridges camera snapshot messages from an MQTT broker to
// a live HTTP viewer. It subscribes to snapshot topics, keeps only the most
// recent JPEG per camera/object key in memory, and notifies connected web
// clients the moment a new frame arrives.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│           MQTT Input                │  paho client, auto-reconnect,
//	│      (input/mqtt, QoS 0)            │  resubscribe on connect
//	└──────────────────┬──────────────────┘
//	                   ↓ raw payloads
//	┌─────────────────────────────────────┐
//	│        Ingestion Pipeline           │  route topic → key,
//	│       (processor/ingest)            │  classify payload, fetch URLs
//	└────────┬───────────────────┬────────┘
//	         ↓ upsert            ↓ broadcast
//	┌─────────────────┐  ┌───────────────┐
//	│   Image Store   │  │ Change        │  latest-per-key records /
//	│  (imagestore)   │  │ Notifier      │  coalesced update signals
//	└────────┬────────┘  └───────┬───────┘
//	         ↓ read              ↓ subscribe
//	┌─────────────────────────────────────┐
//	│           HTTP Surface              │  pages, JPEG endpoints,
//	│          (gateway/web)              │  SSE + WebSocket streams
//	└─────────────────────────────────────┘
//
// Payloads arrive in three shapes: raw JPEG bytes, base64-encoded JPEG, or a
// URL pointing at an image. The pipeline classifies each payload, resolves
// URLs over HTTP when fetching is enabled, and drops anything that is not a
// valid JPEG. The store holds exactly one record per key, so memory stays
// bounded by the number of distinct camera/object pairs regardless of message
// rate.
//
// Two viewing modes cover the common deployments:
//
//   - single: one wildcard-matched subscription collapses to one image,
//     served at /image.jpg with a self-refreshing page at /
//   - gallery: four-segment topics (root/camera/object/suffix) map to per-key
//     images at /image/{camera}/{object}.jpg with a grid page at /
//
// The mode is derived from the subscription pattern by default and can be
// forced through configuration.
//
// # Packages
//
// Components:
//   - input/mqtt: broker subscription and reconnect handling
//   - processor/ingest: routing, classification, store and notify fan-in
//   - gateway/web: HTTP pages, image endpoints, SSE and WebSocket streams
//
// State:
//   - imagestore: latest-per-key in-memory image records
//   - notify: coalescing change broadcast to stream listeners
//   - topic: MQTT wildcard matching and topic-to-key routing
//   - classify: payload shape detection and remote image fetching
//
// Infrastructure:
//   - config: defaults, JSON file and environment layering
//   - errors: classified errors (transient, invalid, fatal)
//   - metric: Prometheus metrics registry
//   - health: per-component health tracking and aggregation
//
// # Binary
//
//	# Run against a local broker with defaults
//	./bin/snapviewer
//
//	# Watch every camera on a broker
//	MQTT_BROKER_HOST=broker.local MQTT_TOPIC='frigate/+/+/snapshot' ./bin/snapviewer
package snapviewer
