// Package topic provides MQTT topic matching and logical key routing for
// inbound snapshot messages.
//
// Two routing modes are supported, mirroring the two deployment shapes of the
// viewer:
//
//   - Single mode: every topic matching the subscription pattern (standard MQTT
//     wildcard semantics for "+" and "#") maps to the singleton key. Non-matching
//     topics are rejected.
//   - Gallery mode: topics must have exactly four "/"-separated segments with a
//     literal root and suffix (frigate/<camera>/<object>/snapshot by default).
//     Segments two and three become the composite key. Everything else is
//     rejected; rejections are expected and frequent in this mode.
package topic

import "strings"

// Default segment literals for gallery-mode routing, matching the Frigate
// snapshot topic layout.
const (
	DefaultRoot   = "frigate"
	DefaultSuffix = "snapshot"
)

// Key identifies a single "latest image" slot. The zero value is the singleton
// key used in single mode. Keys are comparable and immutable once parsed.
type Key struct {
	Camera string
	Object string
}

// Singleton is the key under which single-mode deployments track their one
// image slot.
var Singleton = Key{}

// IsSingleton reports whether the key is the singleton slot.
func (k Key) IsSingleton() bool {
	return k == Singleton
}

// String returns "camera/object" for composite keys and "default" for the
// singleton key.
func (k Key) String() string {
	if k.IsSingleton() {
		return "default"
	}
	return k.Camera + "/" + k.Object
}

// Matches reports whether topic matches the subscription pattern using MQTT
// wildcard semantics: "+" matches exactly one level, "#" matches any number of
// remaining levels and is only valid as the final pattern segment.
func Matches(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	patternParts := strings.Split(pattern, "/")
	topicParts := strings.Split(topic, "/")

	for i, part := range patternParts {
		if part == "#" {
			// "#" must be the last segment to be a valid wildcard
			return i == len(patternParts)-1
		}
		if i >= len(topicParts) {
			return false
		}
		if part != "+" && part != topicParts[i] {
			return false
		}
	}

	return len(patternParts) == len(topicParts)
}

// Router parses inbound topic strings against the configured subscription
// pattern and extracts the logical key a message belongs to.
type Router struct {
	pattern string
	gallery bool
	root    string
	suffix  string
}

// NewRouter creates a router for the given subscription pattern. In gallery
// mode the literal root and suffix segments are taken from the pattern when
// present; wildcard segments fall back to the Frigate defaults.
func NewRouter(pattern string, gallery bool) *Router {
	r := &Router{
		pattern: pattern,
		gallery: gallery,
		root:    DefaultRoot,
		suffix:  DefaultSuffix,
	}

	if gallery {
		parts := strings.Split(pattern, "/")
		if len(parts) == 4 {
			if first := parts[0]; first != "+" && first != "#" {
				r.root = first
			}
			if last := parts[3]; last != "+" && last != "#" {
				r.suffix = last
			}
		}
	}

	return r
}

// Pattern returns the configured subscription pattern.
func (r *Router) Pattern() string {
	return r.pattern
}

// Gallery reports whether the router operates in gallery (multi-topic) mode.
func (r *Router) Gallery() bool {
	return r.gallery
}

// Route maps an inbound topic to its logical key. The boolean result is false
// when the topic does not belong to this subscription and the message should
// be dropped.
func (r *Router) Route(topic string) (Key, bool) {
	if r.gallery {
		parts := strings.Split(topic, "/")
		if len(parts) != 4 || parts[0] != r.root || parts[3] != r.suffix {
			return Key{}, false
		}
		return Key{Camera: parts[1], Object: parts[2]}, true
	}

	if !Matches(r.pattern, topic) {
		return Key{}, false
	}
	return Singleton, true
}
