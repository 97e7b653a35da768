package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		topic   string
		want    bool
	}{
		{"exact match", "frigate/hofcam1/person/snapshot", "frigate/hofcam1/person/snapshot", true},
		{"exact mismatch", "frigate/hofcam1/person/snapshot", "frigate/hofcam1/person/clip", false},
		{"single level wildcard", "frigate/+/person/snapshot", "frigate/cam1/person/snapshot", true},
		{"single level wildcard two", "frigate/+/+/snapshot", "frigate/cam1/person/snapshot", true},
		{"plus matches exactly one level", "frigate/+/snapshot", "frigate/cam1/person/snapshot", false},
		{"multi level wildcard", "frigate/#", "frigate/cam1/person/snapshot", true},
		{"hash matches zero extra levels at boundary", "frigate/#", "frigate/cam1", true},
		{"hash only valid as last segment", "frigate/#/snapshot", "frigate/cam1/snapshot", false},
		{"topic shorter than pattern", "frigate/+/+/snapshot", "frigate/cam1/snapshot", false},
		{"topic longer than pattern", "frigate/+/+/snapshot", "frigate/cam1/person/snapshot/extra", false},
		{"root mismatch", "frigate/+/+/snapshot", "zoneminder/cam1/person/snapshot", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.pattern, tt.topic))
		})
	}
}

func TestKey_String(t *testing.T) {
	assert.Equal(t, "default", Singleton.String())
	assert.Equal(t, "cam1/person", Key{Camera: "cam1", Object: "person"}.String())
	assert.True(t, Singleton.IsSingleton())
	assert.False(t, Key{Camera: "cam1", Object: "person"}.IsSingleton())
}

func TestRouter_SingleMode(t *testing.T) {
	r := NewRouter("frigate/hofcam1/person/snapshot", false)
	assert.False(t, r.Gallery())
	assert.Equal(t, "frigate/hofcam1/person/snapshot", r.Pattern())

	key, ok := r.Route("frigate/hofcam1/person/snapshot")
	assert.True(t, ok)
	assert.Equal(t, Singleton, key)

	_, ok = r.Route("frigate/hofcam1/person/clip")
	assert.False(t, ok)
}

func TestRouter_SingleModeWildcard(t *testing.T) {
	r := NewRouter("frigate/+/person/snapshot", false)

	key, ok := r.Route("frigate/anycam/person/snapshot")
	assert.True(t, ok)
	assert.Equal(t, Singleton, key)

	_, ok = r.Route("frigate/anycam/car/snapshot")
	assert.False(t, ok)
}

func TestRouter_GalleryMode(t *testing.T) {
	r := NewRouter("frigate/+/+/snapshot", true)
	assert.True(t, r.Gallery())

	key, ok := r.Route("frigate/cam1/person/snapshot")
	assert.True(t, ok)
	assert.Equal(t, Key{Camera: "cam1", Object: "person"}, key)

	// Wrong suffix
	_, ok = r.Route("frigate/cam1/person/clip")
	assert.False(t, ok)

	// Wrong segment count
	_, ok = r.Route("frigate/cam1/snapshot")
	assert.False(t, ok)

	// Wrong root
	_, ok = r.Route("zoneminder/cam1/person/snapshot")
	assert.False(t, ok)

	// Too many segments
	_, ok = r.Route("frigate/cam1/person/snapshot/extra")
	assert.False(t, ok)
}

func TestRouter_GalleryModeCustomLiterals(t *testing.T) {
	r := NewRouter("cameras/+/+/still", true)

	key, ok := r.Route("cameras/front/car/still")
	assert.True(t, ok)
	assert.Equal(t, Key{Camera: "front", Object: "car"}, key)

	_, ok = r.Route("frigate/front/car/snapshot")
	assert.False(t, ok)
}

func TestRouter_GalleryModeWildcardLiteralsFallBack(t *testing.T) {
	// When root and suffix are themselves wildcards the Frigate defaults apply.
	r := NewRouter("#", true)

	key, ok := r.Route("frigate/cam2/dog/snapshot")
	assert.True(t, ok)
	assert.Equal(t, Key{Camera: "cam2", Object: "dog"}, key)

	_, ok = r.Route("other/cam2/dog/snapshot")
	assert.False(t, ok)
}
