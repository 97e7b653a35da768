package metric

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/errors"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r)
	require.NotNil(t, r.Core())
	require.NotNil(t, r.PrometheusRegistry())

	// Core metrics are registered and gatherable
	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRegistry_RegisterCounter(t *testing.T) {
	r := NewRegistry()

	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter_total",
		Help: "test",
	})
	require.NoError(t, r.RegisterCounter("web", "test_counter", c))

	// Duplicate registration under the same name is rejected
	err := r.RegisterCounter("web", "test_counter", c)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()

	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_gauge",
		Help: "test",
	})
	require.NoError(t, r.RegisterGauge("web", "test_gauge", g))

	assert.True(t, r.Unregister("web", "test_gauge"))
	assert.False(t, r.Unregister("web", "test_gauge"))

	// Re-registration after unregister succeeds
	require.NoError(t, r.RegisterGauge("web", "test_gauge", g))
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.Core().MessagesReceived.Inc()
	r.Core().ImagesStored.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "snapviewer_ingest_messages_received_total")
	assert.Contains(t, body, "snapviewer_ingest_images_stored_total")
}
