// Package mqtt provides the MQTT input component that feeds the ingestion
// pipeline with inbound snapshot messages.
//
// The component owns the broker connection lifecycle: initial connect (fatal
// on failure, the process must not serve HTTP without an ingestion path),
// topic subscription, and automatic reconnection with re-subscription. Each
// received message is handed to an injected Handler, keeping the pipeline
// decoupled from the client library's callback mechanics.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/config"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/errors"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/health"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/metric"
)

// subscribeQoS is the QoS level for the snapshot subscription. At-most-once
// matches the freshness semantics: a lost snapshot is superseded by the next.
const subscribeQoS = 0

// Handler receives each inbound message. Called from the client library's
// delivery goroutine, one message at a time.
type Handler func(ctx context.Context, topic string, payload []byte)

// InputDeps holds runtime dependencies for the MQTT input component.
type InputDeps struct {
	Config  config.MQTTConfig
	Handler Handler
	Metrics *metric.Registry
	Logger  *slog.Logger
}

// Input is the MQTT input component.
type Input struct {
	cfg     config.MQTTConfig
	handler Handler
	metrics *metric.Registry
	logger  *slog.Logger

	client pahomqtt.Client

	running   atomic.Bool
	connected atomic.Bool
	startTime time.Time

	messagesReceived atomic.Int64
	reconnects       atomic.Int64
	errorCount       atomic.Int64
}

// NewInput creates an MQTT input component.
func NewInput(deps InputDeps) *Input {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "mqtt-input")
	}

	return &Input{
		cfg:     deps.Config,
		handler: deps.Handler,
		metrics: deps.Metrics,
		logger:  logger,
	}
}

// Initialize validates the component configuration.
func (i *Input) Initialize() error {
	if i.handler == nil {
		return errors.WrapInvalid(fmt.Errorf("nil message handler"),
			"mqtt-input", "Initialize", "handler validation")
	}
	if i.cfg.Topic == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"mqtt-input", "Initialize", "topic validation")
	}
	if i.cfg.BrokerHost == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"mqtt-input", "Initialize", "broker validation")
	}
	return nil
}

// Start connects to the broker and subscribes to the configured topic.
// A connect failure here is fatal: the caller must abort startup rather than
// serve HTTP with no ingestion path. Connection losses after a successful
// start are handled by the client's automatic reconnection.
func (i *Input) Start(ctx context.Context) error {
	if i.running.Load() {
		return nil // Already running, idempotent
	}

	opts, err := i.clientOptions(ctx)
	if err != nil {
		return err
	}

	i.client = pahomqtt.NewClient(opts)
	i.startTime = time.Now()

	i.logger.Info("connecting to mqtt broker", "broker", i.cfg.BrokerAddr(), "topic", i.cfg.Topic)

	timeout := i.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	token := i.client.Connect()
	if !token.WaitTimeout(timeout) {
		return errors.WrapFatal(errors.ErrConnectionTimeout,
			"mqtt-input", "Start", "broker connect")
	}
	if err := token.Error(); err != nil {
		return errors.WrapFatal(err, "mqtt-input", "Start", "broker connect")
	}

	i.running.Store(true)
	return nil
}

// clientOptions builds the paho client options, including TLS material when
// configured.
func (i *Input) clientOptions(ctx context.Context) (*pahomqtt.ClientOptions, error) {
	clientID := i.cfg.ClientID
	if clientID == "" {
		clientID = "snapviewer-" + uuid.NewString()[:8]
	}

	scheme := "tcp"
	if i.cfg.TLSEnabled() {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("%s://%s", scheme, i.cfg.BrokerAddr()))
	opts.SetClientID(clientID)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	if i.cfg.Username != "" {
		opts.SetUsername(i.cfg.Username)
		opts.SetPassword(i.cfg.Password)
	}

	if i.cfg.TLSEnabled() {
		tlsConfig, err := i.tlsConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	firstConnect := true
	opts.OnConnect = func(c pahomqtt.Client) {
		i.connected.Store(true)
		if i.metrics != nil {
			i.metrics.Core().MQTTConnected.Set(1)
		}
		if !firstConnect {
			i.reconnects.Add(1)
			if i.metrics != nil {
				i.metrics.Core().MQTTReconnects.Inc()
			}
		}
		firstConnect = false

		i.logger.Info("mqtt connection established", "broker", i.cfg.BrokerAddr())
		i.subscribe(ctx, c)
	}

	opts.OnConnectionLost = func(_ pahomqtt.Client, err error) {
		i.connected.Store(false)
		i.errorCount.Add(1)
		if i.metrics != nil {
			i.metrics.Core().MQTTConnected.Set(0)
		}
		i.logger.Warn("mqtt connection lost, waiting for automatic reconnection",
			"broker", i.cfg.BrokerAddr(), "error", err)
	}

	return opts, nil
}

// subscribe registers the topic subscription. Runs on every (re)connect so
// the subscription survives broker restarts.
func (i *Input) subscribe(ctx context.Context, c pahomqtt.Client) {
	token := c.Subscribe(i.cfg.Topic, subscribeQoS, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		i.messagesReceived.Add(1)
		i.logger.Debug("mqtt message received", "topic", msg.Topic(), "size", len(msg.Payload()))
		i.handler(ctx, msg.Topic(), msg.Payload())
	})

	if !token.WaitTimeout(5 * time.Second) {
		i.errorCount.Add(1)
		i.logger.Error("mqtt subscribe timed out", "topic", i.cfg.Topic, "error", errors.ErrSubscribeFailed)
		return
	}
	if err := token.Error(); err != nil {
		i.errorCount.Add(1)
		i.logger.Error("mqtt subscribe failed", "topic", i.cfg.Topic, "error", err)
		return
	}

	i.logger.Info("subscribed to topic", "topic", i.cfg.Topic)
}

// tlsConfig loads the configured certificate material.
func (i *Input) tlsConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if i.cfg.CACert != "" {
		pem, err := os.ReadFile(i.cfg.CACert)
		if err != nil {
			return nil, errors.WrapFatal(err, "mqtt-input", "tlsConfig", "CA certificate read")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.WrapFatal(fmt.Errorf("no certificates parsed from %s", i.cfg.CACert),
				"mqtt-input", "tlsConfig", "CA certificate parse")
		}
		tlsConfig.RootCAs = pool
	}

	if i.cfg.ClientCert != "" && i.cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(i.cfg.ClientCert, i.cfg.ClientKey)
		if err != nil {
			return nil, errors.WrapFatal(err, "mqtt-input", "tlsConfig", "client certificate load")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Stop disconnects from the broker, allowing up to timeout for in-flight
// work to finish.
func (i *Input) Stop(timeout time.Duration) error {
	if !i.running.Load() {
		return nil
	}
	i.running.Store(false)

	if i.client != nil && i.client.IsConnected() {
		if token := i.client.Unsubscribe(i.cfg.Topic); token != nil {
			token.WaitTimeout(timeout)
		}
		i.client.Disconnect(uint(timeout.Milliseconds()))
	}
	i.connected.Store(false)
	if i.metrics != nil {
		i.metrics.Core().MQTTConnected.Set(0)
	}

	i.logger.Info("mqtt input stopped")
	return nil
}

// Health returns the current health status of the component.
func (i *Input) Health() health.Status {
	metrics := &health.Metrics{
		Uptime:            time.Since(i.startTime),
		ErrorCount:        int(i.errorCount.Load()),
		MessagesProcessed: i.messagesReceived.Load(),
	}

	switch {
	case !i.running.Load():
		return health.NewUnhealthy("mqtt-input", "not started").WithMetrics(metrics)
	case !i.connected.Load():
		return health.NewDegraded("mqtt-input", "disconnected, reconnect pending").WithMetrics(metrics)
	default:
		return health.NewHealthy("mqtt-input", "connected and subscribed").WithMetrics(metrics)
	}
}

// MessagesReceived returns the number of messages delivered to the handler.
func (i *Input) MessagesReceived() int64 {
	return i.messagesReceived.Load()
}
