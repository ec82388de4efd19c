// client.go: paho-backed implementation of Client.
package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/birdnet-api2ha/internal/errors"
	"github.com/tphakala/birdnet-api2ha/internal/logger"
	"github.com/tphakala/birdnet-api2ha/internal/observability/metrics"
)

// Error kinds reported to metrics.
const (
	errKindConnect = "connect"
	errKindPublish = "publish"
	errKindTimeout = "timeout"
)

// client implements the Client interface.
type client struct {
	config         Config
	internalClient paho.Client
	mu             sync.Mutex
	log            logger.Logger
	metrics        *metrics.MQTTMetrics
}

// Option configures optional client dependencies.
type Option func(*client)

// WithLogger sets the module logger.
func WithLogger(l logger.Logger) Option {
	return func(c *client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics records connection and publish metrics.
func WithMetrics(m *metrics.MQTTMetrics) Option {
	return func(c *client) {
		c.metrics = m
	}
}

// NewClient creates a new MQTT client with the provided configuration.
// It does not connect.
func NewClient(cfg Config, opts ...Option) (Client, error) {
	if cfg.Broker == "" {
		return nil, errors.Newf("mqtt broker address is empty").
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}
	defaults := DefaultConfig()
	if cfg.ClientID == "" {
		cfg.ClientID = defaults.ClientID
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaults.PublishTimeout
	}
	if cfg.DisconnectTimeout <= 0 {
		cfg.DisconnectTimeout = defaults.DisconnectTimeout
	}

	c := &client{
		config: cfg,
		log:    logger.NewSlogLogger(nil, logger.LogLevelError, nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect attempts to establish a connection to the MQTT broker.
// It first resolves the broker's hostname and then attempts to connect.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return c.connectError(fmt.Errorf("invalid broker URL: %w", err))
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return c.connectError(fmt.Errorf("failed to resolve hostname %s: %w", host, err))
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.internalClient = paho.NewClient(opts)

	token := c.internalClient.Connect()
	if err := waitToken(ctx, token, c.config.ConnectTimeout); err != nil {
		return c.connectError(err)
	}

	c.metrics.UpdateConnectionStatus(true)
	return nil
}

func (c *client) connectError(err error) error {
	c.metrics.IncrementErrors(errKindConnect)
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTConnection).
		Context("broker", c.config.Broker).
		Build()
}

// Publish sends a message to the specified topic on the MQTT broker.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnected() {
		c.metrics.IncrementErrors(errKindPublish)
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("broker", c.config.Broker).
			Build()
	}

	start := time.Now()
	token := c.internalClient.Publish(topic, 0, false, payload)
	if err := waitToken(ctx, token, c.config.PublishTimeout); err != nil {
		kind := errKindPublish
		if errors.Is(err, errTokenTimeout) {
			kind = errKindTimeout
		}
		c.metrics.IncrementErrors(kind)
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	c.metrics.RecordPublish(len(payload), time.Since(start))
	c.log.Trace("message published",
		logger.String("topic", topic),
		logger.Int("size", len(payload)))
	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected()
}

func (c *client) isConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.internalClient == nil {
		return
	}
	if c.internalClient.IsConnected() {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		c.log.Info("disconnected from MQTT broker", logger.String("broker", c.config.Broker))
	}
	c.metrics.UpdateConnectionStatus(false)
}

func (c *client) onConnect(_ paho.Client) {
	c.log.Info("connected to MQTT broker", logger.String("broker", c.config.Broker))
	c.metrics.UpdateConnectionStatus(true)
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("connection to MQTT broker lost",
		logger.String("broker", c.config.Broker),
		logger.Error(err))
	c.metrics.IncrementConnectionLost()
}

var errTokenTimeout = errors.NewStd("mqtt operation timed out")

// waitToken blocks until token completes, ctx ends or timeout elapses.
func waitToken(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errTokenTimeout
	}
}
