// Package mqtt implements pushchannel.PushChannel over
// github.com/eclipse/paho.mqtt.golang. Each command arrives as a
// retained-false message on "{xmr_channel}/cmd"; paho's own
// auto-reconnect is disabled in favour of a thin capped-backoff wrapper,
// since the spec calls for linear-to-exponential backoff bounded by a
// maximum attempt count rather than paho's fixed retry interval.
package mqtt

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/hashicorp/go-hclog"

	"playercore/internal/logging"
	"playercore/internal/pushchannel"
)

const (
	defaultMaxReconnectAttempts = 8
	defaultBaseDelay            = 1 * time.Second
	defaultMaxDelay             = 60 * time.Second
)

// Channel is an MQTT-backed pushchannel.PushChannel.
type Channel struct {
	mu       sync.Mutex
	client   paho.Client
	commands chan pushchannel.Command
	logger   *slog.Logger
	pahoLog  *log.Logger
	cancel   context.CancelFunc

	maxReconnectAttempts int
	baseDelay            time.Duration
	maxDelay             time.Duration

	stoppedIntentionally bool
}

// Option configures a Channel at construction time.
type Option func(*Channel)

// WithBackoff overrides the default capped-backoff parameters.
func WithBackoff(maxAttempts int, base, max time.Duration) Option {
	return func(c *Channel) {
		c.maxReconnectAttempts = maxAttempts
		c.baseDelay = base
		c.maxDelay = max
	}
}

// New creates a Channel. logger may be nil.
func New(logger *slog.Logger, opts ...Option) *Channel {
	c := &Channel{
		commands:             make(chan pushchannel.Command, 32),
		logger:               logging.Default(logger).With("component", "pushchannel-mqtt"),
		maxReconnectAttempts: defaultMaxReconnectAttempts,
		baseDelay:            defaultBaseDelay,
		maxDelay:             defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	// paho only accepts a logger exposing Println/Printf; go-hclog's
	// StandardLogger gives us that without hand-rolling an adapter type.
	c.pahoLog = hclog.New(&hclog.LoggerOptions{Name: "mqtt", Level: hclog.Warn}).
		StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true})
	return c
}

// Start connects to url, subscribing to "{key}/cmd", and runs a
// capped-backoff reconnect loop in the background until Stop is called or
// the attempt budget is exhausted. Calling Start again while already
// connected is a no-op.
func (c *Channel) Start(ctx context.Context, url, key string) error {
	c.mu.Lock()
	if c.client != nil && c.client.IsConnected() {
		c.mu.Unlock()
		return nil
	}
	c.stoppedIntentionally = false
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	if err := c.connect(url, key); err != nil {
		c.logger.Warn("initial connect failed, will retry in background", "error", err)
	}
	go c.reconnectLoop(runCtx, url, key)
	return nil
}

func (c *Channel) reconnectLoop(ctx context.Context, url, key string) {
	bo := newBackoff(c.maxReconnectAttempts, c.baseDelay, c.maxDelay)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		connected := c.client != nil && c.client.IsConnected()
		intentional := c.stoppedIntentionally
		c.mu.Unlock()
		if intentional {
			return
		}
		if connected {
			bo.reset()
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		delay, ok := bo.next()
		if !ok {
			c.logger.Warn("exhausted reconnect attempts, waiting for next collection cycle")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if err := c.connect(url, key); err != nil {
			c.logger.Warn("reconnect attempt failed", "error", err, "attempt", bo.attempt)
			continue
		}
		c.logger.Info("push channel reconnected")
		bo.reset()
	}
}

func (c *Channel) connect(url, key string) error {
	opts := paho.NewClientOptions().
		AddBroker(url).
		SetClientID(fmt.Sprintf("playercore-%s", key)).
		SetAutoReconnect(false).
		SetConnectionLostHandler(func(paho.Client, error) {})

	paho.ERROR = c.pahoLog
	paho.CRITICAL = c.pahoLog
	paho.WARN = c.pahoLog

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt connect timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	topic := key + "/cmd"
	subToken := client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
		cmd, err := decodeCommand(msg.Payload())
		if err != nil {
			c.logger.Warn("discarding malformed push command", "error", err)
			return
		}
		c.commands <- cmd
	})
	if !subToken.WaitTimeout(10 * time.Second) {
		client.Disconnect(0)
		return fmt.Errorf("mqtt subscribe to %s timed out", topic)
	}
	if err := subToken.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("mqtt subscribe to %s: %w", topic, err)
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	return nil
}

// Stop disconnects and suppresses the automatic reconnect loop.
func (c *Channel) Stop() {
	c.mu.Lock()
	c.stoppedIntentionally = true
	client := c.client
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
}

// Commands returns the channel of decoded inbound commands.
func (c *Channel) Commands() <-chan pushchannel.Command { return c.commands }
