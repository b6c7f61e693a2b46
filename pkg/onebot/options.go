package onebot

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sipeed/onebot-go/pkg/bus"
	"github.com/sipeed/onebot-go/pkg/config"
	"github.com/sipeed/onebot-go/pkg/eventbus"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultPingInterval     = 30 * time.Second
	defaultReadTimeout      = 60 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultReadLimit        = 16 << 20
)

type options struct {
	handshakeTimeout time.Duration
	pingInterval     time.Duration
	readTimeout      time.Duration
	writeTimeout     time.Duration
	readLimit        int64
	maxPending       int
	eventQueueSize   int
	inlineDispatch   bool

	header   http.Header
	dialer   *websocket.Dialer
	bus      *bus.MessageBus
	registry *eventbus.Registry
	onPanic  eventbus.PanicHandler
	newToken func() string
}

func defaultOptions() options {
	return options{
		handshakeTimeout: defaultHandshakeTimeout,
		pingInterval:     defaultPingInterval,
		readTimeout:      defaultReadTimeout,
		writeTimeout:     defaultWriteTimeout,
		readLimit:        defaultReadLimit,
		header:           http.Header{},
		newToken:         uuid.NewString,
	}
}

// Option configures a Client.
type Option func(*options)

// WithHandshakeTimeout bounds the websocket opening handshake in Dial.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) { o.handshakeTimeout = d }
}

// WithPingInterval sets how often a ping is sent. 0 disables pings.
func WithPingInterval(d time.Duration) Option {
	return func(o *options) { o.pingInterval = d }
}

// WithReadTimeout sets how long the connection may stay silent, pongs
// included, before it is considered dead. 0 disables the deadline.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) { o.readTimeout = d }
}

// WithWriteTimeout bounds each frame write. 0 disables the deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}

// WithReadLimit caps the size of an inbound frame in bytes.
func WithReadLimit(n int64) Option {
	return func(o *options) { o.readLimit = n }
}

// WithMaxPending caps the number of in-flight requests. 0 means no cap.
func WithMaxPending(n int) Option {
	return func(o *options) { o.maxPending = n }
}

// WithEventQueueSize caps how many events may wait for dispatch. Events
// arriving while the queue is full are dropped and counted. The default, 0,
// never drops.
func WithEventQueueSize(n int) Option {
	return func(o *options) { o.eventQueueSize = n }
}

// WithInlineDispatch runs handlers on the read goroutine, so every frame is
// fully handled before the next is read. Handlers must not wait on Invoke.
func WithInlineDispatch() Option {
	return func(o *options) { o.inlineDispatch = true }
}

// WithHeader adds a header to the opening handshake.
func WithHeader(key, value string) Option {
	return func(o *options) { o.header.Add(key, value) }
}

// WithDialer replaces the websocket dialer used by Dial.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithBus publishes diagnostics and frame copies on b.
func WithBus(b *bus.MessageBus) Option {
	return func(o *options) { o.bus = b }
}

// WithRegistry dispatches events through an existing registry.
func WithRegistry(r *eventbus.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithPanicHandler is called when an event handler panics.
func WithPanicHandler(h eventbus.PanicHandler) Option {
	return func(o *options) { o.onPanic = h }
}

// WithTokenGenerator replaces the correlation token source.
func WithTokenGenerator(fn func() string) Option {
	return func(o *options) { o.newToken = fn }
}

// ConfigOptions translates the onebot section of a config file.
func ConfigOptions(cfg config.OneBotConfig) []Option {
	opts := []Option{
		WithHandshakeTimeout(cfg.HandshakeTimeout),
		WithPingInterval(cfg.PingInterval),
		WithReadTimeout(cfg.ReadTimeout),
		WithWriteTimeout(cfg.WriteTimeout),
		WithMaxPending(cfg.MaxPending),
		WithEventQueueSize(cfg.EventQueueSize),
	}
	if cfg.InlineDispatch {
		opts = append(opts, WithInlineDispatch())
	}
	if cfg.ReadLimit > 0 {
		opts = append(opts, WithReadLimit(cfg.ReadLimit))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, WithHeader(k, v))
	}
	return opts
}
