// Package onebot connects to a OneBot v11 backend over a websocket.
//
// A Client owns one connection. Inbound frames carrying a non-empty echo are
// responses and complete the matching request; every other frame is an
// event, classified into topics and dispatched to subscribers from the most
// specific topic down to the bare post_type. Requests may be issued from
// any goroutine, including from inside event handlers.
//
// Frames are read one at a time. Responses complete their caller on the
// read goroutine, while events are handed in arrival order to a separate
// dispatch goroutine so a handler may wait on Invoke. A response can
// therefore resolve its caller before the handlers of an earlier event have
// run. WithInlineDispatch restores strict frame order at the cost of
// handlers not being allowed to wait on Invoke.
package onebot

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/sipeed/onebot-go/pkg/bus"
	"github.com/sipeed/onebot-go/pkg/eventbus"
	"github.com/sipeed/onebot-go/pkg/events"
	"github.com/sipeed/onebot-go/pkg/logger"
	"github.com/sipeed/onebot-go/pkg/pending"
)

const frameExcerpt = 256

var errInvalidJSON = errors.New("frame is not valid JSON")

type inbound struct {
	topics []events.Topic
	record events.Record
	raw    []byte
}

// Client is a live connection to a OneBot backend.
type Client struct {
	conn     Conn
	opts     options
	url      string
	registry *eventbus.Registry
	table    *pending.Table
	bus      *bus.MessageBus

	writeMu sync.Mutex
	queue   *eventQueue
	dropped atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// NewClient starts a Client on an already established connection.
func NewClient(conn Conn, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	c := newClient(conn, o)
	c.start()
	return c
}

func newClient(conn Conn, o options) *Client {
	reg := o.registry
	if reg == nil {
		var ropts []eventbus.Option
		if o.onPanic != nil {
			ropts = append(ropts, eventbus.WithPanicHandler(o.onPanic))
		}
		reg = eventbus.New(ropts...)
	}

	c := &Client{
		conn:     conn,
		opts:     o,
		registry: reg,
		table:    pending.New(o.maxPending),
		bus:      o.bus,
		done:     make(chan struct{}),
	}
	if !o.inlineDispatch {
		c.queue = newEventQueue(o.eventQueueSize)
	}
	return c
}

func (c *Client) start() {
	c.configureConn()
	c.publish(bus.ConnectionOpened, bus.ConnectionData{URL: c.url})

	if c.queue != nil {
		go c.dispatchLoop()
	}
	if c.opts.pingInterval > 0 {
		if pc, ok := c.conn.(pongConn); ok {
			go c.pingLoop(pc)
		}
	}
	go c.readLoop()
}

func (c *Client) configureConn() {
	if lc, ok := c.conn.(limitConn); ok && c.opts.readLimit > 0 {
		lc.SetReadLimit(c.opts.readLimit)
	}
	if c.opts.readTimeout <= 0 {
		return
	}
	dc, ok := c.conn.(deadlineConn)
	if !ok {
		return
	}
	dc.SetReadDeadline(time.Now().Add(c.opts.readTimeout))
	if pc, ok := c.conn.(pongConn); ok {
		pc.SetPongHandler(func(string) error {
			return dc.SetReadDeadline(time.Now().Add(c.opts.readTimeout))
		})
	}
}

func (c *Client) extendReadDeadline() {
	if c.opts.readTimeout <= 0 {
		return
	}
	if dc, ok := c.conn.(deadlineConn); ok {
		dc.SetReadDeadline(time.Now().Add(c.opts.readTimeout))
	}
}

// Registry returns the subscription registry events are dispatched through.
func (c *Client) Registry() *eventbus.Registry { return c.registry }

// URL returns the address the client dialed, or "" for NewClient.
func (c *Client) URL() string { return c.url }

// Pending returns the number of requests awaiting a response.
func (c *Client) Pending() int { return c.table.Len() }

// DroppedEvents returns how many events were discarded because the
// dispatch queue was at its WithEventQueueSize limit. Always 0 without one.
func (c *Client) DroppedEvents() uint64 { return c.dropped.Load() }

// Done is closed when the connection has ended.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns why the connection ended, or nil while it is open.
// The error always matches ErrClosed.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close ends the connection. Pending requests fail with ErrClosed.
// Events already queued are still dispatched.
func (c *Client) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *Client) shutdown(cause error) {
	c.closeOnce.Do(func() {
		err := ErrClosed
		if cause != nil && !errors.Is(cause, ErrClosed) {
			err = fmt.Errorf("%w: %w", ErrClosed, cause)
		}

		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()

		failed := c.table.Close(err)
		c.conn.Close()
		close(c.done)

		fields := map[string]interface{}{
			"url":     c.url,
			"pending": failed,
		}
		data := bus.ConnectionData{URL: c.url, Pending: failed}
		if cause != nil {
			fields["error"] = cause.Error()
			data.Error = cause.Error()
		}
		if cause == nil || websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			logger.InfoCF("onebot", "Connection closed", fields)
		} else {
			logger.WarnCF("onebot", "Connection lost", fields)
		}
		c.publish(bus.ConnectionClosed, data)
	})
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// --- Inbound ---

func (c *Client) readLoop() {
	defer func() {
		if c.queue != nil {
			c.queue.close()
		}
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}
		c.extendReadDeadline()
		if c.bus != nil {
			c.bus.PublishInbound(data)
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	if !gjson.ValidBytes(data) {
		c.protocolError(bus.ProtocolDecodeError, errInvalidJSON, data)
		return
	}
	if echo := echoOf(data); echo != "" {
		c.handleResponse(echo, data)
		return
	}

	rec, err := events.ParseRecord(data)
	if err != nil {
		c.protocolError(bus.ProtocolDecodeError, err, data)
		return
	}
	topics, err := events.Classify(rec)
	if err != nil {
		c.protocolError(bus.ProtocolClassifyError, err, data)
		return
	}

	in := inbound{topics: topics, record: rec, raw: data}
	if c.queue == nil {
		c.dispatch(in)
		return
	}
	if !c.queue.push(in) {
		c.dropped.Add(1)
		logger.WarnCF("onebot", "Event queue full, dropping event", map[string]interface{}{
			"topic": string(topics[0]),
		})
		c.publish(bus.EventDropped, bus.ProtocolErrorData{
			Error: "event queue full",
			Frame: truncate(data, frameExcerpt),
		})
	}
}

func (c *Client) handleResponse(token string, data []byte) {
	resp := parseResponse(data)

	var action string
	if call, ok := c.table.Get(token); ok {
		action = call.Action
	}

	result, err := resp.result(action)
	var perr *ProtocolError
	if errors.As(err, &perr) {
		perr.Frame = truncate(data, frameExcerpt)
	}

	if !c.table.Resolve(token, result, err) {
		if !c.isClosed() {
			logger.DebugCF("onebot", "Dropped response with no pending request", map[string]interface{}{
				"echo":   token,
				"status": resp.Status,
			})
			c.publish(bus.ResponseOrphaned, bus.ResponseOrphanedData{Echo: token, Status: resp.Status})
		}
		return
	}
	if perr != nil {
		c.protocolError(bus.ProtocolUnknownStatus, perr, data)
	}
}

func (c *Client) dispatchLoop() {
	for {
		in, ok := c.queue.pop()
		if !ok {
			return
		}
		c.dispatch(in)
	}
}

// dispatch publishes one event under each of its topics, most specific first.
func (c *Client) dispatch(in inbound) {
	ev := events.NewEvent(in.topics[0], in.record, in.raw)
	for _, topic := range in.topics {
		res := c.registry.Dispatch(string(topic), ev)
		for _, err := range res.Errors {
			var pe *eventbus.PanicError
			c.publish(bus.HandlerFailed, bus.HandlerFailedData{
				Topic:    string(topic),
				Error:    err.Error(),
				Panicked: errors.As(err, &pe),
			})
		}
	}
}

func (c *Client) protocolError(kind string, err error, data []byte) {
	logger.WarnCF("onebot", "Dropping frame", map[string]interface{}{
		"kind":  kind,
		"error": err.Error(),
		"frame": truncate(data, frameExcerpt),
	})
	c.publish(kind, bus.ProtocolErrorData{
		Error: err.Error(),
		Frame: truncate(data, frameExcerpt),
	})
}

func (c *Client) publish(kind string, data interface{}) {
	if c.bus == nil {
		return
	}
	c.bus.PublishSystem(bus.SystemEvent{Type: kind, Source: "onebot", Data: data})
}

// --- Outbound ---

// writeFrame sends one JSON document as one text message.
func (c *Client) writeFrame(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if dc, ok := c.conn.(deadlineConn); ok && c.opts.writeTimeout > 0 {
		dc.SetWriteDeadline(time.Now().Add(c.opts.writeTimeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	if c.bus != nil {
		c.bus.PublishOutbound(data)
	}
	return nil
}

func (c *Client) pingLoop(pc pongConn) {
	ticker := time.NewTicker(c.opts.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			var deadline time.Time
			if c.opts.writeTimeout > 0 {
				deadline = time.Now().Add(c.opts.writeTimeout)
			}
			if err := pc.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.shutdown(fmt.Errorf("ping: %w", err))
				return
			}
		}
	}
}
