package onebot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sipeed/onebot-go/pkg/logger"
)

// Conn is the message-oriented transport a Client runs on.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Transports that also support deadlines and control frames get keepalive.
type deadlineConn interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

type pongConn interface {
	SetPongHandler(h func(appData string) error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
}

type limitConn interface {
	SetReadLimit(limit int64)
}

// Dial opens a websocket to url and starts a Client on it.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	dialer := o.dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: o.handshakeTimeout,
		}
	}

	conn, resp, err := dialer.DialContext(ctx, url, o.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("onebot: dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("onebot: dial %s: %w", url, err)
	}

	logger.InfoCF("onebot", "Connected", map[string]interface{}{
		"url": url,
	})

	c := newClient(conn, o)
	c.url = url
	c.start()
	return c, nil
}
