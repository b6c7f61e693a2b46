package onebot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sipeed/onebot-go/pkg/config"
	"github.com/sipeed/onebot-go/pkg/eventbus"
	"github.com/sipeed/onebot-go/pkg/events"
)

// backend is a minimal OneBot server: it answers get_login_info, fails
// everything else, and pushes a group recall notice on connect.
func backend(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"time":1,"self_id":10,"post_type":"notice","notice_type":"group_recall","group_id":1,"user_id":2,"operator_id":2,"message_id":3}`))

		for {
			var req Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := Response{Echo: req.Echo, Data: json.RawMessage("null")}
			switch req.Action {
			case ActionGetLoginInfo:
				resp.Status = StatusOK
				resp.Data = json.RawMessage(`{"user_id":123,"nickname":"x"}`)
			default:
				resp.Status = StatusFailed
				resp.Retcode = 1404
				resp.Wording = "unknown action"
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialEndToEnd(t *testing.T) {
	srv := backend(t)

	cfg := config.Default().OneBot
	cfg.Headers = map[string]string{"Authorization": "Bearer secret"}
	cfg.PingInterval = 50 * time.Millisecond
	cfg.ReadTimeout = 200 * time.Millisecond

	// Subscribe before the first event can arrive.
	reg := eventbus.New()
	recalls := make(chan events.GroupRecallNotice, 1)
	reg.Subscribe(string(events.TopicNoticeGroupRecall), func(ev events.Event) error {
		var n events.GroupRecallNotice
		if err := ev.Decode(&n); err != nil {
			return err
		}
		recalls <- n
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	c, err := Dial(ctx, wsURL(srv), append(ConfigOptions(cfg), WithRegistry(reg))...)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close()

	if c.URL() != wsURL(srv) {
		t.Errorf("URL() = %q", c.URL())
	}

	select {
	case n := <-recalls:
		if n.MessageID != 3 || n.EventName != "notice.group.recall" {
			t.Errorf("recall = %+v", n)
		}
	case <-time.After(testTimeout):
		t.Fatal("recall notice not delivered")
	}

	info, err := c.GetLoginInfo(ctx)
	if err != nil {
		t.Fatalf("GetLoginInfo() error = %v", err)
	}
	if info.UserID != 123 || info.Nickname != "x" {
		t.Errorf("info = %+v", info)
	}

	_, err = c.Invoke(ctx, "no_such_action", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || err.Error() != "unknown action" {
		t.Errorf("Invoke() error = %v", err)
	}

	// Idle longer than the read timeout; pongs keep the connection alive.
	time.Sleep(300 * time.Millisecond)
	select {
	case <-c.Done():
		t.Fatalf("connection dropped while idle: %v", c.Err())
	default:
	}
}

func TestDialServerClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Swallow one request, then hang up without answering.
		conn.ReadMessage()
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
		conn.Close()
	}))
	defer srv.Close()

	c, err := Dial(context.Background(), wsURL(srv))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if _, err := c.Invoke(ctx, "get_status", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Invoke() error = %v, want ErrClosed", err)
	}

	<-c.Done()
	var ce *websocket.CloseError
	if !errors.Is(c.Err(), ErrClosed) || !errors.As(c.Err(), &ce) || ce.Code != websocket.CloseGoingAway {
		t.Errorf("Err() = %v", c.Err())
	}
}

func TestDialRejected(t *testing.T) {
	srv := backend(t)

	_, err := Dial(context.Background(), wsURL(srv))
	if err == nil {
		t.Fatal("Dial() without credentials succeeded")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %v, want status 401 mentioned", err)
	}
}
