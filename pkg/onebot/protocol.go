package onebot

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Response statuses.
const (
	StatusOK     = "ok"
	StatusAsync  = "async"
	StatusFailed = "failed"
)

var (
	// ErrClosed is returned for calls made on, or pending at, a closed connection.
	ErrClosed = errors.New("onebot: connection closed")

	// ErrEmptyAction is returned by Send when no action name is given.
	ErrEmptyAction = errors.New("onebot: empty action")
)

// Request is the outbound command frame.
type Request struct {
	Action string `json:"action"`
	Params any    `json:"params"`
	Echo   string `json:"echo"`
}

// Response is the inbound reply to a Request, matched by Echo.
type Response struct {
	Status  string          `json:"status"`
	Retcode int64           `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
	Msg     string          `json:"msg,omitempty"`
	Wording string          `json:"wording,omitempty"`
	Echo    string          `json:"echo"`
}

// parseResponse reads a response frame. Fields with unexpected JSON types
// are read leniently; echo may be a string or a number.
func parseResponse(data []byte) Response {
	r := gjson.ParseBytes(data)
	resp := Response{
		Status:  r.Get("status").String(),
		Retcode: r.Get("retcode").Int(),
		Message: r.Get("message").String(),
		Msg:     r.Get("msg").String(),
		Wording: r.Get("wording").String(),
		Echo:    r.Get("echo").String(),
	}
	if d := r.Get("data"); d.Exists() {
		resp.Data = json.RawMessage(d.Raw)
	} else {
		resp.Data = json.RawMessage("null")
	}
	return resp
}

// echoOf returns the correlation token of a frame, or "" for events.
// Only a truthy echo marks a response: a non-empty string, a non-zero
// number or true. Falsy values such as 0, false and null leave the frame
// an event.
func echoOf(data []byte) string {
	r := gjson.GetBytes(data, "echo")
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		if r.Num != 0 {
			return r.String()
		}
	case gjson.True:
		return r.String()
	}
	return ""
}

// APIError is a response with status "failed". Its message is the
// backend's wording, unchanged.
type APIError struct {
	Action  string
	Retcode int64
	Message string
	Msg     string
	Wording string
}

func (e *APIError) Error() string {
	return e.Wording
}

// ProtocolError reports a frame the connector could not interpret.
type ProtocolError struct {
	Action string
	Status string
	Frame  string
}

func (e *ProtocolError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("onebot: %s: unexpected response status %q", e.Action, e.Status)
	}
	return fmt.Sprintf("onebot: unexpected response status %q", e.Status)
}

// result turns a response into the value delivered to the waiting caller.
func (r Response) result(action string) (json.RawMessage, error) {
	switch r.Status {
	case StatusOK, StatusAsync:
		return r.Data, nil
	case StatusFailed:
		return nil, &APIError{
			Action:  action,
			Retcode: r.Retcode,
			Message: r.Message,
			Msg:     r.Msg,
			Wording: r.Wording,
		}
	default:
		return nil, &ProtocolError{Action: action, Status: r.Status}
	}
}

// truncate shortens a frame for logs and diagnostics.
func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
