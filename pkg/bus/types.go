package bus

import "time"

// Direction says which way a frame travelled.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Frame is a copy of one websocket message as it crossed the connection.
type Frame struct {
	Direction Direction `json:"direction"`
	Data      []byte    `json:"data"`
	At        time.Time `json:"at"`
}

// SystemEvent is a typed diagnostic flowing through the bus.
// Used for connection lifecycle, protocol violations and handler failures.
type SystemEvent struct {
	Type   string      `json:"type"`   // e.g. "connection.closed", "protocol.decode_error"
	Source string      `json:"source"` // e.g. "client", "eventbus"
	Data   interface{} `json:"data"`
}

// System event types.
const (
	ConnectionOpened = "connection.opened"
	ConnectionClosed = "connection.closed"

	ProtocolDecodeError   = "protocol.decode_error"
	ProtocolClassifyError = "protocol.classify_error"
	ProtocolUnknownStatus = "protocol.unknown_status"

	ResponseOrphaned = "response.orphaned"
	HandlerFailed    = "handler.failed"
	EventDropped     = "event.dropped"
)

// ProtocolErrorData is the payload of protocol.* events.
type ProtocolErrorData struct {
	Error string `json:"error"`
	Frame string `json:"frame,omitempty"` // truncated
}

// ConnectionData is the payload of connection.* events.
type ConnectionData struct {
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
	Pending int    `json:"pending,omitempty"` // calls failed on close
}

// HandlerFailedData is the payload of handler.failed events.
type HandlerFailedData struct {
	Topic    string `json:"topic"`
	Error    string `json:"error"`
	Panicked bool   `json:"panicked,omitempty"`
}

// ResponseOrphanedData is the payload of response.orphaned events.
type ResponseOrphanedData struct {
	Echo   string `json:"echo"`
	Status string `json:"status"`
}
