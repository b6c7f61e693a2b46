// Package events defines the OneBot event taxonomy: the records the backend
// pushes over the connection, the dotted topics they are published under,
// and the classifier that maps one to the other.
//
// Every inbound event is published under several topics, from the most
// specific to the bare post type:
//
//	notice.group.ban.ban -> notice.group.ban -> notice.group -> notice
package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Topic is a dot-delimited event name, e.g. "message.group.normal".
type Topic string

// Separator joins topic segments.
const Separator = "."

// String implements fmt.Stringer.
func (t Topic) String() string { return string(t) }

// Segments splits the topic on the separator.
func (t Topic) Segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), Separator)
}

// Parent drops the last segment. The parent of a single-segment topic is "".
//
// Example: "notice.group.recall" -> "notice.group"
func (t Topic) Parent() Topic {
	idx := strings.LastIndex(string(t), Separator)
	if idx < 0 {
		return ""
	}
	return t[:idx]
}

// IsKnown reports whether the topic is part of the published taxonomy.
func (t Topic) IsKnown() bool {
	_, ok := knownTopics[t]
	return ok
}

// Join builds a topic from segments.
func Join(segments ...string) Topic {
	return Topic(strings.Join(segments, Separator))
}

// PostType is the top-level category discriminator of an event record.
type PostType string

const (
	PostMessage     PostType = "message"
	PostMessageSent PostType = "message_sent"
	PostRequest     PostType = "request"
	PostNotice      PostType = "notice"
	PostMetaEvent   PostType = "meta_event"
)

// Field names shared by every record.
const (
	FieldPostType  = "post_type"
	FieldSubType   = "sub_type"
	FieldEventName = "event_name"
	FieldEcho      = "echo"
)

// Record is one decoded inbound event: an open JSON object. Numbers are kept
// as json.Number so 64-bit identifiers survive decoding.
type Record map[string]any

// ParseRecord decodes a JSON object frame into a Record.
func ParseRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var r Record
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if r == nil {
		return nil, fmt.Errorf("decode event: %w", ErrNotObject)
	}
	return r, nil
}

// PostType returns the record's category, or "" if absent.
func (r Record) PostType() PostType {
	s, _ := r[FieldPostType].(string)
	return PostType(s)
}

// String returns a string field, or "" if absent or not a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Int64 returns an integer field.
func (r Record) Int64(key string) (int64, bool) {
	switch v := r[key].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Event is what a handler receives: a record as published under one topic.
type Event struct {
	// Name is the topic the event was dispatched on. It is also present in
	// Record under "event_name".
	Name Topic

	// Record is the handler's own copy of the decoded fields.
	Record Record

	raw []byte
}

// NewEvent prepares rec for delivery under name. raw is the original frame
// and may be nil for events built in code.
func NewEvent(name Topic, rec Record, raw []byte) Event {
	r := rec.Clone()
	if name != "" {
		r[FieldEventName] = string(name)
	}
	return Event{Name: name, Record: r, raw: raw}
}

// WithName returns a copy of the event renamed for another topic.
func (e Event) WithName(name Topic) Event {
	return NewEvent(name, e.Record, e.raw)
}

// Raw returns the frame the event was decoded from.
func (e Event) Raw() []byte { return e.raw }

// PostType returns the event's category.
func (e Event) PostType() PostType { return e.Record.PostType() }

// SubType returns the optional sub_type field.
func (e Event) SubType() string { return e.Record.String(FieldSubType) }

// Get reads a field by gjson path, e.g. "sender.nickname" or "message.0.type".
func (e Event) Get(path string) gjson.Result {
	data, err := e.JSON()
	if err != nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(data, path)
}

// JSON returns the event as a JSON document, including event_name.
func (e Event) JSON() ([]byte, error) {
	if e.raw == nil {
		return json.Marshal(e.Record)
	}
	if e.Name == "" {
		return e.raw, nil
	}
	buf := make([]byte, len(e.raw))
	copy(buf, e.raw)
	return sjson.SetBytes(buf, FieldEventName, string(e.Name))
}

// Decode unmarshals the event into a typed payload such as *GroupMessage.
func (e Event) Decode(v any) error {
	data, err := e.JSON()
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.Name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode event %s: %w", e.Name, err)
	}
	return nil
}
