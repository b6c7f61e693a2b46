package events

import (
	"encoding/json"
	"errors"
	"testing"
)

const groupMessageFrame = `{
	"time": 1700000000,
	"self_id": 10001,
	"post_type": "message",
	"message_type": "group",
	"sub_type": "normal",
	"message_id": -2147480000,
	"group_id": 123456789,
	"user_id": 9007199254740993,
	"anonymous": null,
	"raw_message": "hello",
	"font": 0,
	"sender": {"user_id": 9007199254740993, "nickname": "alice", "card": "", "role": "admin"}
}`

func TestParseRecordPreservesLargeIDs(t *testing.T) {
	r, err := ParseRecord([]byte(groupMessageFrame))
	if err != nil {
		t.Fatalf("ParseRecord() error = %v", err)
	}
	if r.PostType() != PostMessage {
		t.Errorf("PostType() = %q", r.PostType())
	}
	id, ok := r.Int64("user_id")
	if !ok || id != 9007199254740993 {
		t.Errorf("Int64(user_id) = %d, %v", id, ok)
	}
	if _, ok := r["user_id"].(json.Number); !ok {
		t.Errorf("user_id decoded as %T, want json.Number", r["user_id"])
	}
}

func TestParseRecordRejectsNonObjects(t *testing.T) {
	for _, frame := range []string{`[1,2]`, `"text"`, `null`, `{"post_type":`} {
		if _, err := ParseRecord([]byte(frame)); err == nil {
			t.Errorf("ParseRecord(%s) succeeded, want error", frame)
		}
	}
	if _, err := ParseRecord([]byte(`null`)); !errors.Is(err, ErrNotObject) {
		t.Errorf("ParseRecord(null) error = %v, want ErrNotObject", err)
	}
}

func TestNewEventCopiesRecord(t *testing.T) {
	rec := Record{"post_type": "notice", "notice_type": "group_recall"}
	ev := NewEvent(TopicNoticeGroupRecall, rec, nil)

	if ev.Record[FieldEventName] != "notice.group.recall" {
		t.Errorf("event_name = %v", ev.Record[FieldEventName])
	}
	if _, ok := rec[FieldEventName]; ok {
		t.Error("NewEvent mutated the source record")
	}

	ev.Record["extra"] = true
	other := ev.WithName(TopicNotice)
	if other.Record[FieldEventName] != "notice" {
		t.Errorf("WithName event_name = %v", other.Record[FieldEventName])
	}
	if ev.Record[FieldEventName] != "notice.group.recall" {
		t.Error("WithName changed the original event")
	}
}

func TestEventDecodeAndGet(t *testing.T) {
	raw := []byte(groupMessageFrame)
	rec, err := ParseRecord(raw)
	if err != nil {
		t.Fatal(err)
	}
	ev := NewEvent(TopicMessageGroupNormal, rec, raw)

	var msg GroupMessage
	if err := ev.Decode(&msg); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if msg.EventName != "message.group.normal" {
		t.Errorf("EventName = %q", msg.EventName)
	}
	if msg.GroupID != 123456789 || msg.UserID != 9007199254740993 {
		t.Errorf("ids = %d/%d", msg.GroupID, msg.UserID)
	}
	if msg.Sender.Nickname != "alice" || msg.Sender.Role != "admin" {
		t.Errorf("sender = %+v", msg.Sender)
	}
	if msg.Anonymous != nil {
		t.Errorf("anonymous = %v, want nil", msg.Anonymous)
	}

	if got := ev.Get("sender.nickname").String(); got != "alice" {
		t.Errorf("Get(sender.nickname) = %q", got)
	}
	if got := ev.Get("event_name").String(); got != "message.group.normal" {
		t.Errorf("Get(event_name) = %q", got)
	}
	if ev.Get("missing.path").Exists() {
		t.Error("Get(missing.path) should not exist")
	}

	if string(ev.Raw()) != groupMessageFrame {
		t.Error("Raw() should return the original frame untouched")
	}
}

func TestEventDecodeWithoutRaw(t *testing.T) {
	ev := NewEvent(TopicNoticeGroupBanBan, Record{
		"post_type":   "notice",
		"notice_type": "group_ban",
		"sub_type":    "ban",
		"group_id":    json.Number("42"),
		"duration":    json.Number("600"),
	}, nil)

	var n GroupBanNotice
	if err := ev.Decode(&n); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if n.GroupID != 42 || n.Duration != 600 || n.SubType != "ban" {
		t.Errorf("decoded = %+v", n)
	}
	if n.EventName != string(TopicNoticeGroupBanBan) {
		t.Errorf("EventName = %q", n.EventName)
	}
}

func TestTopicHelpers(t *testing.T) {
	tp := Topic("notice.group.ban.lift_ban")
	if got := tp.Parent(); got != TopicNoticeGroupBan {
		t.Errorf("Parent() = %q", got)
	}
	if got := Topic("notice").Parent(); got != "" {
		t.Errorf("Parent() of root = %q", got)
	}
	if n := len(tp.Segments()); n != 4 {
		t.Errorf("Segments() len = %d", n)
	}
	if Topic("").Segments() != nil {
		t.Error("Segments() of empty topic should be nil")
	}
	if Join("a", "b") != "a.b" {
		t.Error("Join")
	}
	if Topic("echo-4f1c").IsKnown() {
		t.Error("arbitrary strings are not part of the taxonomy")
	}
	if len(KnownTopics()) == 0 {
		t.Error("KnownTopics() is empty")
	}
}
