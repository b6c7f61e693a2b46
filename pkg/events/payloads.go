package events

// --- Typed payloads ---
//
// These mirror the fields the backend documents for the most common events.
// Decode into them with Event.Decode; unknown fields are ignored.

// Base holds the fields every event carries.
type Base struct {
	EventName string   `json:"event_name,omitempty"`
	Time      int64    `json:"time"`
	SelfID    int64    `json:"self_id"`
	PostType  PostType `json:"post_type"`
	SubType   string   `json:"sub_type,omitempty"`
}

// Sender describes the author of a message.
type Sender struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Sex      string `json:"sex,omitempty"`
	Age      int    `json:"age,omitempty"`

	// Group-only fields
	Card  string `json:"card,omitempty"`
	Area  string `json:"area,omitempty"`
	Level string `json:"level,omitempty"`
	Role  string `json:"role,omitempty"`
	Title string `json:"title,omitempty"`

	// Set on temporary sessions started from a group
	GroupID int64 `json:"group_id,omitempty"`
}

// PrivateMessage is a message.private.* event.
type PrivateMessage struct {
	Base
	MessageType string `json:"message_type"`
	MessageID   int64  `json:"message_id"`
	UserID      int64  `json:"user_id"`
	TargetID    int64  `json:"target_id,omitempty"`
	TempSource  int    `json:"temp_source,omitempty"`
	RawMessage  string `json:"raw_message"`
	Font        int    `json:"font"`
	Sender      Sender `json:"sender"`
}

// GroupMessage is a message.group.* event.
type GroupMessage struct {
	Base
	MessageType string         `json:"message_type"`
	MessageID   int64          `json:"message_id"`
	GroupID     int64          `json:"group_id"`
	UserID      int64          `json:"user_id"`
	Anonymous   map[string]any `json:"anonymous"`
	RawMessage  string         `json:"raw_message"`
	Font        int            `json:"font"`
	Sender      Sender         `json:"sender"`
}

// FriendRequest is a request.friend event.
type FriendRequest struct {
	Base
	RequestType string `json:"request_type"`
	UserID      int64  `json:"user_id"`
	Comment     string `json:"comment"`
	Flag        string `json:"flag"`
}

// GroupRequest is a request.group.* event.
type GroupRequest struct {
	Base
	RequestType string `json:"request_type"`
	GroupID     int64  `json:"group_id"`
	UserID      int64  `json:"user_id"`
	Comment     string `json:"comment"`
	Flag        string `json:"flag"`
}

// GroupRecallNotice is a notice.group.recall event.
type GroupRecallNotice struct {
	Base
	NoticeType string `json:"notice_type"`
	GroupID    int64  `json:"group_id"`
	UserID     int64  `json:"user_id"`
	OperatorID int64  `json:"operator_id"`
	MessageID  int64  `json:"message_id"`
}

// GroupMemberNotice covers notice.group.increase / decrease / admin.
type GroupMemberNotice struct {
	Base
	NoticeType string `json:"notice_type"`
	GroupID    int64  `json:"group_id"`
	OperatorID int64  `json:"operator_id"`
	UserID     int64  `json:"user_id"`
}

// GroupBanNotice is a notice.group.ban.* event. UserID is 0 and Duration is
// -1 for a whole-group mute.
type GroupBanNotice struct {
	Base
	NoticeType string `json:"notice_type"`
	GroupID    int64  `json:"group_id"`
	OperatorID int64  `json:"operator_id"`
	UserID     int64  `json:"user_id"`
	Duration   int64  `json:"duration"`
}

// PokeNotice is a notice.notify.poke event.
type PokeNotice struct {
	Base
	NoticeType string `json:"notice_type"`
	GroupID    int64  `json:"group_id,omitempty"`
	UserID     int64  `json:"user_id"`
	SenderID   int64  `json:"sender_id,omitempty"`
	TargetID   int64  `json:"target_id"`
}

// Status is the application state reported in heartbeats.
type Status struct {
	AppInitialized bool  `json:"app_initialized"`
	AppEnabled     bool  `json:"app_enabled"`
	PluginsGood    *bool `json:"plugins_good"`
	AppGood        bool  `json:"app_good"`
	Online         bool  `json:"online"`
	Stat           struct {
		PacketReceived  int64 `json:"PacketReceived"`
		PacketSent      int64 `json:"PacketSent"`
		PacketLost      int64 `json:"PacketLost"`
		MessageReceived int64 `json:"MessageReceived"`
		MessageSent     int64 `json:"MessageSent"`
		DisconnectTimes int64 `json:"DisconnectTimes"`
		LostTimes       int64 `json:"LostTimes"`
		LastMessageTime int64 `json:"LastMessageTime"`
	} `json:"stat"`
}

// Heartbeat is a meta_event.heartbeat event. Interval is in milliseconds.
type Heartbeat struct {
	Base
	MetaEventType string `json:"meta_event_type"`
	Status        Status `json:"status"`
	Interval      int64  `json:"interval"`
}

// Lifecycle is a meta_event.lifecycle.* event.
type Lifecycle struct {
	Base
	MetaEventType string `json:"meta_event_type"`
}
