package onebot

import (
	"context"
	"encoding/json"

	"github.com/sipeed/onebot-go/pkg/events"
)

// Action names used by the typed helpers below.
const (
	ActionGetLoginInfo   = "get_login_info"
	ActionSendPrivateMsg = "send_private_msg"
	ActionSendGroupMsg   = "send_group_msg"
	ActionSendMsg        = "send_msg"
	ActionGetMsg         = "get_msg"
	ActionDeleteMsg      = "delete_msg"
	ActionMarkMsgAsRead  = "mark_msg_as_read"
	ActionGetStatus      = "get_status"
	ActionGetFriendList  = "get_friend_list"
)

// LoginInfo is the result of get_login_info.
type LoginInfo struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
}

// MessageID is the result of the send_* actions.
type MessageID struct {
	MessageID int64 `json:"message_id"`
}

// Friend is one entry of get_friend_list.
type Friend struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Remark   string `json:"remark"`
}

// Message is the result of get_msg.
type Message struct {
	Group       bool            `json:"group"`
	GroupID     int64           `json:"group_id,omitempty"`
	MessageID   int64           `json:"message_id"`
	RealID      int64           `json:"real_id"`
	MessageType string          `json:"message_type"`
	Sender      json.RawMessage `json:"sender"`
	Time        int64           `json:"time"`
	Message     json.RawMessage `json:"message"`
	RawMessage  string          `json:"raw_message"`
}

// SendPrivateMsgParams are the parameters of send_private_msg. GroupID is
// only set when starting a temporary session from a group.
type SendPrivateMsgParams struct {
	UserID     int64  `json:"user_id"`
	GroupID    int64  `json:"group_id,omitempty"`
	Message    string `json:"message"`
	AutoEscape bool   `json:"auto_escape"`
}

type SendGroupMsgParams struct {
	GroupID    int64  `json:"group_id"`
	Message    string `json:"message"`
	AutoEscape bool   `json:"auto_escape"`
}

// SendMsgParams are the parameters of send_msg. MessageType is "private"
// or "group"; if empty the backend infers it from the ids.
type SendMsgParams struct {
	MessageType string `json:"message_type,omitempty"`
	UserID      int64  `json:"user_id,omitempty"`
	GroupID     int64  `json:"group_id,omitempty"`
	Message     string `json:"message"`
	AutoEscape  bool   `json:"auto_escape"`
}

type messageIDParams struct {
	MessageID int64 `json:"message_id"`
}

// GetLoginInfo returns the logged-in account.
func (c *Client) GetLoginInfo(ctx context.Context) (LoginInfo, error) {
	return Call[LoginInfo](ctx, c, ActionGetLoginInfo, nil)
}

// SendPrivateMsg sends a private message and returns its id.
func (c *Client) SendPrivateMsg(ctx context.Context, p SendPrivateMsgParams) (int64, error) {
	res, err := Call[MessageID](ctx, c, ActionSendPrivateMsg, p)
	return res.MessageID, err
}

// SendGroupMsg sends a group message and returns its id.
func (c *Client) SendGroupMsg(ctx context.Context, p SendGroupMsgParams) (int64, error) {
	res, err := Call[MessageID](ctx, c, ActionSendGroupMsg, p)
	return res.MessageID, err
}

// SendMsg sends a private or group message and returns its id.
func (c *Client) SendMsg(ctx context.Context, p SendMsgParams) (int64, error) {
	res, err := Call[MessageID](ctx, c, ActionSendMsg, p)
	return res.MessageID, err
}

func (c *Client) GetMsg(ctx context.Context, messageID int64) (Message, error) {
	return Call[Message](ctx, c, ActionGetMsg, messageIDParams{MessageID: messageID})
}

// DeleteMsg recalls a message.
func (c *Client) DeleteMsg(ctx context.Context, messageID int64) error {
	_, err := c.Invoke(ctx, ActionDeleteMsg, messageIDParams{MessageID: messageID})
	return err
}

func (c *Client) MarkMsgAsRead(ctx context.Context, messageID int64) error {
	_, err := c.Invoke(ctx, ActionMarkMsgAsRead, messageIDParams{MessageID: messageID})
	return err
}

// GetFriendList returns the account's friends.
func (c *Client) GetFriendList(ctx context.Context) ([]Friend, error) {
	return Call[[]Friend](ctx, c, ActionGetFriendList, nil)
}

// GetStatus returns the backend's health report.
func (c *Client) GetStatus(ctx context.Context) (events.Status, error) {
	return Call[events.Status](ctx, c, ActionGetStatus, nil)
}
