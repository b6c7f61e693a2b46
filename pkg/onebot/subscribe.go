package onebot

import (
	"github.com/sipeed/onebot-go/pkg/eventbus"
	"github.com/sipeed/onebot-go/pkg/events"
)

// Subscribe registers h for every event published under topic. Any string
// is accepted; see the events package for the topics the backend produces.
func (c *Client) Subscribe(topic events.Topic, h eventbus.Handler) eventbus.ID {
	return c.registry.Subscribe(string(topic), h)
}

// SubscribeOnce registers h for the next event published under topic.
func (c *Client) SubscribeOnce(topic events.Topic, h eventbus.Handler) eventbus.ID {
	return c.registry.SubscribeOnce(string(topic), h)
}

// Unsubscribe removes the subscription id from topic.
func (c *Client) Unsubscribe(topic events.Topic, id eventbus.ID) bool {
	return c.registry.Unsubscribe(string(topic), id)
}

// On subscribes a handler that receives the event decoded into T.
// A decode failure is reported as a handler error.
func On[T any](c *Client, topic events.Topic, h func(ev events.Event, payload T) error) eventbus.ID {
	return c.Subscribe(topic, func(ev events.Event) error {
		var payload T
		if err := ev.Decode(&payload); err != nil {
			return err
		}
		return h(ev, payload)
	})
}

// OnPrivateMessage subscribes to every private message.
func (c *Client) OnPrivateMessage(h func(ev events.Event, msg events.PrivateMessage) error) eventbus.ID {
	return On(c, events.TopicMessagePrivate, h)
}

// OnGroupMessage subscribes to every group message.
func (c *Client) OnGroupMessage(h func(ev events.Event, msg events.GroupMessage) error) eventbus.ID {
	return On(c, events.TopicMessageGroup, h)
}

// OnFriendRequest subscribes to incoming friend requests.
func (c *Client) OnFriendRequest(h func(ev events.Event, req events.FriendRequest) error) eventbus.ID {
	return On(c, events.TopicRequestFriend, h)
}

// OnGroupRequest subscribes to group join requests and invitations.
func (c *Client) OnGroupRequest(h func(ev events.Event, req events.GroupRequest) error) eventbus.ID {
	return On(c, events.TopicRequestGroup, h)
}

// OnGroupRecall subscribes to recalled group messages.
func (c *Client) OnGroupRecall(h func(ev events.Event, n events.GroupRecallNotice) error) eventbus.ID {
	return On(c, events.TopicNoticeGroupRecall, h)
}

// OnHeartbeat subscribes to the backend's periodic heartbeat.
func (c *Client) OnHeartbeat(h func(ev events.Event, hb events.Heartbeat) error) eventbus.ID {
	return On(c, events.TopicMetaEventHeartbeat, h)
}
