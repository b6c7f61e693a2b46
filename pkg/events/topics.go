package events

// --- Topic constants ---

const (
	// Meta events
	TopicMetaEvent                 Topic = "meta_event"
	TopicMetaEventLifecycle        Topic = "meta_event.lifecycle"
	TopicMetaEventLifecycleEnable  Topic = "meta_event.lifecycle.enable"
	TopicMetaEventLifecycleDisable Topic = "meta_event.lifecycle.disable"
	TopicMetaEventLifecycleConnect Topic = "meta_event.lifecycle.connect"
	TopicMetaEventHeartbeat        Topic = "meta_event.heartbeat"

	// Messages
	TopicMessage                 Topic = "message"
	TopicMessagePrivate          Topic = "message.private"
	TopicMessagePrivateFriend    Topic = "message.private.friend"
	TopicMessagePrivateGroup     Topic = "message.private.group"
	TopicMessagePrivateGroupSelf Topic = "message.private.group_self"
	TopicMessagePrivateOther     Topic = "message.private.other"
	TopicMessageGroup            Topic = "message.group"
	TopicMessageGroupNormal      Topic = "message.group.normal"
	TopicMessageGroupAnonymous   Topic = "message.group.anonymous"
	TopicMessageGroupNotice      Topic = "message.group.notice"

	// Messages sent by the logged-in account itself
	TopicMessageSent        Topic = "message_sent"
	TopicMessageSentPrivate Topic = "message_sent.private"
	TopicMessageSentGroup   Topic = "message_sent.group"

	// Requests
	TopicRequest            Topic = "request"
	TopicRequestFriend      Topic = "request.friend"
	TopicRequestGroup       Topic = "request.group"
	TopicRequestGroupAdd    Topic = "request.group.add"
	TopicRequestGroupInvite Topic = "request.group.invite"

	// Notices
	TopicNotice             Topic = "notice"
	TopicNoticeFriend       Topic = "notice.friend"
	TopicNoticeFriendAdd    Topic = "notice.friend.add"
	TopicNoticeFriendRecall Topic = "notice.friend.recall"

	TopicNoticeGroup                Topic = "notice.group"
	TopicNoticeGroupRecall          Topic = "notice.group.recall"
	TopicNoticeGroupIncrease        Topic = "notice.group.increase"
	TopicNoticeGroupIncreaseApprove Topic = "notice.group.increase.approve"
	TopicNoticeGroupIncreaseInvite  Topic = "notice.group.increase.invite"
	TopicNoticeGroupDecrease        Topic = "notice.group.decrease"
	TopicNoticeGroupDecreaseLeave   Topic = "notice.group.decrease.leave"
	TopicNoticeGroupDecreaseKick    Topic = "notice.group.decrease.kick"
	TopicNoticeGroupDecreaseKickMe  Topic = "notice.group.decrease.kick_me"
	TopicNoticeGroupAdmin           Topic = "notice.group.admin"
	TopicNoticeGroupAdminSet        Topic = "notice.group.admin.set"
	TopicNoticeGroupAdminUnset      Topic = "notice.group.admin.unset"
	TopicNoticeGroupUpload          Topic = "notice.group.upload"
	TopicNoticeGroupBan             Topic = "notice.group.ban"
	TopicNoticeGroupBanBan          Topic = "notice.group.ban.ban"
	TopicNoticeGroupBanLiftBan      Topic = "notice.group.ban.lift_ban"

	TopicNoticeNotify            Topic = "notice.notify"
	TopicNoticeNotifyPoke        Topic = "notice.notify.poke"
	TopicNoticeNotifyLuckyKing   Topic = "notice.notify.lucky_king"
	TopicNoticeNotifyHonor       Topic = "notice.notify.honor"
	TopicNoticeNotifyTitle       Topic = "notice.notify.title"
	TopicNoticeNotifyGroupCard   Topic = "notice.notify.group_card"
	TopicNoticeNotifyOfflineFile Topic = "notice.notify.offline_file"

	TopicNoticeClient       Topic = "notice.client"
	TopicNoticeClientStatus Topic = "notice.client.status"

	TopicNoticeEssence       Topic = "notice.essence"
	TopicNoticeEssenceAdd    Topic = "notice.essence.add"
	TopicNoticeEssenceDelete Topic = "notice.essence.delete"
)

var knownTopics = map[Topic]struct{}{}

func init() {
	for _, t := range []Topic{
		TopicMetaEvent, TopicMetaEventLifecycle, TopicMetaEventLifecycleEnable,
		TopicMetaEventLifecycleDisable, TopicMetaEventLifecycleConnect, TopicMetaEventHeartbeat,

		TopicMessage, TopicMessagePrivate, TopicMessagePrivateFriend, TopicMessagePrivateGroup,
		TopicMessagePrivateGroupSelf, TopicMessagePrivateOther, TopicMessageGroup,
		TopicMessageGroupNormal, TopicMessageGroupAnonymous, TopicMessageGroupNotice,

		TopicMessageSent, TopicMessageSentPrivate, TopicMessageSentGroup,

		TopicRequest, TopicRequestFriend, TopicRequestGroup, TopicRequestGroupAdd,
		TopicRequestGroupInvite,

		TopicNotice, TopicNoticeFriend, TopicNoticeFriendAdd, TopicNoticeFriendRecall,
		TopicNoticeGroup, TopicNoticeGroupRecall, TopicNoticeGroupIncrease,
		TopicNoticeGroupIncreaseApprove, TopicNoticeGroupIncreaseInvite,
		TopicNoticeGroupDecrease, TopicNoticeGroupDecreaseLeave, TopicNoticeGroupDecreaseKick,
		TopicNoticeGroupDecreaseKickMe, TopicNoticeGroupAdmin, TopicNoticeGroupAdminSet,
		TopicNoticeGroupAdminUnset, TopicNoticeGroupUpload, TopicNoticeGroupBan,
		TopicNoticeGroupBanBan, TopicNoticeGroupBanLiftBan,
		TopicNoticeNotify, TopicNoticeNotifyPoke, TopicNoticeNotifyLuckyKing,
		TopicNoticeNotifyHonor, TopicNoticeNotifyTitle, TopicNoticeNotifyGroupCard,
		TopicNoticeNotifyOfflineFile,
		TopicNoticeClient, TopicNoticeClientStatus,
		TopicNoticeEssence, TopicNoticeEssenceAdd, TopicNoticeEssenceDelete,
	} {
		knownTopics[t] = struct{}{}
	}
}

// KnownTopics returns every topic in the taxonomy, in no particular order.
func KnownTopics() []Topic {
	out := make([]Topic, 0, len(knownTopics))
	for t := range knownTopics {
		out = append(out, t)
	}
	return out
}
