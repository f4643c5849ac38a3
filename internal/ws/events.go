package ws

// Event is the JSON envelope pushed over a live handle.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Server-emitted event types.
const (
	EventMessageCreated        = "MESSAGE_CREATED"
	EventMessageEdited         = "MESSAGE_EDITED"
	EventMessageDeleted        = "MESSAGE_DELETED"
	EventDialogueCreated       = "DIALOGUE_CREATED"
	EventDialogueMessageUpdate = "DIALOGUE_MESSAGE_UPDATE"
	EventMessagesRead          = "MESSAGES_READ"
	EventUnreadDecrease        = "UNREADMESSAGES_DECREASE"
	EventTypingResponse        = "TYPING_RESPONSE"
	EventFriendOnline          = "FRIEND_ONLINE"
	EventFriendOffline         = "FRIEND_OFFLINE"
	EventFriendRemove          = "FRIEND_REMOVE"
	EventNewFriendRequest      = "NEW_FRIEND_REQUEST"
	EventNewFriendAccept       = "NEW_FRIEND_ACCEPT"
	EventError                 = "ERROR"
)

// Client-sent event types.
const (
	eventJoinRoom      = "JOIN_ROOM"
	eventLeaveRoom     = "LEAVE_ROOM"
	eventMessageTyping = "MESSAGE_TYPING"
	eventLogout        = "LOGOUT"
)

// TypingPayload is relayed verbatim to the other room subscribers.
type TypingPayload struct {
	Flag              bool  `json:"flag"`
	CurrentDialogueID int64 `json:"currentDialogueId"`
	InterlocutorID    int64 `json:"interlocutorId"`
}
