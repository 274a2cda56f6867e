package models

import "time"

// ✅ Outbound real-time event names
const (
	EventOnline         = "online"
	EventOffline        = "offline"
	EventOnlineSnapshot = "online_snapshot"
	EventNotification   = "notification"
	EventUnreadCount    = "unread_count"
	EventNewPost        = "new_post"
	EventNewMessage     = "new_message"
	EventTyping         = "typing"
	EventError          = "error"
)

// ✅ Room naming
const (
	userRoomPrefix         = "user:"
	followRoomPrefix       = "follow:"
	conversationRoomPrefix = "conversation:"
)

// UserRoom is an actor's private inbox room
func UserRoom(actorID string) string { return userRoomPrefix + actorID }

// FollowRoom receives live events authored by actorID
func FollowRoom(actorID string) string { return followRoomPrefix + actorID }

func ConversationRoom(conversationID string) string { return conversationRoomPrefix + conversationID }

type PresenceEvent struct {
	ActorID  string    `json:"actorId"`
	LastSeen time.Time `json:"lastSeen,omitempty"`
}

type OnlineSnapshotEvent struct {
	ActorIDs []string `json:"actorIds"`
}

type UnreadCountEvent struct {
	Count int `json:"count"`
}

type NewPostEvent struct {
	ContentID string `json:"contentId"`
	AuthorID  string `json:"authorId"`
}

type NewMessageEvent struct {
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Text           string    `json:"text"`
	SentAt         time.Time `json:"sentAt"`
}

type TypingEvent struct {
	ConversationID string `json:"conversationId"`
	ActorID        string `json:"actorId"`
	IsTyping       bool   `json:"isTyping"`
}

type ErrorEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}
