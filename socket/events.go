package socket

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// Inbound event names
const (
	EventJoinConversation      = "join_conversation"
	EventLeaveConversation     = "leave_conversation"
	EventSendMessage           = "send_message"
	EventTyping                = "typing"
	EventMarkNotificationsRead = "mark_notifications_read"
	EventGetOnline             = "get_online"
)

// InboundEvents lists every event a client may send
var InboundEvents = []string{
	EventJoinConversation,
	EventLeaveConversation,
	EventSendMessage,
	EventTyping,
	EventMarkNotificationsRead,
	EventGetOnline,
}

type ConversationEvent struct {
	ConversationID string `json:"conversationId" validate:"required,max=128"`
}

type (
	JoinConversationEvent  ConversationEvent
	LeaveConversationEvent ConversationEvent
)

type SendMessageEvent struct {
	ConversationID string `json:"conversationId" validate:"required,max=128"`
	RecipientID    string `json:"recipientId" validate:"required,max=128"`
	Text           string `json:"text" validate:"required,max=2000"`
}

type TypingEvent struct {
	ConversationID string `json:"conversationId" validate:"required,max=128"`
	IsTyping       bool   `json:"isTyping"`
}

// MarkReadEvent marks one notification read, or all when NotificationID is empty
type MarkReadEvent struct {
	NotificationID string `json:"notificationId,omitempty" validate:"omitempty,max=128"`
}

type GetOnlineEvent struct{}

var errUnknownEvent = errors.New("unknown event")

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeEvent maps an event name to its payload type, decodes raw into it
// and validates the result
func decodeEvent(name string, raw []byte) (any, error) {
	var payload any
	switch name {
	case EventJoinConversation:
		payload = &JoinConversationEvent{}
	case EventLeaveConversation:
		payload = &LeaveConversationEvent{}
	case EventSendMessage:
		payload = &SendMessageEvent{}
	case EventTyping:
		payload = &TypingEvent{}
	case EventMarkNotificationsRead:
		payload = &MarkReadEvent{}
	case EventGetOnline:
		return &GetOnlineEvent{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownEvent, name)
	}

	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, payload); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", name, err)
		}
	}
	if err := validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", name, err)
	}
	return payload, nil
}
