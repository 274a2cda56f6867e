package models

import "time"

// Notification is the durable record of a graph action aimed at a recipient
type Notification struct {
	RecipientID    string    `dynamodbav:"recipientId" json:"recipientId"`       // ✅ Partition Key
	NotificationID string    `dynamodbav:"notificationId" json:"notificationId"` // ✅ Sort Key
	ActorID        string    `dynamodbav:"actorId" json:"actorId"`
	Type           string    `dynamodbav:"type" json:"type"`
	ContentID      string    `dynamodbav:"contentId,omitempty" json:"contentId,omitempty"`
	CommentID      string    `dynamodbav:"commentId,omitempty" json:"commentId,omitempty"`
	StoryID        string    `dynamodbav:"storyId,omitempty" json:"storyId,omitempty"`
	Text           string    `dynamodbav:"text,omitempty" json:"text,omitempty"` // Comment/message excerpt
	Read           bool      `dynamodbav:"read" json:"read"`
	CreatedAt      time.Time `dynamodbav:"createdAt" json:"createdAt"` // ✅ LSI sort key
}

// NotificationCreatedIndex orders a recipient's notifications by time
const NotificationCreatedIndex = "recipientId-createdAt-index"

// NotificationView is a notification with its rendered summary
type NotificationView struct {
	Notification
	Summary string `json:"summary"`
}
