package models

import (
	"slices"
	"time"
)

// StoryLifetime is the fixed visibility window of a story
const StoryLifetime = 24 * time.Hour

// StoryAuthorIndex serves "active stories by author" queries
const StoryAuthorIndex = "authorId-expiresAt-index"

// Story is an ephemeral item that expires StoryLifetime after creation
type Story struct {
	StoryID              string      `dynamodbav:"storyId" json:"storyId"`   // ✅ Partition Key
	AuthorID             string      `dynamodbav:"authorId" json:"authorId"` // ✅ GSI partition
	Media                []MediaItem `dynamodbav:"media" json:"media"`
	Visibility           string      `dynamodbav:"visibility" json:"visibility"`
	VisibilityExceptions []string    `dynamodbav:"visibilityExceptions,omitempty" json:"visibilityExceptions,omitempty"`
	OneTimeView          bool        `dynamodbav:"oneTimeView" json:"oneTimeView"`
	Viewers              []string    `dynamodbav:"viewers,stringset,omitempty" json:"-"` // Distinct viewer ids
	ViewCount            int         `dynamodbav:"viewCount" json:"viewCount"`
	CreatedAt            time.Time   `dynamodbav:"createdAt" json:"createdAt"`
	ExpiresAt            time.Time   `dynamodbav:"expiresAt" json:"expiresAt"` // ✅ GSI sort key
	ExpiresAtTTL         int64       `dynamodbav:"expiresAtTTL" json:"-"`      // Epoch seconds, DynamoDB TTL attribute
}

func (s *Story) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func (s *Story) ViewedBy(actorID string) bool {
	return slices.Contains(s.Viewers, actorID)
}

// Progress is the elapsed share of the story's lifetime as a percentage in [0,100]
func (s *Story) Progress(now time.Time) float64 {
	total := s.ExpiresAt.Sub(s.CreatedAt)
	if total <= 0 {
		return 100
	}
	pct := float64(now.Sub(s.CreatedAt)) / float64(total) * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}
