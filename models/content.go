package models

import (
	"slices"
	"strings"
	"time"
)

// MediaItem is one ordered entry of a post or story body
type MediaItem struct {
	Key             string `dynamodbav:"key" json:"key"`                               // ✅ Object key in the media bucket
	URL             string `dynamodbav:"-" json:"url,omitempty"`                       // Signed read URL (response only)
	Type            string `dynamodbav:"type" json:"type"`                             // image, video
	Order           int    `dynamodbav:"order" json:"order"`                           // Position in the body
	DurationSeconds int    `dynamodbav:"duration,omitempty" json:"duration,omitempty"` // Display/playback time
}

// Comment is stored inline on the content item
type Comment struct {
	CommentID string    `dynamodbav:"commentId" json:"commentId"`
	AuthorID  string    `dynamodbav:"authorId" json:"authorId"`
	Text      string    `dynamodbav:"text" json:"text"`
	CreatedAt time.Time `dynamodbav:"createdAt" json:"createdAt"`
}

// ContentItem is a post with its engagement state
type ContentItem struct {
	ContentID   string      `dynamodbav:"contentId" json:"contentId"` // ✅ Partition Key
	AuthorID    string      `dynamodbav:"authorId" json:"authorId"`   // ✅ GSI partition (authorId-createdAt-index)
	ContentType string      `dynamodbav:"contentType" json:"contentType"`
	Text        string      `dynamodbav:"text,omitempty" json:"text,omitempty"`
	Media       []MediaItem `dynamodbav:"media,omitempty" json:"media,omitempty"`
	Hashtags    []string    `dynamodbav:"hashtags,omitempty" json:"hashtags,omitempty"`
	Mentions    []string    `dynamodbav:"mentions,omitempty" json:"mentions,omitempty"`
	Location    string      `dynamodbav:"location,omitempty" json:"location,omitempty"`

	Visibility           string   `dynamodbav:"visibility" json:"visibility"`
	VisibilityExceptions []string `dynamodbav:"visibilityExceptions,omitempty" json:"visibilityExceptions,omitempty"` // Actors the item is hidden from

	// Distinct-actor sets
	Likes    []string `dynamodbav:"likes,stringset,omitempty" json:"-"`
	Dislikes []string `dynamodbav:"dislikes,stringset,omitempty" json:"-"`
	Saves    []string `dynamodbav:"saves,stringset,omitempty" json:"-"`

	LikeCount    int       `dynamodbav:"likeCount" json:"likeCount"` // ✅ GSI sort key (scope-likeCount-index)
	SaveCount    int       `dynamodbav:"saveCount" json:"saveCount"`
	ShareCount   int       `dynamodbav:"shareCount" json:"shareCount"`
	ViewCount    int       `dynamodbav:"viewCount" json:"viewCount"`
	CommentCount int       `dynamodbav:"commentCount" json:"commentCount"`
	Comments     []Comment `dynamodbav:"comments,omitempty" json:"comments,omitempty"`

	EngagementRate float64    `dynamodbav:"engagementRate" json:"engagementRate"`
	Reach          int        `dynamodbav:"reach" json:"reach"`
	LastEngagedAt  *time.Time `dynamodbav:"lastEngagedAt,omitempty" json:"lastEngagedAt,omitempty"`
	AlgorithmScore float64    `dynamodbav:"algorithmScore" json:"algorithmScore"`

	Archived bool `dynamodbav:"archived" json:"archived"`
	Pinned   bool `dynamodbav:"pinned" json:"pinned"`
	Hidden   bool `dynamodbav:"hidden" json:"hidden"`

	Scope        string     `dynamodbav:"scope" json:"-"`             // Constant partition of the top-liked index
	SearchText   string     `dynamodbav:"searchText" json:"-"`        // Lowercased text, hashtags and location
	CreatedAt    time.Time  `dynamodbav:"createdAt" json:"createdAt"` // ✅ GSI sort key
	ExpiresAt    *time.Time `dynamodbav:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	ExpiresAtTTL int64      `dynamodbav:"expiresAtTTL,omitempty" json:"-"` // Epoch seconds, DynamoDB TTL attribute
}

// ContentAuthorIndex serves range queries by author and time;
// ContentTopLikedIndex answers "most liked item" for engagement normalisation
const (
	ContentAuthorIndex   = "authorId-createdAt-index"
	ContentTopLikedIndex = "scope-likeCount-index"
	ContentScope         = "CONTENT"
)

// SyncCounts fills the count fields from the actor sets
func (c *ContentItem) SyncCounts() {
	c.LikeCount = len(c.Likes)
	c.SaveCount = len(c.Saves)
}

// BuildSearchText refreshes the lowercased search projection
func (c *ContentItem) BuildSearchText() {
	parts := append([]string{c.Text, c.Location}, c.Hashtags...)
	c.SearchText = strings.ToLower(strings.Join(parts, " "))
}

// Expired reports whether the item has an expiry that has elapsed
func (c *ContentItem) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// Servable reports whether the item can appear in feeds and search at all
func (c *ContentItem) Servable(now time.Time) bool {
	return !c.Archived && !c.Hidden && !c.Expired(now)
}

func (c *ContentItem) LikedBy(actorID string) bool    { return slices.Contains(c.Likes, actorID) }
func (c *ContentItem) DislikedBy(actorID string) bool { return slices.Contains(c.Dislikes, actorID) }
func (c *ContentItem) SavedBy(actorID string) bool    { return slices.Contains(c.Saves, actorID) }

// CommentedBy reports whether the actor left at least one comment
func (c *ContentItem) CommentedBy(actorID string) bool {
	for _, comment := range c.Comments {
		if comment.AuthorID == actorID {
			return true
		}
	}
	return false
}

// HasVideo reports whether any media entry is a video
func (c *ContentItem) HasVideo() bool {
	for _, m := range c.Media {
		if m.Type == MediaVideo {
			return true
		}
	}
	return false
}

// DetectContentType derives the content type from the media body
func DetectContentType(media []MediaItem) string {
	switch {
	case len(media) == 0:
		return ContentTypeText
	case len(media) > 1:
		return ContentTypeCarousel
	case media[0].Type == MediaVideo:
		return ContentTypeVideo
	default:
		return ContentTypePhoto
	}
}
