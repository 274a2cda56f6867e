package services

import (
	"context"
	"time"

	"pulse_server/models"
)

// ContentQuery selects the most recent items of a set of authors
type ContentQuery struct {
	AuthorIDs    []string
	Since        time.Time // zero means no lower bound
	Limit        int
	ServableOnly bool // skip archived and hidden items before the limit applies
}

// ContentFlags are the moderation/owner flags; nil fields are left unchanged
type ContentFlags struct {
	Archived *bool
	Pinned   *bool
	Hidden   *bool
}

// ContentStore is the durable record of posts and their engagement.
// Toggle and counter operations must be atomic at the store.
type ContentStore interface {
	GetContent(ctx context.Context, contentID string) (*models.ContentItem, error)
	PutContent(ctx context.Context, item *models.ContentItem) error
	DeleteContent(ctx context.Context, contentID string) error
	ListContentByAuthors(ctx context.Context, q ContentQuery) ([]models.ContentItem, error)
	TopLikedContent(ctx context.Context) (*models.ContentItem, error)

	// ToggleReaction flips the actor's membership in the like, dislike or save set.
	// Adding a like removes a dislike and vice versa. The result reports whether
	// the actor is a member after the call.
	ToggleReaction(ctx context.Context, contentID, actorID, kind string) (*models.ContentItem, bool, error)
	IncrementCounter(ctx context.Context, contentID, counter string, delta int) (*models.ContentItem, error)
	AppendComment(ctx context.Context, contentID string, comment models.Comment) (*models.ContentItem, error)
	UpdateDerived(ctx context.Context, contentID string, d DerivedMetrics) error
	SetContentFlags(ctx context.Context, contentID string, flags ContentFlags) (*models.ContentItem, error)

	SearchContent(ctx context.Context, query string, limit int) ([]models.ContentItem, error)
	DistinctTags(ctx context.Context, prefix string, limit int) ([]string, error)
}

// DerivedMetrics are recomputed after each engagement action
type DerivedMetrics struct {
	EngagementRate float64
	Reach          int
	LastEngagedAt  time.Time
	AlgorithmScore float64
}

// Counters accepted by IncrementCounter
const (
	CounterShares = "shareCount"
	CounterViews  = "viewCount"
)

// GraphStore holds directed social edges
type GraphStore interface {
	PutEdge(ctx context.Context, edge models.SocialEdge) error
	DeleteEdge(ctx context.Context, fromID, kind, toID string) error
	HasEdge(ctx context.Context, fromID, kind, toID string) (bool, error)
	// ListEdges returns the targets of fromID's edges of a kind
	ListEdges(ctx context.Context, fromID, kind string) ([]string, error)
	// ListIncoming returns the sources of edges of a kind pointing at toID
	ListIncoming(ctx context.Context, toID, kind string) ([]string, error)
}

type UserStore interface {
	GetUser(ctx context.Context, userID string) (*models.UserProfile, error)
	PutUser(ctx context.Context, user *models.UserProfile) error
	SearchUsers(ctx context.Context, query string, limit int) ([]models.UserProfile, error)
	SetPreferences(ctx context.Context, userID string, prefs map[string]bool) error
	AdjustFollowerCount(ctx context.Context, userID string, delta int) error
}

type StoryStore interface {
	PutStory(ctx context.Context, story *models.Story) error
	GetStory(ctx context.Context, storyID string) (*models.Story, error)
	// AddStoryViewer adds viewerID to the viewer set and bumps viewCount in one
	// atomic step. A viewer already in the set is a no-op (added=false). A
	// one-time story that already has a different viewer is rejected with
	// CodeOneTimeViewConsumed.
	AddStoryViewer(ctx context.Context, storyID, viewerID string) (story *models.Story, added bool, err error)
	ListStoriesByAuthors(ctx context.Context, authorIDs []string) ([]models.Story, error)
}

type NotificationStore interface {
	PutNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, recipientID string, limit int, unreadOnly bool) ([]models.Notification, error)
	// MarkNotificationRead reports whether the flag changed
	MarkNotificationRead(ctx context.Context, recipientID, notificationID string) (bool, error)
	MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	DeleteNotification(ctx context.Context, recipientID, notificationID string) error
}

// Store is everything the core needs from the engagement store
type Store interface {
	ContentStore
	GraphStore
	UserStore
	StoryStore
	NotificationStore
}
