package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"pulse_server/models"
	"pulse_server/utils"
)

// MaxPostTextLength bounds post text in runes
const MaxPostTextLength = 2200

// CreatePostRequest is the body of a new post
type CreatePostRequest struct {
	Text                 string             `json:"text" validate:"max=2200"`
	Media                []models.MediaItem `json:"media" validate:"max=10,dive"`
	Location             string             `json:"location,omitempty" validate:"max=120"`
	Visibility           string             `json:"visibility" validate:"omitempty,oneof=public followers close_friends private only_me"`
	VisibilityExceptions []string           `json:"visibilityExceptions,omitempty"`
	ExpiresAt            *time.Time         `json:"expiresAt,omitempty"`
}

// ContentService owns the post lifecycle
type ContentService struct {
	Store         Store
	Notifications *NotificationService
	Publisher     Publisher
	Media         *MediaService

	now func() time.Time
}

func NewContentService(store Store, notifications *NotificationService, publisher Publisher, media *MediaService) *ContentService {
	return &ContentService{
		Store:         store,
		Notifications: notifications,
		Publisher:     publisher,
		Media:         media,
		now:           time.Now,
	}
}

func (s *ContentService) CreatePost(ctx context.Context, authorID string, req CreatePostRequest) (*models.ContentItem, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" && len(req.Media) == 0 {
		return nil, policyError(CodeInvalidAction, "a post needs text or media")
	}
	if len([]rune(text)) > MaxPostTextLength {
		return nil, policyError(CodeInvalidAction, "post text exceeds %d characters", MaxPostTextLength)
	}
	if err := ValidateMedia(req.Media); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, policyError(CodeInvalidAction, "expiry must be in the future")
	}
	if req.Visibility == "" {
		req.Visibility = models.VisibilityPublic
	}

	media := orderMedia(req.Media)
	item := &models.ContentItem{
		ContentID:            uuid.New().String(),
		AuthorID:             authorID,
		ContentType:          models.DetectContentType(media),
		Text:                 text,
		Media:                media,
		Hashtags:             utils.ExtractHashtags(text),
		Mentions:             utils.ExtractMentions(text),
		Location:             strings.TrimSpace(req.Location),
		Visibility:           req.Visibility,
		VisibilityExceptions: req.VisibilityExceptions,
		CreatedAt:            now,
		ExpiresAt:            req.ExpiresAt,
	}
	if err := s.Store.PutContent(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to save post: %w", err)
	}

	s.announce(ctx, item)
	s.Media.Sign(ctx, item.Media)
	return item, nil
}

// announce notifies followers and mentioned actors, and pushes new_post to
// the author's follow room for policies every follower can see
func (s *ContentService) announce(ctx context.Context, item *models.ContentItem) {
	log := serviceLog("content")

	followers, err := s.Store.ListIncoming(ctx, item.AuthorID, models.EdgeFollows)
	if err != nil {
		log.Warn().Err(err).Str("author", item.AuthorID).Msg("failed to list followers for post notifications")
	}

	if s.Notifications != nil {
		audience := Audience(ctx, s.Store, item.AuthorID, item.Visibility, item.VisibilityExceptions, followers)
		s.Notifications.NotifyAll(ctx, audience, NotifyRequest{
			ActorID:   item.AuthorID,
			Type:      models.NotificationPost,
			ContentID: item.ContentID,
		})

		mentioned := ResolveMentions(ctx, s.Store, item.Mentions)
		mentioned = lo.Filter(mentioned, func(id string, _ int) bool {
			g, err := LoadViewerGraph(ctx, s.Store, id)
			return err == nil && g.CanSeeContent(ctx, item, s.now())
		})
		s.Notifications.NotifyAll(ctx, mentioned, NotifyRequest{
			ActorID:   item.AuthorID,
			Type:      models.NotificationMention,
			ContentID: item.ContentID,
			Text:      utils.Excerpt(item.Text, 100),
		})
	}

	if (item.Visibility == models.VisibilityPublic || item.Visibility == models.VisibilityFollowers) &&
		len(item.VisibilityExceptions) == 0 {
		publishBestEffort(ctx, s.Publisher, models.FollowRoom(item.AuthorID), models.EventNewPost, models.NewPostEvent{
			ContentID: item.ContentID,
			AuthorID:  item.AuthorID,
		})
	}
}

// Get returns a post the viewer may see; authors always see their own
func (s *ContentService) Get(ctx context.Context, viewerID, contentID string) (*models.ContentItem, error) {
	item, err := s.Store.GetContent(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if item.AuthorID != viewerID {
		graph, err := LoadViewerGraph(ctx, s.Store, viewerID)
		if err != nil {
			return nil, err
		}
		if !graph.CanSeeContent(ctx, item, s.now()) {
			return nil, policyError(CodeVisibilityDenied, "content %s is not visible to %s", contentID, viewerID)
		}
	}
	s.Media.Sign(ctx, item.Media)
	return item, nil
}

// ListByAuthor is an author's profile grid as the viewer sees it: pinned
// items first, then newest first
func (s *ContentService) ListByAuthor(ctx context.Context, viewerID, authorID string, limit int) ([]models.ContentItem, error) {
	if limit <= 0 || limit > models.MaxFeedLimit {
		limit = models.DefaultFeedLimit
	}
	graph, err := LoadViewerGraph(ctx, s.Store, viewerID)
	if err != nil {
		return nil, err
	}
	if graph.Blocked[authorID] {
		return nil, policyError(CodeBlocked, "profile of %s is not available", authorID)
	}

	items, err := s.Store.ListContentByAuthors(ctx, ContentQuery{AuthorIDs: []string{authorID}})
	if err != nil {
		return nil, fmt.Errorf("failed to list posts of %s: %w", authorID, err)
	}

	now := s.now()
	visible := lo.Filter(items, func(item models.ContentItem, _ int) bool {
		if item.AuthorID == viewerID {
			return !item.Expired(now)
		}
		return graph.CanSeeContent(ctx, &item, now)
	})
	sort.SliceStable(visible, func(i, j int) bool {
		if visible[i].Pinned != visible[j].Pinned {
			return visible[i].Pinned
		}
		return visible[i].CreatedAt.After(visible[j].CreatedAt)
	})
	if len(visible) > limit {
		visible = visible[:limit]
	}
	for i := range visible {
		s.Media.Sign(ctx, visible[i].Media)
	}
	return visible, nil
}

func (s *ContentService) owned(ctx context.Context, actorID, contentID string) error {
	item, err := s.Store.GetContent(ctx, contentID)
	if err != nil {
		return err
	}
	if item.AuthorID != actorID {
		return policyError(CodeNotOwner, "content %s belongs to another actor", contentID)
	}
	return nil
}

func (s *ContentService) setFlags(ctx context.Context, actorID, contentID string, flags ContentFlags) (*models.ContentItem, error) {
	if err := s.owned(ctx, actorID, contentID); err != nil {
		return nil, err
	}
	return s.Store.SetContentFlags(ctx, contentID, flags)
}

// Archive soft-deletes: the item leaves feeds and search but is kept
func (s *ContentService) Archive(ctx context.Context, actorID, contentID string) (*models.ContentItem, error) {
	return s.setFlags(ctx, actorID, contentID, ContentFlags{Archived: lo.ToPtr(true)})
}

func (s *ContentService) Unarchive(ctx context.Context, actorID, contentID string) (*models.ContentItem, error) {
	return s.setFlags(ctx, actorID, contentID, ContentFlags{Archived: lo.ToPtr(false)})
}

func (s *ContentService) SetPinned(ctx context.Context, actorID, contentID string, pinned bool) (*models.ContentItem, error) {
	return s.setFlags(ctx, actorID, contentID, ContentFlags{Pinned: lo.ToPtr(pinned)})
}

func (s *ContentService) SetHidden(ctx context.Context, actorID, contentID string, hidden bool) (*models.ContentItem, error) {
	return s.setFlags(ctx, actorID, contentID, ContentFlags{Hidden: lo.ToPtr(hidden)})
}

// Delete hard-deletes a post; only its author may
func (s *ContentService) Delete(ctx context.Context, actorID, contentID string) error {
	if err := s.owned(ctx, actorID, contentID); err != nil {
		return err
	}
	if err := s.Store.DeleteContent(ctx, contentID); err != nil {
		return fmt.Errorf("failed to delete %s: %w", contentID, err)
	}
	serviceLog("content").Info().Str("content_id", contentID).Str("author", actorID).Msg("post deleted")
	return nil
}
