package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"pulse_server/models"
)

// PublishStoryRequest is the body of a new story
type PublishStoryRequest struct {
	Media                []models.MediaItem `json:"media" validate:"required,min=1,max=10,dive"`
	Visibility           string             `json:"visibility" validate:"omitempty,oneof=public followers close_friends private only_me"`
	VisibilityExceptions []string           `json:"visibilityExceptions,omitempty"`
	OneTimeView          bool               `json:"oneTimeView"`
}

// StoryView is a story with its display progress
type StoryView struct {
	models.Story
	Progress float64 `json:"progress"`
	Viewed   bool    `json:"viewed"`
}

// AuthorStories groups an author's active stories oldest first
type AuthorStories struct {
	AuthorID string      `json:"authorId"`
	Stories  []StoryView `json:"stories"`
}

// StoryService manages ephemeral items. Expiry is enforced by the store;
// this service only reads the clock to report progress.
type StoryService struct {
	Store         Store
	Notifications *NotificationService
	Media         *MediaService

	now func() time.Time
}

func NewStoryService(store Store, notifications *NotificationService, media *MediaService) *StoryService {
	return &StoryService{Store: store, Notifications: notifications, Media: media, now: time.Now}
}

func (s *StoryService) Publish(ctx context.Context, authorID string, req PublishStoryRequest) (*models.Story, error) {
	if err := ValidateMedia(req.Media); err != nil {
		return nil, err
	}
	if req.Visibility == "" {
		req.Visibility = models.VisibilityFollowers
	}

	now := s.now().UTC()
	story := &models.Story{
		StoryID:              uuid.New().String(),
		AuthorID:             authorID,
		Media:                orderMedia(req.Media),
		Visibility:           req.Visibility,
		VisibilityExceptions: req.VisibilityExceptions,
		OneTimeView:          req.OneTimeView,
		CreatedAt:            now,
		ExpiresAt:            now.Add(models.StoryLifetime),
	}
	if err := s.Store.PutStory(ctx, story); err != nil {
		return nil, fmt.Errorf("failed to save story: %w", err)
	}

	if s.Notifications != nil {
		followers, err := s.Store.ListIncoming(ctx, authorID, models.EdgeFollows)
		if err != nil {
			serviceLog("stories").Warn().Err(err).Str("author", authorID).Msg("failed to list followers for story notifications")
		} else {
			recipients := Audience(ctx, s.Store, authorID, story.Visibility, story.VisibilityExceptions, followers)
			s.Notifications.NotifyAll(ctx, recipients, NotifyRequest{
				ActorID: authorID,
				Type:    models.NotificationStory,
				StoryID: story.StoryID,
			})
		}
	}
	return story, nil
}

// View records viewerID as a viewer. A repeat view is a no-op; a one-time
// story already seen by someone else is rejected.
func (s *StoryService) View(ctx context.Context, viewerID, storyID string) (*models.Story, error) {
	story, err := s.Store.GetStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.AuthorID == viewerID {
		return story, nil
	}

	graph, err := LoadViewerGraph(ctx, s.Store, viewerID)
	if err != nil {
		return nil, err
	}
	if !graph.CanSee(ctx, story.AuthorID, story.Visibility, story.VisibilityExceptions) {
		return nil, policyError(CodeVisibilityDenied, "story %s is not visible to %s", storyID, viewerID)
	}

	updated, added, err := s.Store.AddStoryViewer(ctx, storyID, viewerID)
	if err != nil {
		return nil, err
	}
	if added {
		serviceLog("stories").Debug().Str("story", storyID).Str("viewer", viewerID).Int("views", updated.ViewCount).Msg("story viewed")
	}
	return updated, nil
}

// ListActive returns unexpired stories the viewer may see, grouped per
// author, the viewer's own group first
func (s *StoryService) ListActive(ctx context.Context, viewerID string) ([]AuthorStories, error) {
	graph, err := LoadViewerGraph(ctx, s.Store, viewerID)
	if err != nil {
		return nil, err
	}
	authors := append([]string{viewerID}, graph.FollowedAuthors()...)

	stories, err := s.Store.ListStoriesByAuthors(ctx, authors)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}

	now := s.now()
	groups := make(map[string]*AuthorStories)
	var order []string
	for _, story := range stories {
		if story.Expired(now) || !graph.CanSee(ctx, story.AuthorID, story.Visibility, story.VisibilityExceptions) {
			continue
		}
		// a consumed one-time story stays visible only to the author and its viewer
		if story.OneTimeView && story.AuthorID != viewerID && len(story.Viewers) > 0 && !story.ViewedBy(viewerID) {
			continue
		}
		g, ok := groups[story.AuthorID]
		if !ok {
			g = &AuthorStories{AuthorID: story.AuthorID}
			groups[story.AuthorID] = g
			order = append(order, story.AuthorID)
		}
		view := StoryView{Story: story, Progress: story.Progress(now), Viewed: story.ViewedBy(viewerID)}
		s.signMedia(ctx, view.Media)
		g.Stories = append(g.Stories, view)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i] == viewerID || order[j] == viewerID {
			return order[i] == viewerID
		}
		return latestStory(groups[order[i]]).After(latestStory(groups[order[j]]))
	})

	out := make([]AuthorStories, 0, len(order))
	for _, authorID := range order {
		out = append(out, *groups[authorID])
	}
	return out, nil
}

func latestStory(g *AuthorStories) time.Time {
	var latest time.Time
	for _, s := range g.Stories {
		if s.CreatedAt.After(latest) {
			latest = s.CreatedAt
		}
	}
	return latest
}

// Viewers lists who viewed a story; only its author may ask
func (s *StoryService) Viewers(ctx context.Context, ownerID, storyID string) ([]string, error) {
	story, err := s.Store.GetStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.AuthorID != ownerID {
		return nil, policyError(CodeNotOwner, "only the author can list viewers of story %s", storyID)
	}
	viewers := append([]string(nil), story.Viewers...)
	sort.Strings(viewers)
	return viewers, nil
}

func (s *StoryService) signMedia(ctx context.Context, media []models.MediaItem) {
	if s.Media != nil {
		s.Media.Sign(ctx, media)
	}
}
