package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"pulse_server/models"
	"pulse_server/scoring"
	"pulse_server/utils"
)

// MaxCommentLength bounds comment text in runes
const MaxCommentLength = 2200

// ActionRequest is one engagement action by an actor on a target
type ActionRequest struct {
	ActorID    string `json:"-"`
	TargetType string `json:"targetType" validate:"required,oneof=content story"`
	TargetID   string `json:"targetId" validate:"required"`
	Action     string `json:"action" validate:"required,oneof=like dislike save share view comment"`
	Text       string `json:"text,omitempty" validate:"max=2200"`
}

// ActionResult is the target's engagement state after an action
type ActionResult struct {
	TargetType     string          `json:"targetType"`
	TargetID       string          `json:"targetId"`
	Action         string          `json:"action"`
	Active         bool            `json:"active"` // membership after a toggle; true for counters
	LikeCount      int             `json:"likeCount"`
	DislikeCount   int             `json:"dislikeCount"`
	SaveCount      int             `json:"saveCount"`
	ShareCount     int             `json:"shareCount"`
	ViewCount      int             `json:"viewCount"`
	CommentCount   int             `json:"commentCount"`
	EngagementRate float64         `json:"engagementRate"`
	Comment        *models.Comment `json:"comment,omitempty"`
}

// EngagementService records engagement actions and refreshes the derived
// metrics that later feed reads rank with. It never re-ranks served feeds.
type EngagementService struct {
	Store         Store
	Notifications *NotificationService
	Stories       *StoryService
	Maxima        *MaximaSource

	now func() time.Time
}

func NewEngagementService(store Store, notifications *NotificationService, stories *StoryService, maxima *MaximaSource) *EngagementService {
	return &EngagementService{
		Store:         store,
		Notifications: notifications,
		Stories:       stories,
		Maxima:        maxima,
		now:           time.Now,
	}
}

// RecordAction applies req. Like, dislike and save toggle; share, view and
// comment only ever increase.
func (s *EngagementService) RecordAction(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	switch req.TargetType {
	case models.TargetStory:
		return s.recordStoryAction(ctx, req)
	case models.TargetContent:
		return s.recordContentAction(ctx, req)
	default:
		return nil, policyError(CodeInvalidAction, "unsupported target %q", req.TargetType)
	}
}

func (s *EngagementService) recordStoryAction(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	if req.Action != models.ActionView {
		return nil, policyError(CodeInvalidAction, "stories only accept views")
	}
	if s.Stories == nil {
		return nil, policyError(CodeInvalidAction, "stories are not enabled")
	}
	story, err := s.Stories.View(ctx, req.ActorID, req.TargetID)
	if err != nil {
		return nil, err
	}
	engagementActionsTotal.WithLabelValues("story_" + req.Action).Inc()
	return &ActionResult{
		TargetType: models.TargetStory,
		TargetID:   story.StoryID,
		Action:     req.Action,
		Active:     true,
		ViewCount:  story.ViewCount,
	}, nil
}

func (s *EngagementService) recordContentAction(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	log := serviceLog("engagement")

	item, err := s.Store.GetContent(ctx, req.TargetID)
	if err != nil {
		return nil, err
	}
	graph, err := LoadViewerGraph(ctx, s.Store, req.ActorID)
	if err != nil {
		return nil, err
	}
	if !graph.CanSeeContent(ctx, item, s.now()) {
		return nil, policyError(CodeVisibilityDenied, "content %s is not visible to %s", req.TargetID, req.ActorID)
	}

	active := true
	var comment *models.Comment

	switch req.Action {
	case models.ActionLike, models.ActionDislike, models.ActionSave:
		item, active, err = s.Store.ToggleReaction(ctx, req.TargetID, req.ActorID, req.Action)
	case models.ActionShare:
		item, err = s.Store.IncrementCounter(ctx, req.TargetID, CounterShares, 1)
	case models.ActionView:
		item, err = s.Store.IncrementCounter(ctx, req.TargetID, CounterViews, 1)
	case models.ActionComment:
		text := strings.TrimSpace(req.Text)
		if text == "" || len([]rune(text)) > MaxCommentLength {
			return nil, policyError(CodeInvalidAction, "comment text must be 1-%d characters", MaxCommentLength)
		}
		comment = &models.Comment{
			CommentID: uuid.New().String(),
			AuthorID:  req.ActorID,
			Text:      text,
			CreatedAt: s.now().UTC(),
		}
		item, err = s.Store.AppendComment(ctx, req.TargetID, *comment)
	default:
		return nil, policyError(CodeInvalidAction, "unsupported action %q", req.Action)
	}
	if err != nil {
		return nil, err
	}
	engagementActionsTotal.WithLabelValues(req.Action).Inc()

	if err := s.refreshDerived(ctx, item); err != nil {
		log.Warn().Err(err).Str("content_id", item.ContentID).Msg("failed to refresh derived metrics")
	}

	if active {
		s.notifyAuthor(ctx, req, item, comment)
	}

	return &ActionResult{
		TargetType:     models.TargetContent,
		TargetID:       item.ContentID,
		Action:         req.Action,
		Active:         active,
		LikeCount:      len(item.Likes),
		DislikeCount:   len(item.Dislikes),
		SaveCount:      len(item.Saves),
		ShareCount:     item.ShareCount,
		ViewCount:      item.ViewCount,
		CommentCount:   item.CommentCount,
		EngagementRate: item.EngagementRate,
		Comment:        comment,
	}, nil
}

// Reach counts distinct actors who liked, saved or commented
func Reach(item *models.ContentItem) int {
	commenters := lo.Map(item.Comments, func(c models.Comment, _ int) string { return c.AuthorID })
	return len(lo.Uniq(lo.Flatten([][]string{item.Likes, item.Saves, commenters})))
}

// refreshDerived recomputes the rate, reach, last-engaged stamp and cached
// base score, and writes them back onto item
func (s *EngagementService) refreshDerived(ctx context.Context, item *models.ContentItem) error {
	now := s.now().UTC()
	item.EngagementRate = scoring.EngagementRate(
		len(item.Likes), item.CommentCount, item.ShareCount, len(item.Saves), item.ViewCount)
	item.Reach = Reach(item)
	item.LastEngagedAt = &now

	maxima := scoring.BaselineMaxima
	if s.Maxima != nil {
		maxima = s.Maxima.Current(ctx)
	}
	item.AlgorithmScore = scoring.BaseScore(item, maxima, now)

	return s.Store.UpdateDerived(ctx, item.ContentID, DerivedMetrics{
		EngagementRate: item.EngagementRate,
		Reach:          item.Reach,
		LastEngagedAt:  now,
		AlgorithmScore: item.AlgorithmScore,
	})
}

var actionNotificationTypes = map[string]string{
	models.ActionLike:    models.NotificationLike,
	models.ActionComment: models.NotificationComment,
	models.ActionShare:   models.NotificationShare,
}

func (s *EngagementService) notifyAuthor(ctx context.Context, req ActionRequest, item *models.ContentItem, comment *models.Comment) {
	if s.Notifications == nil {
		return
	}
	notificationType, ok := actionNotificationTypes[req.Action]
	if !ok {
		return
	}

	n := NotifyRequest{
		RecipientID: item.AuthorID,
		ActorID:     req.ActorID,
		Type:        notificationType,
		ContentID:   item.ContentID,
	}
	if comment != nil {
		n.CommentID = comment.CommentID
		n.Text = utils.Excerpt(comment.Text, 100)
	}
	if _, err := s.Notifications.Notify(ctx, n); err != nil {
		serviceLog("engagement").Warn().Err(err).Str("content_id", item.ContentID).Str("type", notificationType).Msg("failed to notify author")
	}

	if comment != nil {
		mentioned := ResolveMentions(ctx, s.Store, utils.ExtractMentions(comment.Text))
		s.Notifications.NotifyAll(ctx, lo.Without(mentioned, item.AuthorID), NotifyRequest{
			ActorID:   req.ActorID,
			Type:      models.NotificationMention,
			ContentID: item.ContentID,
			CommentID: comment.CommentID,
			Text:      n.Text,
		})
	}
}

// ResolveMentions maps @handles to user ids; unknown handles are skipped
func ResolveMentions(ctx context.Context, users UserStore, handles []string) []string {
	var ids []string
	for _, handle := range handles {
		matches, err := users.SearchUsers(ctx, handle, 20)
		if err != nil {
			serviceLog("mentions").Debug().Err(err).Str("handle", handle).Msg("mention lookup failed")
			continue
		}
		for _, u := range matches {
			if strings.EqualFold(u.Username, handle) {
				ids = append(ids, u.UserID)
				break
			}
		}
	}
	return lo.Uniq(ids)
}
