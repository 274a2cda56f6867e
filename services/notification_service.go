package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"

	"pulse_server/models"
)

// preferenceCacheTTL bounds how long a preference change takes to apply
const preferenceCacheTTL = 30 * time.Second

// DefaultNotificationLimit is used when a list request does not set one
const DefaultNotificationLimit = 50

// summaryTemplates render "<actor> did something" per notification type
var summaryTemplates = map[string]string{
	models.NotificationLike:    "%s liked your post",
	models.NotificationComment: "%s commented on your post",
	models.NotificationFollow:  "%s started following you",
	models.NotificationMention: "%s mentioned you",
	models.NotificationMessage: "%s sent you a message",
	models.NotificationStory:   "%s shared a new story",
	models.NotificationLive:    "%s is live now",
	models.NotificationPost:    "%s shared a new post",
	models.NotificationShare:   "%s shared your post",
}

// Summary renders the human-readable line for a notification type.
// Unknown types get a generic line.
func Summary(notificationType, actorName string) string {
	if actorName == "" {
		actorName = "Someone"
	}
	if tmpl, ok := summaryTemplates[notificationType]; ok {
		return fmt.Sprintf(tmpl, actorName)
	}
	return fmt.Sprintf("You have a new notification from %s", actorName)
}

// NotifyRequest describes the graph action a notification is created for
type NotifyRequest struct {
	RecipientID string
	ActorID     string
	Type        string
	ContentID   string
	CommentID   string
	StoryID     string
	Text        string
}

type notificationStore interface {
	UserStore
	GraphStore
	NotificationStore
}

// NotificationService persists notifications and pushes them live.
// The persisted record is authoritative; live delivery is best-effort.
type NotificationService struct {
	Store     notificationStore
	Publisher Publisher

	prefs *cache.Cache
	now   func() time.Time
}

func NewNotificationService(store notificationStore, publisher Publisher) *NotificationService {
	return &NotificationService{
		Store:     store,
		Publisher: publisher,
		prefs:     cache.New(preferenceCacheTTL, 2*preferenceCacheTTL),
		now:       time.Now,
	}
}

// recipient loads the recipient's profile through the preference cache
func (s *NotificationService) recipient(ctx context.Context, userID string) (*models.UserProfile, error) {
	if v, ok := s.prefs.Get(userID); ok {
		return v.(*models.UserProfile), nil
	}
	user, err := s.Store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.prefs.SetDefault(userID, user)
	return user, nil
}

// Notify creates the notification unless the recipient disabled its type, is
// the actor, or a block exists between the two. A suppressed notification
// returns (nil, nil).
func (s *NotificationService) Notify(ctx context.Context, req NotifyRequest) (*models.Notification, error) {
	log := serviceLog("notifications")

	if req.RecipientID == "" || req.RecipientID == req.ActorID {
		return nil, nil
	}

	if req.ActorID != "" {
		blocked, err := BlockedEitherWay(ctx, s.Store, req.RecipientID, req.ActorID)
		if err != nil {
			return nil, fmt.Errorf("failed to check blocks for %s: %w", req.RecipientID, err)
		}
		if blocked {
			notificationsSuppressedTotal.WithLabelValues(req.Type).Inc()
			log.Debug().Str("recipient", req.RecipientID).Str("actor", req.ActorID).Str("type", req.Type).Msg("notification suppressed by block")
			return nil, nil
		}
	}

	recipient, err := s.recipient(ctx, req.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipient %s: %w", req.RecipientID, err)
	}
	if !recipient.Allows(req.Type) {
		notificationsSuppressedTotal.WithLabelValues(req.Type).Inc()
		log.Debug().Str("recipient", req.RecipientID).Str("type", req.Type).Msg("notification suppressed by preference")
		return nil, nil
	}

	n := &models.Notification{
		RecipientID:    req.RecipientID,
		NotificationID: uuid.New().String(),
		ActorID:        req.ActorID,
		Type:           req.Type,
		ContentID:      req.ContentID,
		CommentID:      req.CommentID,
		StoryID:        req.StoryID,
		Text:           req.Text,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.Store.PutNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to save notification: %w", err)
	}
	notificationsCreatedTotal.WithLabelValues(req.Type).Inc()

	actorName := "Someone"
	if actor, err := s.Store.GetUser(ctx, req.ActorID); err == nil {
		actorName = actor.Name()
	}

	room := models.UserRoom(req.RecipientID)
	publishBestEffort(ctx, s.Publisher, room, models.EventNotification, models.NotificationView{
		Notification: *n,
		Summary:      Summary(n.Type, actorName),
	})
	s.pushUnreadCount(ctx, req.RecipientID)

	return n, nil
}

// NotifyAll fans one action out to many recipients. Failures are logged per
// recipient and never abort the rest.
func (s *NotificationService) NotifyAll(ctx context.Context, recipients []string, req NotifyRequest) int {
	created := 0
	for _, recipientID := range lo.Uniq(recipients) {
		req.RecipientID = recipientID
		n, err := s.Notify(ctx, req)
		if err != nil {
			serviceLog("notifications").Warn().Err(err).Str("recipient", recipientID).Str("type", req.Type).Msg("failed to notify")
			continue
		}
		if n != nil {
			created++
		}
	}
	return created
}

// List returns the recipient's notifications newest first with summaries
func (s *NotificationService) List(ctx context.Context, recipientID string, limit int, unreadOnly bool) ([]models.NotificationView, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	list, err := s.Store.ListNotifications(ctx, recipientID, limit, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	names := make(map[string]string)
	for _, actorID := range lo.Uniq(lo.Map(list, func(n models.Notification, _ int) string { return n.ActorID })) {
		if actor, err := s.Store.GetUser(ctx, actorID); err == nil {
			names[actorID] = actor.Name()
		}
	}

	views := make([]models.NotificationView, 0, len(list))
	for _, n := range list {
		views = append(views, models.NotificationView{Notification: n, Summary: Summary(n.Type, names[n.ActorID])})
	}
	return views, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	return s.Store.CountUnread(ctx, recipientID)
}

func (s *NotificationService) MarkAsRead(ctx context.Context, recipientID, notificationID string) error {
	changed, err := s.Store.MarkNotificationRead(ctx, recipientID, notificationID)
	if err != nil {
		return err
	}
	if changed {
		s.pushUnreadCount(ctx, recipientID)
	}
	return nil
}

// MarkAllAsRead returns how many notifications changed state
func (s *NotificationService) MarkAllAsRead(ctx context.Context, recipientID string) (int, error) {
	changed, err := s.Store.MarkAllNotificationsRead(ctx, recipientID)
	if err != nil {
		return changed, err
	}
	if changed > 0 {
		s.pushUnreadCount(ctx, recipientID)
	}
	return changed, nil
}

// Delete removes one of the recipient's own notifications
func (s *NotificationService) Delete(ctx context.Context, recipientID, notificationID string) error {
	if err := s.Store.DeleteNotification(ctx, recipientID, notificationID); err != nil {
		return err
	}
	s.pushUnreadCount(ctx, recipientID)
	return nil
}

// SetPreferences updates the per-type delivery switches; unknown types are rejected
func (s *NotificationService) SetPreferences(ctx context.Context, userID string, prefs map[string]bool) error {
	for notificationType := range prefs {
		if _, ok := summaryTemplates[notificationType]; !ok {
			return policyError(CodeInvalidAction, "unknown notification type %q", notificationType)
		}
	}
	if err := s.Store.SetPreferences(ctx, userID, prefs); err != nil {
		return err
	}
	s.prefs.Delete(userID)
	return nil
}

func (s *NotificationService) pushUnreadCount(ctx context.Context, recipientID string) {
	count, err := s.Store.CountUnread(ctx, recipientID)
	if err != nil {
		serviceLog("notifications").Warn().Err(err).Str("recipient", recipientID).Msg("failed to count unread")
		return
	}
	publishBestEffort(ctx, s.Publisher, models.UserRoom(recipientID), models.EventUnreadCount, models.UnreadCountEvent{Count: count})
}
