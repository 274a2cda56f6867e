package services

import (
	"context"
	"fmt"
	"time"

	"pulse_server/models"
)

// RoomMembership lets the graph keep live follow rooms in step with edges.
// The socket hub implements it; a nil value disables the live side.
type RoomMembership interface {
	JoinActor(actorID, room string)
	LeaveActor(actorID, room string)
}

type graphStore interface {
	GraphStore
	UserStore
}

// GraphService manages follow, block and close-friend edges
type GraphService struct {
	Store         graphStore
	Notifications *NotificationService
	Rooms         RoomMembership

	now func() time.Time
}

func NewGraphService(store graphStore, notifications *NotificationService, rooms RoomMembership) *GraphService {
	return &GraphService{Store: store, Notifications: notifications, Rooms: rooms, now: time.Now}
}

func (s *GraphService) edge(fromID, kind, toID string) models.SocialEdge {
	return models.SocialEdge{FromID: fromID, ToID: toID, Kind: kind, CreatedAt: s.now().UTC()}
}

func (s *GraphService) Follow(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return policyError(CodeSelfAction, "cannot follow yourself")
	}
	if _, err := s.Store.GetUser(ctx, targetID); err != nil {
		return err
	}
	blocked, err := BlockedEitherWay(ctx, s.Store, actorID, targetID)
	if err != nil {
		return fmt.Errorf("failed to check block state: %w", err)
	}
	if blocked {
		return policyError(CodeBlocked, "cannot follow %s", targetID)
	}

	already, err := s.Store.HasEdge(ctx, actorID, models.EdgeFollows, targetID)
	if err != nil {
		return fmt.Errorf("failed to check follow edge: %w", err)
	}
	if already {
		return nil
	}

	if err := s.Store.PutEdge(ctx, s.edge(actorID, models.EdgeFollows, targetID)); err != nil {
		return fmt.Errorf("failed to save follow edge: %w", err)
	}
	if err := s.Store.AdjustFollowerCount(ctx, targetID, 1); err != nil {
		serviceLog("graph").Warn().Err(err).Str("user", targetID).Msg("failed to bump follower count")
	}
	if s.Rooms != nil {
		s.Rooms.JoinActor(actorID, models.FollowRoom(targetID))
	}

	if s.Notifications != nil {
		if _, err := s.Notifications.Notify(ctx, NotifyRequest{
			RecipientID: targetID,
			ActorID:     actorID,
			Type:        models.NotificationFollow,
		}); err != nil {
			serviceLog("graph").Warn().Err(err).Str("target", targetID).Msg("failed to notify follow")
		}
	}
	return nil
}

func (s *GraphService) Unfollow(ctx context.Context, actorID, targetID string) error {
	existed, err := s.Store.HasEdge(ctx, actorID, models.EdgeFollows, targetID)
	if err != nil {
		return fmt.Errorf("failed to check follow edge: %w", err)
	}
	if !existed {
		return nil
	}
	return s.dropFollow(ctx, actorID, targetID)
}

func (s *GraphService) dropFollow(ctx context.Context, actorID, targetID string) error {
	if err := s.Store.DeleteEdge(ctx, actorID, models.EdgeFollows, targetID); err != nil {
		return fmt.Errorf("failed to delete follow edge: %w", err)
	}
	if err := s.Store.AdjustFollowerCount(ctx, targetID, -1); err != nil {
		serviceLog("graph").Warn().Err(err).Str("user", targetID).Msg("failed to lower follower count")
	}
	if s.Rooms != nil {
		s.Rooms.LeaveActor(actorID, models.FollowRoom(targetID))
	}
	return nil
}

// Block records the block and removes follow edges in both directions
func (s *GraphService) Block(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return policyError(CodeSelfAction, "cannot block yourself")
	}
	if err := s.Store.PutEdge(ctx, s.edge(actorID, models.EdgeBlocked, targetID)); err != nil {
		return fmt.Errorf("failed to save block edge: %w", err)
	}
	if err := s.Unfollow(ctx, actorID, targetID); err != nil {
		return err
	}
	if err := s.Unfollow(ctx, targetID, actorID); err != nil {
		return err
	}
	if err := s.Store.DeleteEdge(ctx, actorID, models.EdgeCloseFriend, targetID); err != nil {
		return fmt.Errorf("failed to delete close friend edge: %w", err)
	}
	return nil
}

func (s *GraphService) Unblock(ctx context.Context, actorID, targetID string) error {
	if err := s.Store.DeleteEdge(ctx, actorID, models.EdgeBlocked, targetID); err != nil {
		return fmt.Errorf("failed to delete block edge: %w", err)
	}
	return nil
}

func (s *GraphService) AddCloseFriend(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return policyError(CodeSelfAction, "cannot add yourself as a close friend")
	}
	if _, err := s.Store.GetUser(ctx, targetID); err != nil {
		return err
	}
	blocked, err := BlockedEitherWay(ctx, s.Store, actorID, targetID)
	if err != nil {
		return fmt.Errorf("failed to check block state: %w", err)
	}
	if blocked {
		return policyError(CodeBlocked, "cannot add %s as a close friend", targetID)
	}
	if err := s.Store.PutEdge(ctx, s.edge(actorID, models.EdgeCloseFriend, targetID)); err != nil {
		return fmt.Errorf("failed to save close friend edge: %w", err)
	}
	return nil
}

func (s *GraphService) RemoveCloseFriend(ctx context.Context, actorID, targetID string) error {
	if err := s.Store.DeleteEdge(ctx, actorID, models.EdgeCloseFriend, targetID); err != nil {
		return fmt.Errorf("failed to delete close friend edge: %w", err)
	}
	return nil
}

// Relationship summarises the edges between viewer and target
func (s *GraphService) Relationship(ctx context.Context, viewerID, targetID string) (models.Relationship, error) {
	var rel models.Relationship
	var err error

	if rel.Following, err = s.Store.HasEdge(ctx, viewerID, models.EdgeFollows, targetID); err != nil {
		return rel, err
	}
	if rel.FollowedBy, err = s.Store.HasEdge(ctx, targetID, models.EdgeFollows, viewerID); err != nil {
		return rel, err
	}
	if rel.CloseFriend, err = s.Store.HasEdge(ctx, viewerID, models.EdgeCloseFriend, targetID); err != nil {
		return rel, err
	}
	if rel.Blocked, err = BlockedEitherWay(ctx, s.Store, viewerID, targetID); err != nil {
		return rel, err
	}
	rel.Mutual = rel.Following && rel.FollowedBy
	return rel, nil
}

// Following lists who actorID follows
func (s *GraphService) Following(ctx context.Context, actorID string) ([]string, error) {
	return s.Store.ListEdges(ctx, actorID, models.EdgeFollows)
}

// Followers lists who follows actorID
func (s *GraphService) Followers(ctx context.Context, actorID string) ([]string, error) {
	return s.Store.ListIncoming(ctx, actorID, models.EdgeFollows)
}
