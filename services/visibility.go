package services

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"pulse_server/models"
	"pulse_server/scoring"
)

// ViewerGraph is the slice of the social graph one request needs, loaded once
type ViewerGraph struct {
	ViewerID     string
	Following    map[string]bool // viewer -> author
	Followers    map[string]bool // author -> viewer
	CloseFriends map[string]bool // in the viewer's close-friend list
	Blocked      map[string]bool // either direction

	store GraphStore
	mu    sync.Mutex
	// inCloseCircle caches "viewer is in author's close friends"
	inCloseCircle map[string]bool
}

func toSet(ids []string) map[string]bool {
	return lo.SliceToMap(ids, func(id string) (string, bool) { return id, true })
}

// BlockedEitherWay reports whether a or b blocked the other
func BlockedEitherWay(ctx context.Context, store GraphStore, a, b string) (bool, error) {
	blocked, err := store.HasEdge(ctx, a, models.EdgeBlocked, b)
	if err != nil || blocked {
		return blocked, err
	}
	return store.HasEdge(ctx, b, models.EdgeBlocked, a)
}

// LoadViewerGraph reads the viewer's outgoing and incoming edges
func LoadViewerGraph(ctx context.Context, store GraphStore, viewerID string) (*ViewerGraph, error) {
	following, err := store.ListEdges(ctx, viewerID, models.EdgeFollows)
	if err != nil {
		return nil, fmt.Errorf("failed to list follows: %w", err)
	}
	followers, err := store.ListIncoming(ctx, viewerID, models.EdgeFollows)
	if err != nil {
		return nil, fmt.Errorf("failed to list followers: %w", err)
	}
	closeFriends, err := store.ListEdges(ctx, viewerID, models.EdgeCloseFriend)
	if err != nil {
		return nil, fmt.Errorf("failed to list close friends: %w", err)
	}
	blocking, err := store.ListEdges(ctx, viewerID, models.EdgeBlocked)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	blockedBy, err := store.ListIncoming(ctx, viewerID, models.EdgeBlocked)
	if err != nil {
		return nil, fmt.Errorf("failed to list blockers: %w", err)
	}

	return &ViewerGraph{
		ViewerID:      viewerID,
		Following:     toSet(following),
		Followers:     toSet(followers),
		CloseFriends:  toSet(closeFriends),
		Blocked:       toSet(append(blocking, blockedBy...)),
		store:         store,
		inCloseCircle: make(map[string]bool),
	}, nil
}

// FollowedAuthors returns the followed actors that are not blocked
func (g *ViewerGraph) FollowedAuthors() []string {
	authors := make([]string, 0, len(g.Following))
	for id := range g.Following {
		if !g.Blocked[id] {
			authors = append(authors, id)
		}
	}
	slices.Sort(authors)
	return authors
}

// Affinity describes the viewer's closeness to an author for scoring
func (g *ViewerGraph) Affinity(authorID string) scoring.Affinity {
	if authorID == g.ViewerID {
		return scoring.Affinity{Self: true}
	}
	return scoring.Affinity{
		Follows:     g.Following[authorID],
		CloseFriend: g.CloseFriends[authorID],
		Mutual:      g.Following[authorID] && g.Followers[authorID],
	}
}

// inAuthorsCloseFriends checks the author's close-friend edge once per author.
// Lookup failures exclude.
func (g *ViewerGraph) inAuthorsCloseFriends(ctx context.Context, authorID string) bool {
	g.mu.Lock()
	if v, ok := g.inCloseCircle[authorID]; ok {
		g.mu.Unlock()
		return v
	}
	g.mu.Unlock()

	member, err := g.store.HasEdge(ctx, authorID, models.EdgeCloseFriend, g.ViewerID)
	if err != nil {
		serviceLog("visibility").Debug().Err(err).Str("author", authorID).Msg("close friend check failed, excluding")
		member = false
	}

	g.mu.Lock()
	g.inCloseCircle[authorID] = member
	g.mu.Unlock()
	return member
}

// CanSee applies visibility policy, exception list and blocks.
// Authors always see their own items.
func (g *ViewerGraph) CanSee(ctx context.Context, authorID, visibility string, exceptions []string) bool {
	if authorID == g.ViewerID {
		return true
	}
	if g.Blocked[authorID] || slices.Contains(exceptions, g.ViewerID) {
		return false
	}
	switch visibility {
	case models.VisibilityPublic:
		return true
	case models.VisibilityFollowers:
		return g.Following[authorID]
	case models.VisibilityCloseFriends:
		return g.inAuthorsCloseFriends(ctx, authorID)
	default:
		// private, only_me and anything unrecognised
		return false
	}
}

// CanSeeContent adds the servable checks (archive, hide, expiry) on top of CanSee
func (g *ViewerGraph) CanSeeContent(ctx context.Context, item *models.ContentItem, now time.Time) bool {
	if !item.Servable(now) {
		return false
	}
	return g.CanSee(ctx, item.AuthorID, item.Visibility, item.VisibilityExceptions)
}

// Audience filters an author's followers down to those allowed to see an item
// with the given policy. Blocks already removed follow edges.
func Audience(ctx context.Context, store GraphStore, authorID, visibility string, exceptions []string, followers []string) []string {
	var out []string
	for _, followerID := range followers {
		if followerID == authorID || slices.Contains(exceptions, followerID) {
			continue
		}
		switch visibility {
		case models.VisibilityPublic, models.VisibilityFollowers:
			out = append(out, followerID)
		case models.VisibilityCloseFriends:
			member, err := store.HasEdge(ctx, authorID, models.EdgeCloseFriend, followerID)
			if err == nil && member {
				out = append(out, followerID)
			}
		}
	}
	return out
}
