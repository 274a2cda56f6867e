package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pulse_server/models"
)

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// clock is a settable test clock
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(at time.Time) *clock { return &clock{now: at} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type published struct {
	Room    string
	Event   string
	Payload any
}

// recordingPublisher captures every live event
type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, room, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Room: room, Event: event, Payload: payload})
	return p.err
}

func (p *recordingPublisher) inRoom(room, event string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.Room == room && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// recordingRooms captures follow-room membership changes
type recordingRooms struct {
	joined map[string][]string
	left   map[string][]string
}

func newRecordingRooms() *recordingRooms {
	return &recordingRooms{joined: map[string][]string{}, left: map[string][]string{}}
}

func (r *recordingRooms) JoinActor(actorID, room string) {
	r.joined[actorID] = append(r.joined[actorID], room)
}

func (r *recordingRooms) LeaveActor(actorID, room string) {
	r.left[actorID] = append(r.left[actorID], room)
}

// failingStore breaks selected operations of an otherwise working store
type failingStore struct {
	*MemoryStore
	mu           sync.Mutex
	listFailures int // remaining ListContentByAuthors calls to fail
	failTop      bool
	failEdges    bool
	failSearch   bool
	delay        time.Duration
}

var errBackend = errors.New("backend down")

func (f *failingStore) ListContentByAuthors(ctx context.Context, q ContentQuery) ([]models.ContentItem, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	fail := f.listFailures > 0
	if fail {
		f.listFailures--
	}
	f.mu.Unlock()
	if fail {
		return nil, errBackend
	}
	return f.MemoryStore.ListContentByAuthors(ctx, q)
}

func (f *failingStore) TopLikedContent(ctx context.Context) (*models.ContentItem, error) {
	if f.failTop {
		return nil, errBackend
	}
	return f.MemoryStore.TopLikedContent(ctx)
}

func (f *failingStore) ListEdges(ctx context.Context, fromID, kind string) ([]string, error) {
	if f.failEdges {
		return nil, errBackend
	}
	return f.MemoryStore.ListEdges(ctx, fromID, kind)
}

func (f *failingStore) SearchUsers(ctx context.Context, query string, limit int) ([]models.UserProfile, error) {
	if f.failSearch {
		return nil, errBackend
	}
	return f.MemoryStore.SearchUsers(ctx, query, limit)
}

func (f *failingStore) SearchContent(ctx context.Context, query string, limit int) ([]models.ContentItem, error) {
	if f.failSearch {
		return nil, errBackend
	}
	return f.MemoryStore.SearchContent(ctx, query, limit)
}

func (f *failingStore) DistinctTags(ctx context.Context, prefix string, limit int) ([]string, error) {
	if f.failSearch {
		return nil, errBackend
	}
	return f.MemoryStore.DistinctTags(ctx, prefix, limit)
}

func seedUsers(t *testing.T, store *MemoryStore, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, store.PutUser(context.Background(), &models.UserProfile{
			UserID:      id,
			Username:    id,
			DisplayName: "User " + id,
		}))
	}
}

func follow(t *testing.T, store GraphStore, from, to string) {
	t.Helper()
	require.NoError(t, store.PutEdge(context.Background(), models.SocialEdge{FromID: from, ToID: to, Kind: models.EdgeFollows, CreatedAt: t0}))
}

func putPost(t *testing.T, store ContentStore, id, author string, at time.Time, visibility string) *models.ContentItem {
	t.Helper()
	item := &models.ContentItem{
		ContentID:   id,
		AuthorID:    author,
		ContentType: models.ContentTypeText,
		Text:        "post " + id,
		Visibility:  visibility,
		CreatedAt:   at,
	}
	require.NoError(t, store.PutContent(context.Background(), item))
	return item
}

// env wires the services over one memory store and a fixed clock
type env struct {
	clock         *clock
	store         *MemoryStore
	publisher     *recordingPublisher
	rooms         *recordingRooms
	notifications *NotificationService
	graph         *GraphService
	stories       *StoryService
	engagement    *EngagementService
	content       *ContentService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	c := newClock(t0)
	store := NewMemoryStore().WithClock(c.Now)
	pub := &recordingPublisher{}
	rooms := newRecordingRooms()

	notifications := NewNotificationService(store, pub)
	notifications.now = c.Now
	graph := NewGraphService(store, notifications, rooms)
	graph.now = c.Now
	stories := NewStoryService(store, notifications, nil)
	stories.now = c.Now
	maxima := NewMaximaSource(store, time.Minute)
	engagement := NewEngagementService(store, notifications, stories, maxima)
	engagement.now = c.Now
	content := NewContentService(store, notifications, pub, nil)
	content.now = c.Now

	return &env{
		clock:         c,
		store:         store,
		publisher:     pub,
		rooms:         rooms,
		notifications: notifications,
		graph:         graph,
		stories:       stories,
		engagement:    engagement,
		content:       content,
	}
}
