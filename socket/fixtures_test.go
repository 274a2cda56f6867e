package socket

import (
	"context"
	"slices"
	"sync"
	"time"

	"pulse_server/models"
	"pulse_server/services"
)

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

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

type emitted struct {
	Event   string
	Payload any
}

// fakeConn records what the hub does to one connection
type fakeConn struct {
	id string

	mu    sync.Mutex
	emits []emitted
	rooms map[string]bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, rooms: make(map[string]bool)}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Emit(event string, v ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var payload any
	if len(v) > 0 {
		payload = v[0]
	}
	c.emits = append(c.emits, emitted{Event: event, Payload: payload})
}

func (c *fakeConn) Join(room string) {
	c.mu.Lock()
	c.rooms[room] = true
	c.mu.Unlock()
}

func (c *fakeConn) Leave(room string) {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}

func (c *fakeConn) inRoom(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms[room]
}

func (c *fakeConn) emitted(event string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []any
	for _, e := range c.emits {
		if e.Event == event {
			out = append(out, e.Payload)
		}
	}
	return out
}

type broadcast struct {
	Room    string // empty for namespace-wide
	Event   string
	Payload any
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	sent []broadcast
}

func (b *fakeBroadcaster) BroadcastToRoom(_, room, event string, args ...interface{}) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, broadcast{Room: room, Event: event, Payload: args[0]})
	return true
}

func (b *fakeBroadcaster) BroadcastToNamespace(_, event string, args ...interface{}) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, broadcast{Event: event, Payload: args[0]})
	return true
}

func (b *fakeBroadcaster) find(room, event string) []broadcast {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []broadcast
	for _, s := range b.sent {
		if s.Room == room && s.Event == event {
			out = append(out, s)
		}
	}
	return out
}

type testHub struct {
	hub   *Hub
	bc    *fakeBroadcaster
	store *services.MemoryStore
	clk   *clock
}

func newTestHub(cfg HubConfig) *testHub {
	clk := newClock(t0)
	store := services.NewMemoryStore()
	bc := &fakeBroadcaster{}
	hub := NewHub(bc, NewPresenceRegistry(clk.Now), store, cfg)
	hub.now = clk.Now
	hub.Notifications = services.NewNotificationService(store, hub.LocalPublisher())
	return &testHub{hub: hub, bc: bc, store: store, clk: clk}
}

func (th *testHub) user(id string) {
	_ = th.store.PutUser(context.Background(), &models.UserProfile{UserID: id, Username: id})
}

func (th *testHub) follow(from, to string) {
	_ = th.store.PutEdge(context.Background(), models.SocialEdge{
		FromID:  from,
		EdgeKey: models.EdgeKeyFor(models.EdgeFollows, to),
		ToID:    to,
		Kind:    models.EdgeFollows,
	})
}

func (th *testHub) block(from, to string) {
	_ = th.store.PutEdge(context.Background(), models.SocialEdge{
		FromID:  from,
		EdgeKey: models.EdgeKeyFor(models.EdgeBlocked, to),
		ToID:    to,
		Kind:    models.EdgeBlocked,
	})
}

// fakeConversations admits the listed actors per conversation
type fakeConversations map[string][]string

func (f fakeConversations) IsParticipant(_ context.Context, conversationID, actorID string) (bool, error) {
	return slices.Contains(f[conversationID], actorID), nil
}

func servicesNotify(recipient, actor string) services.NotifyRequest {
	return services.NotifyRequest{RecipientID: recipient, ActorID: actor, Type: models.NotificationFollow}
}
