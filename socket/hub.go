package socket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"pulse_server/logging"
	"pulse_server/models"
	"pulse_server/services"
	"pulse_server/utils"
)

// Namespace is the socket.io namespace every connection lives in
const Namespace = "/"

var errSelfMessage = errors.New("cannot message yourself")

// inboxSize bounds queued inbound events per connection
const inboxSize = 64

// Conn is the part of a socket.io connection the hub drives
type Conn interface {
	ID() string
	Emit(event string, v ...interface{})
	Join(room string)
	Leave(room string)
}

// Broadcaster delivers to rooms and to the whole namespace
type Broadcaster interface {
	BroadcastToRoom(namespace, room, event string, args ...interface{}) bool
	BroadcastToNamespace(namespace, event string, args ...interface{}) bool
}

type client struct {
	conn    Conn
	actorID string
	limiter *rate.Limiter
	inbox   chan func()
	done    chan struct{}
}

// Conversations answers conversation membership. A nil value on the hub
// leaves membership to the messaging service that issued the conversation id.
type Conversations interface {
	IsParticipant(ctx context.Context, conversationID, actorID string) (bool, error)
}

// HubConfig tunes inbound flood protection
type HubConfig struct {
	EventRate  float64
	EventBurst int
}

// Hub owns live connections, their rooms and presence. Inbound events of one
// connection are handled in arrival order on that connection's worker.
type Hub struct {
	Broadcaster   Broadcaster
	Presence      *PresenceRegistry
	Graph         services.GraphStore
	Notifications *services.NotificationService
	Publisher     services.Publisher
	Conversations Conversations

	cfg HubConfig
	now func() time.Time

	mu      sync.RWMutex
	clients map[string]*client         // connId -> client
	byActor map[string]map[string]bool // actorId -> connIds
}

func NewHub(broadcaster Broadcaster, presence *PresenceRegistry, graph services.GraphStore, cfg HubConfig) *Hub {
	if cfg.EventRate <= 0 {
		cfg.EventRate = 20
	}
	if cfg.EventBurst < 1 {
		cfg.EventBurst = 40
	}
	return &Hub{
		Broadcaster: broadcaster,
		Presence:    presence,
		Graph:       graph,
		cfg:         cfg,
		now:         time.Now,
		clients:     make(map[string]*client),
		byActor:     make(map[string]map[string]bool),
	}
}

func hubLog() *zerolog.Logger {
	l := logging.With().Str("component", "hub").Logger()
	return &l
}

// Connect registers conn for actorID, joins its rooms, announces it and
// replies with the online snapshot
func (h *Hub) Connect(ctx context.Context, conn Conn, actorID string) {
	c := &client{
		conn:    conn,
		actorID: actorID,
		limiter: rate.NewLimiter(rate.Limit(h.cfg.EventRate), h.cfg.EventBurst),
		inbox:   make(chan func(), inboxSize),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[conn.ID()] = c
	conns, ok := h.byActor[actorID]
	if !ok {
		conns = make(map[string]bool)
		h.byActor[actorID] = conns
	}
	conns[conn.ID()] = true
	h.mu.Unlock()

	go h.work(c)
	connectionsGauge.Inc()

	conn.Join(models.UserRoom(actorID))
	if h.Graph != nil {
		following, err := h.Graph.ListEdges(ctx, actorID, models.EdgeFollows)
		if err != nil {
			hubLog().Warn().Err(err).Str("actor", actorID).Msg("failed to load follow rooms")
		}
		for _, authorID := range following {
			conn.Join(models.FollowRoom(authorID))
		}
	}

	if h.Presence.Connect(actorID, conn.ID()) {
		h.Broadcaster.BroadcastToNamespace(Namespace, models.EventOnline, models.PresenceEvent{ActorID: actorID})
	}
	conn.Emit(models.EventOnlineSnapshot, models.OnlineSnapshotEvent{ActorIDs: h.Presence.OnlineActors()})

	hubLog().Info().Str("actor", actorID).Str("conn", conn.ID()).Msg("connected")
}

// Disconnect forgets the connection and announces the actor offline once its
// last connection closes
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
		delete(h.byActor[c.actorID], connID)
		if len(h.byActor[c.actorID]) == 0 {
			delete(h.byActor, c.actorID)
		}
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	close(c.done)
	connectionsGauge.Dec()

	if h.Presence.Disconnect(c.actorID, connID) {
		lastSeen, _ := h.Presence.LastSeen(c.actorID)
		h.Broadcaster.BroadcastToNamespace(Namespace, models.EventOffline, models.PresenceEvent{ActorID: c.actorID, LastSeen: lastSeen})
	}
	hubLog().Info().Str("actor", c.actorID).Str("conn", connID).Msg("disconnected")
}

func (h *Hub) work(c *client) {
	for {
		select {
		case <-c.done:
			return
		case fn := <-c.inbox:
			fn()
		}
	}
}

func (h *Hub) client(connID string) (*client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	return c, ok
}

// Dispatch queues an inbound event for the connection's worker. Events over
// the rate limit or beyond the inbox capacity are rejected with an error event.
func (h *Hub) Dispatch(connID, event string, raw []byte) {
	c, ok := h.client(connID)
	if !ok {
		return
	}
	if !c.limiter.Allow() {
		inboundEventsTotal.WithLabelValues(event, "rate_limited").Inc()
		h.emitError(c, event, "rate limit exceeded")
		return
	}
	select {
	case c.inbox <- func() { h.handle(c, event, raw) }:
	default:
		inboundEventsTotal.WithLabelValues(event, "dropped").Inc()
		h.emitError(c, event, "too many pending events")
	}
}

// handle decodes and runs one event; failures become error events and never
// reach the transport
func (h *Hub) handle(c *client, event string, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			inboundEventsTotal.WithLabelValues(event, "panic").Inc()
			hubLog().Error().Interface("panic", r).Str("event", event).Str("actor", c.actorID).Msg("event handler panicked")
			h.emitError(c, event, "internal error")
		}
	}()

	payload, err := decodeEvent(event, raw)
	if err != nil {
		inboundEventsTotal.WithLabelValues(event, "invalid").Inc()
		hubLog().Debug().Err(err).Str("event", event).Str("actor", c.actorID).Msg("rejected inbound event")
		h.emitError(c, event, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.apply(ctx, c, payload); err != nil {
		inboundEventsTotal.WithLabelValues(event, "error").Inc()
		hubLog().Warn().Err(err).Str("event", event).Str("actor", c.actorID).Msg("inbound event failed")
		h.emitError(c, event, err.Error())
		return
	}
	inboundEventsTotal.WithLabelValues(event, "ok").Inc()
}

func (h *Hub) apply(ctx context.Context, c *client, payload any) error {
	switch ev := payload.(type) {
	case *JoinConversationEvent:
		if err := h.requireParticipant(ctx, c, ev.ConversationID); err != nil {
			return err
		}
		c.conn.Join(models.ConversationRoom(ev.ConversationID))
		return nil
	case *LeaveConversationEvent:
		c.conn.Leave(models.ConversationRoom(ev.ConversationID))
		return nil
	case *SendMessageEvent:
		return h.sendMessage(ctx, c, ev)
	case *TypingEvent:
		if err := h.requireParticipant(ctx, c, ev.ConversationID); err != nil {
			return err
		}
		return h.publish(ctx, models.ConversationRoom(ev.ConversationID), models.EventTyping, models.TypingEvent{
			ConversationID: ev.ConversationID,
			ActorID:        c.actorID,
			IsTyping:       ev.IsTyping,
		})
	case *MarkReadEvent:
		return h.markRead(ctx, c, ev)
	case *GetOnlineEvent:
		c.conn.Emit(models.EventOnlineSnapshot, models.OnlineSnapshotEvent{ActorIDs: h.Presence.OnlineActors()})
		return nil
	default:
		return fmt.Errorf("no handler for %T", payload)
	}
}

func (h *Hub) sendMessage(ctx context.Context, c *client, ev *SendMessageEvent) error {
	if ev.RecipientID == c.actorID {
		return errSelfMessage
	}
	if err := h.requireParticipant(ctx, c, ev.ConversationID); err != nil {
		return err
	}
	if h.Graph != nil {
		blocked, err := services.BlockedEitherWay(ctx, h.Graph, c.actorID, ev.RecipientID)
		if err != nil {
			return fmt.Errorf("failed to check blocks: %w", err)
		}
		if blocked {
			return &services.PolicyError{Code: services.CodeBlocked, Message: "cannot message this user"}
		}
	}
	msg := models.NewMessageEvent{
		ConversationID: ev.ConversationID,
		SenderID:       c.actorID,
		Text:           ev.Text,
		SentAt:         h.now().UTC(),
	}
	if err := h.publish(ctx, models.ConversationRoom(ev.ConversationID), models.EventNewMessage, msg); err != nil {
		return err
	}
	if h.Notifications != nil {
		if _, err := h.Notifications.Notify(ctx, services.NotifyRequest{
			RecipientID: ev.RecipientID,
			ActorID:     c.actorID,
			Type:        models.NotificationMessage,
			Text:        utils.Excerpt(ev.Text, 100),
		}); err != nil {
			hubLog().Warn().Err(err).Str("recipient", ev.RecipientID).Msg("failed to notify message")
		}
	}
	return nil
}

func (h *Hub) requireParticipant(ctx context.Context, c *client, conversationID string) error {
	if h.Conversations == nil {
		return nil
	}
	ok, err := h.Conversations.IsParticipant(ctx, conversationID, c.actorID)
	if err != nil {
		return fmt.Errorf("failed to check conversation membership: %w", err)
	}
	if !ok {
		return &services.PolicyError{Code: services.CodeVisibilityDenied, Message: "not a participant of this conversation"}
	}
	return nil
}

func (h *Hub) markRead(ctx context.Context, c *client, ev *MarkReadEvent) error {
	if h.Notifications == nil {
		return nil
	}
	if ev.NotificationID != "" {
		return h.Notifications.MarkAsRead(ctx, c.actorID, ev.NotificationID)
	}
	_, err := h.Notifications.MarkAllAsRead(ctx, c.actorID)
	return err
}

func (h *Hub) publish(ctx context.Context, room, event string, payload any) error {
	if h.Publisher != nil {
		return h.Publisher.Publish(ctx, room, event, payload)
	}
	return h.LocalPublisher().Publish(ctx, room, event, payload)
}

func (h *Hub) emitError(c *client, event, message string) {
	c.conn.Emit(models.EventError, models.ErrorEvent{Event: event, Message: message})
}

// JoinActor adds every live connection of actorID to room
func (h *Hub) JoinActor(actorID, room string) {
	for _, c := range h.actorClients(actorID) {
		c.conn.Join(room)
	}
}

// LeaveActor removes every live connection of actorID from room
func (h *Hub) LeaveActor(actorID, room string) {
	for _, c := range h.actorClients(actorID) {
		c.conn.Leave(room)
	}
}

func (h *Hub) actorClients(actorID string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0, len(h.byActor[actorID]))
	for connID := range h.byActor[actorID] {
		out = append(out, h.clients[connID])
	}
	return out
}

// Connections is the number of live connections on this instance
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// LocalPublisher delivers to this instance's connections only
func (h *Hub) LocalPublisher() services.Publisher {
	return services.PublisherFunc(func(_ context.Context, room, event string, payload any) error {
		h.Broadcaster.BroadcastToRoom(Namespace, room, event, payload)
		deliveriesTotal.WithLabelValues(event).Inc()
		return nil
	})
}
