package socket

import (
	"sort"
	"sync"
	"time"

	"pulse_server/models"
)

// PresenceRegistry tracks which actors have live connections on this
// instance. An actor stays online while any of its connections is open.
type PresenceRegistry struct {
	mu      sync.RWMutex
	records map[string]*models.PresenceRecord
	live    map[string]map[string]bool // actorId -> open connection ids
	now     func() time.Time
}

func NewPresenceRegistry(now func() time.Time) *PresenceRegistry {
	if now == nil {
		now = time.Now
	}
	return &PresenceRegistry{
		records: make(map[string]*models.PresenceRecord),
		live:    make(map[string]map[string]bool),
		now:     now,
	}
}

// Connect registers a connection and reports whether the actor just came online
func (p *PresenceRegistry) Connect(actorID, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	conns, ok := p.live[actorID]
	if !ok {
		conns = make(map[string]bool)
		p.live[actorID] = conns
	}
	conns[connID] = true

	rec, ok := p.records[actorID]
	if !ok {
		rec = &models.PresenceRecord{ActorID: actorID}
		p.records[actorID] = rec
	}
	wasOnline := rec.Online
	rec.ConnectionID = connID
	rec.Online = true
	rec.LastSeen = p.now()
	return !wasOnline
}

// Disconnect drops a connection and reports whether the actor went offline
func (p *PresenceRegistry) Disconnect(actorID, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	conns := p.live[actorID]
	delete(conns, connID)
	if len(conns) > 0 {
		return false
	}
	delete(p.live, actorID)

	rec, ok := p.records[actorID]
	if !ok || !rec.Online {
		return false
	}
	rec.Online = false
	rec.LastSeen = p.now()
	return true
}

// Sweep removes records offline for longer than staleAfter and returns their actors
func (p *PresenceRegistry) Sweep(staleAfter time.Duration) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.now().Add(-staleAfter)
	var removed []string
	for actorID, rec := range p.records {
		if !rec.Online && rec.LastSeen.Before(cutoff) {
			delete(p.records, actorID)
			removed = append(removed, actorID)
		}
	}
	sort.Strings(removed)
	return removed
}

// OnlineActors is a sorted snapshot of online actors
func (p *PresenceRegistry) OnlineActors() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	actors := make([]string, 0, len(p.live))
	for actorID, rec := range p.records {
		if rec.Online {
			actors = append(actors, actorID)
		}
	}
	sort.Strings(actors)
	return actors
}

func (p *PresenceRegistry) IsOnline(actorID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.records[actorID]
	return ok && rec.Online
}

// LastSeen is the time of the actor's last connect or disconnect
func (p *PresenceRegistry) LastSeen(actorID string) (time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.records[actorID]
	if !ok {
		return time.Time{}, false
	}
	return rec.LastSeen, true
}

// Record returns a copy of the actor's presence record
func (p *PresenceRegistry) Record(actorID string) (models.PresenceRecord, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.records[actorID]
	if !ok {
		return models.PresenceRecord{}, false
	}
	return *rec, true
}

// Len is the number of records, online or not
func (p *PresenceRegistry) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.records)
}
