package models

import "time"

// PresenceRecord is the online state of one actor on this instance
type PresenceRecord struct {
	ActorID      string    `json:"actorId"`
	ConnectionID string    `json:"connectionId"` // Most recent connection
	Online       bool      `json:"online"`
	LastSeen     time.Time `json:"lastSeen"`
}
