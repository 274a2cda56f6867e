package controllers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"pulse_server/socket"
)

// PresenceController exposes this instance's presence registry
type PresenceController struct {
	Presence *socket.PresenceRegistry
}

func NewPresenceController(presence *socket.PresenceRegistry) *PresenceController {
	return &PresenceController{Presence: presence}
}

func (pc *PresenceController) HandleOnline(w http.ResponseWriter, r *http.Request) {
	WriteJSONResponse(w, http.StatusOK, map[string]any{"actorIds": pc.Presence.OnlineActors()})
}

type presenceResponse struct {
	ActorID  string     `json:"actorId"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// HandleActor reports one actor's online flag and last-seen time
func (pc *PresenceController) HandleActor(w http.ResponseWriter, r *http.Request) {
	actorID := mux.Vars(r)["userId"]
	resp := presenceResponse{ActorID: actorID, Online: pc.Presence.IsOnline(actorID)}
	if seen, ok := pc.Presence.LastSeen(actorID); ok {
		resp.LastSeen = &seen
	}
	WriteJSONResponse(w, http.StatusOK, resp)
}
