package controllers

import (
	"net/http"

	"pulse_server/services"
)

// ActionController handles HTTP requests for engagement actions
type ActionController struct {
	EngagementService *services.EngagementService
}

// NewActionController creates a new ActionController instance
func NewActionController(engagementService *services.EngagementService) *ActionController {
	return &ActionController{EngagementService: engagementService}
}

// HandleAction records like, dislike, save, share, view or comment on an item or story
func (ac *ActionController) HandleAction(w http.ResponseWriter, r *http.Request) {
	var request services.ActionRequest
	if err := decodeBody(r, &request); err != nil {
		WriteError(w, r, err)
		return
	}
	request.ActorID = ActorID(r)

	result, err := ac.EngagementService.RecordAction(r.Context(), request)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, result)
}
