package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"pulse_server/services"
)

// StoryController handles ephemeral stories
type StoryController struct {
	StoryService *services.StoryService
}

func NewStoryController(storyService *services.StoryService) *StoryController {
	return &StoryController{StoryService: storyService}
}

func (sc *StoryController) HandlePublish(w http.ResponseWriter, r *http.Request) {
	var request services.PublishStoryRequest
	if err := decodeBody(r, &request); err != nil {
		WriteError(w, r, err)
		return
	}
	story, err := sc.StoryService.Publish(r.Context(), ActorID(r), request)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusCreated, story)
}

// HandleListActive returns the story tray: unexpired stories grouped per author
func (sc *StoryController) HandleListActive(w http.ResponseWriter, r *http.Request) {
	groups, err := sc.StoryService.ListActive(r.Context(), ActorID(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]any{"authors": groups})
}

func (sc *StoryController) HandleView(w http.ResponseWriter, r *http.Request) {
	story, err := sc.StoryService.View(r.Context(), ActorID(r), mux.Vars(r)["storyId"])
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, story)
}

func (sc *StoryController) HandleViewers(w http.ResponseWriter, r *http.Request) {
	viewers, err := sc.StoryService.Viewers(r.Context(), ActorID(r), mux.Vars(r)["storyId"])
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]any{"viewers": viewers})
}
