package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"pulse_server/models"
	"pulse_server/services"
)

// ContentController handles post lifecycle requests
type ContentController struct {
	ContentService *services.ContentService
}

func NewContentController(contentService *services.ContentService) *ContentController {
	return &ContentController{ContentService: contentService}
}

// HandleCreatePost publishes a post authored by the actor
func (cc *ContentController) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	var request services.CreatePostRequest
	if err := decodeBody(r, &request); err != nil {
		WriteError(w, r, err)
		return
	}
	item, err := cc.ContentService.CreatePost(r.Context(), ActorID(r), request)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusCreated, item)
}

func (cc *ContentController) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	item, err := cc.ContentService.Get(r.Context(), ActorID(r), mux.Vars(r)["contentId"])
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, item)
}

// HandleListByAuthor returns an author's posts as the actor may see them
func (cc *ContentController) HandleListByAuthor(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", models.DefaultFeedLimit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	items, err := cc.ContentService.ListByAuthor(r.Context(), ActorID(r), mux.Vars(r)["userId"], limit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (cc *ContentController) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	contentID := mux.Vars(r)["contentId"]
	if err := cc.ContentService.Delete(r.Context(), ActorID(r), contentID); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Post deleted successfully", "contentId": contentID})
}

func (cc *ContentController) HandleArchive(w http.ResponseWriter, r *http.Request) {
	item, err := cc.ContentService.Archive(r.Context(), ActorID(r), mux.Vars(r)["contentId"])
	cc.respondItem(w, r, item, err)
}

func (cc *ContentController) HandleUnarchive(w http.ResponseWriter, r *http.Request) {
	item, err := cc.ContentService.Unarchive(r.Context(), ActorID(r), mux.Vars(r)["contentId"])
	cc.respondItem(w, r, item, err)
}

type flagRequest struct {
	Value *bool `json:"value" validate:"required"`
}

// HandleSetPinned expects {"value": true|false}
func (cc *ContentController) HandleSetPinned(w http.ResponseWriter, r *http.Request) {
	var request flagRequest
	if err := decodeBody(r, &request); err != nil {
		WriteError(w, r, err)
		return
	}
	item, err := cc.ContentService.SetPinned(r.Context(), ActorID(r), mux.Vars(r)["contentId"], *request.Value)
	cc.respondItem(w, r, item, err)
}

// HandleSetHidden expects {"value": true|false}
func (cc *ContentController) HandleSetHidden(w http.ResponseWriter, r *http.Request) {
	var request flagRequest
	if err := decodeBody(r, &request); err != nil {
		WriteError(w, r, err)
		return
	}
	item, err := cc.ContentService.SetHidden(r.Context(), ActorID(r), mux.Vars(r)["contentId"], *request.Value)
	cc.respondItem(w, r, item, err)
}

func (cc *ContentController) respondItem(w http.ResponseWriter, r *http.Request, item *models.ContentItem, err error) {
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, item)
}
