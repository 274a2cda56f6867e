package controllers

import (
	"net/http"

	"pulse_server/models"
	"pulse_server/services"
)

// FeedController serves ranked home feeds
type FeedController struct {
	FeedService *services.FeedService
}

func NewFeedController(feedService *services.FeedService) *FeedController {
	return &FeedController{FeedService: feedService}
}

// HandleFeed returns one page of the actor's feed.
// Query: page, limit, contentType, localHour, mobile.
func (fc *FeedController) HandleFeed(w http.ResponseWriter, r *http.Request) {
	req := models.FeedRequest{
		ContentType: r.URL.Query().Get("contentType"),
		Mobile:      queryBool(r, "mobile"),
	}
	var err error
	if req.Page, err = queryInt(r, "page", 1); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.Limit, err = queryInt(r, "limit", models.DefaultFeedLimit); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.LocalHour, err = queryInt(r, "localHour", -1); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		WriteError(w, r, err)
		return
	}

	page, err := fc.FeedService.Feed(r.Context(), ActorID(r), req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, page)
}
