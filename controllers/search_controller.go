package controllers

import (
	"net/http"

	"pulse_server/services"
)

// SearchController serves user, post and tag search
type SearchController struct {
	SearchService *services.SearchService
}

func NewSearchController(searchService *services.SearchService) *SearchController {
	return &SearchController{SearchService: searchService}
}

func searchRequest(r *http.Request) (services.SearchRequest, error) {
	req := services.SearchRequest{Query: r.URL.Query().Get("q")}
	var err error
	if req.Page, err = queryInt(r, "page", 1); err != nil {
		return req, err
	}
	if req.Limit, err = queryInt(r, "limit", 0); err != nil {
		return req, err
	}
	return req, validate.Struct(req)
}

func (sc *SearchController) HandleSearchUsers(w http.ResponseWriter, r *http.Request) {
	req, err := searchRequest(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	page, err := sc.SearchService.SearchUsers(r.Context(), ActorID(r), req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, page)
}

func (sc *SearchController) HandleSearchPosts(w http.ResponseWriter, r *http.Request) {
	req, err := searchRequest(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	page, err := sc.SearchService.SearchPosts(r.Context(), ActorID(r), req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, page)
}

// HandleSearchTags completes hashtags by prefix
func (sc *SearchController) HandleSearchTags(w http.ResponseWriter, r *http.Request) {
	req, err := searchRequest(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	page, err := sc.SearchService.SearchTags(r.Context(), req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, page)
}
