package routes

import (
	"github.com/gorilla/mux"

	"pulse_server/controllers"
	"pulse_server/services"
)

// RegisterFeedRoutes sets up the home feed and search under /api
func RegisterFeedRoutes(api *mux.Router, feedService *services.FeedService, searchService *services.SearchService) {
	feed := controllers.NewFeedController(feedService)
	api.HandleFunc("/feed", feed.HandleFeed).Methods("GET")

	search := controllers.NewSearchController(searchService)
	searchRouter := api.PathPrefix("/search").Subrouter()
	searchRouter.HandleFunc("/users", search.HandleSearchUsers).Methods("GET")
	searchRouter.HandleFunc("/posts", search.HandleSearchPosts).Methods("GET")
	searchRouter.HandleFunc("/tags", search.HandleSearchTags).Methods("GET")
}
