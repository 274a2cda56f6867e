package routes

import (
	"github.com/gorilla/mux"

	"pulse_server/controllers"
	"pulse_server/services"
)

// RegisterContentRoutes sets up post lifecycle and story routes
func RegisterContentRoutes(api *mux.Router, contentService *services.ContentService, storyService *services.StoryService) {
	posts := controllers.NewContentController(contentService)
	postRouter := api.PathPrefix("/posts").Subrouter()
	postRouter.HandleFunc("", posts.HandleCreatePost).Methods("POST")
	postRouter.HandleFunc("/{contentId}", posts.HandleGetPost).Methods("GET")
	postRouter.HandleFunc("/{contentId}", posts.HandleDeletePost).Methods("DELETE")
	postRouter.HandleFunc("/{contentId}/archive", posts.HandleArchive).Methods("POST")
	postRouter.HandleFunc("/{contentId}/unarchive", posts.HandleUnarchive).Methods("POST")
	postRouter.HandleFunc("/{contentId}/pinned", posts.HandleSetPinned).Methods("PUT")
	postRouter.HandleFunc("/{contentId}/hidden", posts.HandleSetHidden).Methods("PUT")
	api.HandleFunc("/users/{userId}/posts", posts.HandleListByAuthor).Methods("GET")

	stories := controllers.NewStoryController(storyService)
	storyRouter := api.PathPrefix("/stories").Subrouter()
	storyRouter.HandleFunc("", stories.HandlePublish).Methods("POST")
	storyRouter.HandleFunc("", stories.HandleListActive).Methods("GET")
	storyRouter.HandleFunc("/{storyId}/view", stories.HandleView).Methods("POST")
	storyRouter.HandleFunc("/{storyId}/viewers", stories.HandleViewers).Methods("GET")
}
