package routes

import (
	"github.com/gorilla/mux"

	"pulse_server/controllers"
	"pulse_server/services"
	"pulse_server/socket"
)

// RegisterGraphRoutes sets up social edges and presence under /api/users
func RegisterGraphRoutes(api *mux.Router, graphService *services.GraphService, presence *socket.PresenceRegistry) {
	graph := controllers.NewGraphController(graphService)

	users := api.PathPrefix("/users/{userId}").Subrouter()
	users.HandleFunc("/follow", graph.HandleFollow()).Methods("POST")
	users.HandleFunc("/follow", graph.HandleUnfollow()).Methods("DELETE")
	users.HandleFunc("/block", graph.HandleBlock()).Methods("POST")
	users.HandleFunc("/block", graph.HandleUnblock()).Methods("DELETE")
	users.HandleFunc("/close-friend", graph.HandleAddCloseFriend()).Methods("POST")
	users.HandleFunc("/close-friend", graph.HandleRemoveCloseFriend()).Methods("DELETE")
	users.HandleFunc("/relationship", graph.HandleRelationship).Methods("GET")
	users.HandleFunc("/followers", graph.HandleFollowers).Methods("GET")
	users.HandleFunc("/following", graph.HandleFollowing).Methods("GET")

	online := controllers.NewPresenceController(presence)
	users.HandleFunc("/presence", online.HandleActor).Methods("GET")
	api.HandleFunc("/presence/online", online.HandleOnline).Methods("GET")
}
