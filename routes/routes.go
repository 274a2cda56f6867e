package routes

import (
	"github.com/gorilla/mux"

	"pulse_server/controllers"
)

// RegisterRoutes sets up the unauthenticated routes
func RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", controllers.HealthCheckHandler).Methods("GET")
	r.HandleFunc("/", controllers.WelcomeHandler).Methods("GET")
}

// APIRouter returns the /api subrouter; every route under it requires an actor
func APIRouter(r *mux.Router) *mux.Router {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(controllers.RequireActor)
	return api
}
