package routes

import (
	"github.com/gorilla/mux"

	"pulse_server/controllers"
	"pulse_server/services"
)

// RegisterActionRoutes sets up engagement actions under /api/actions
func RegisterActionRoutes(api *mux.Router, engagementService *services.EngagementService) {
	controller := controllers.NewActionController(engagementService)
	api.HandleFunc("/actions", controller.HandleAction).Methods("POST")
}
