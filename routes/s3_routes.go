package routes

import (
	"github.com/gorilla/mux"

	"pulse_server/controllers"
	"pulse_server/services"
)

// RegisterMediaRoutes sets up media URL signing under /api/media
func RegisterMediaRoutes(api *mux.Router, mediaService *services.MediaService) {
	controller := controllers.NewMediaController(mediaService)
	api.HandleFunc("/media/read-url", controller.GetPresignedReadURL).Methods("POST")
}
