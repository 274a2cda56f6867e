package routes

import (
	"github.com/gorilla/mux"

	"pulse_server/controllers"
	"pulse_server/services"
)

// RegisterNotificationRoutes sets up the actor's notification inbox under /api/notifications
func RegisterNotificationRoutes(api *mux.Router, notificationService *services.NotificationService) {
	controller := controllers.NewNotificationController(notificationService)

	router := api.PathPrefix("/notifications").Subrouter()
	router.HandleFunc("", controller.HandleList).Methods("GET")
	router.HandleFunc("/unread-count", controller.HandleUnreadCount).Methods("GET")
	router.HandleFunc("/read-all", controller.HandleMarkAllRead).Methods("POST")
	router.HandleFunc("/preferences", controller.HandleSetPreferences).Methods("PUT")
	router.HandleFunc("/{notificationId}/read", controller.HandleMarkRead).Methods("POST")
	router.HandleFunc("/{notificationId}", controller.HandleDelete).Methods("DELETE")
}
