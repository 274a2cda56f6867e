package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"pulse_server/services"
)

// NotificationController serves an actor's own notifications
type NotificationController struct {
	NotificationService *services.NotificationService
}

func NewNotificationController(notificationService *services.NotificationService) *NotificationController {
	return &NotificationController{NotificationService: notificationService}
}

// HandleList returns notifications newest first. Query: limit, unread.
func (nc *NotificationController) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	list, err := nc.NotificationService.List(r.Context(), ActorID(r), limit, queryBool(r, "unread"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]any{"items": list})
}

func (nc *NotificationController) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := nc.NotificationService.UnreadCount(r.Context(), ActorID(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]int{"count": count})
}

func (nc *NotificationController) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := nc.NotificationService.MarkAsRead(r.Context(), ActorID(r), mux.Vars(r)["notificationId"]); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Notification marked as read"})
}

func (nc *NotificationController) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	updated, err := nc.NotificationService.MarkAllAsRead(r.Context(), ActorID(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]int{"updated": updated})
}

func (nc *NotificationController) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := nc.NotificationService.Delete(r.Context(), ActorID(r), mux.Vars(r)["notificationId"]); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Notification deleted"})
}

type preferencesRequest struct {
	Preferences map[string]bool `json:"preferences" validate:"required,dive,keys,oneof=like comment follow mention message story live post share,endkeys"`
}

// HandleSetPreferences replaces the actor's per-type delivery preferences
func (nc *NotificationController) HandleSetPreferences(w http.ResponseWriter, r *http.Request) {
	var request preferencesRequest
	if err := decodeBody(r, &request); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := nc.NotificationService.SetPreferences(r.Context(), ActorID(r), request.Preferences); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]any{"preferences": request.Preferences})
}
