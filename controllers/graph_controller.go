package controllers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"pulse_server/services"
)

// GraphController handles follow, block and close-friend edges
type GraphController struct {
	GraphService *services.GraphService
}

func NewGraphController(graphService *services.GraphService) *GraphController {
	return &GraphController{GraphService: graphService}
}

type edgeOp func(ctx context.Context, actorID, targetID string) error

// edgeHandler runs op from the actor towards the {userId} path target
func (gc *GraphController) edgeHandler(op edgeOp, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		targetID := mux.Vars(r)["userId"]
		if err := op(r.Context(), ActorID(r), targetID); err != nil {
			WriteError(w, r, err)
			return
		}
		WriteJSONResponse(w, http.StatusOK, map[string]string{"message": message, "userId": targetID})
	}
}

func (gc *GraphController) HandleFollow() http.HandlerFunc {
	return gc.edgeHandler(gc.GraphService.Follow, "Followed")
}

func (gc *GraphController) HandleUnfollow() http.HandlerFunc {
	return gc.edgeHandler(gc.GraphService.Unfollow, "Unfollowed")
}

func (gc *GraphController) HandleBlock() http.HandlerFunc {
	return gc.edgeHandler(gc.GraphService.Block, "Blocked")
}

func (gc *GraphController) HandleUnblock() http.HandlerFunc {
	return gc.edgeHandler(gc.GraphService.Unblock, "Unblocked")
}

func (gc *GraphController) HandleAddCloseFriend() http.HandlerFunc {
	return gc.edgeHandler(gc.GraphService.AddCloseFriend, "Added to close friends")
}

func (gc *GraphController) HandleRemoveCloseFriend() http.HandlerFunc {
	return gc.edgeHandler(gc.GraphService.RemoveCloseFriend, "Removed from close friends")
}

func (gc *GraphController) HandleRelationship(w http.ResponseWriter, r *http.Request) {
	rel, err := gc.GraphService.Relationship(r.Context(), ActorID(r), mux.Vars(r)["userId"])
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, rel)
}

func (gc *GraphController) HandleFollowers(w http.ResponseWriter, r *http.Request) {
	ids, err := gc.GraphService.Followers(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]any{"userIds": ids})
}

func (gc *GraphController) HandleFollowing(w http.ResponseWriter, r *http.Request) {
	ids, err := gc.GraphService.Following(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]any{"userIds": ids})
}
