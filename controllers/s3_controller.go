package controllers

import (
	"net/http"

	"pulse_server/logging"
	"pulse_server/services"
)

// MediaController signs read URLs for stored media keys
type MediaController struct {
	MediaService *services.MediaService
}

func NewMediaController(mediaService *services.MediaService) *MediaController {
	return &MediaController{MediaService: mediaService}
}

// GetPresignedReadURL generates a presigned URL for reading a media object
func (mc *MediaController) GetPresignedReadURL(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Key string `json:"key" validate:"required,max=1024"`
	}
	if err := decodeBody(r, &payload); err != nil {
		WriteError(w, r, err)
		return
	}

	url, err := mc.MediaService.GenerateReadURL(r.Context(), payload.Key)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	logging.Debug().Str("key", payload.Key).Msg("signed media read url")
	WriteJSONResponse(w, http.StatusOK, map[string]string{"url": url})
}
