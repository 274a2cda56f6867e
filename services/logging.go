package services

import (
	"github.com/rs/zerolog"

	"pulse_server/logging"
)

func serviceLog(component string) *zerolog.Logger {
	l := logging.With().Str("component", component).Logger()
	return &l
}
