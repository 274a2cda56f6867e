package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"pulse_server/logging"
	"pulse_server/services"
)

// ActorHeader carries the verified actor id set by the auth gateway
const ActorHeader = "X-Actor-ID"

// Error codes that are not policy violations
const (
	CodeValidation   = "validation"
	CodeNotFound     = "not_found"
	CodeUnauthorized = "unauthorized"
	CodeInternal     = "internal"
)

type actorKey struct{}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RequireActor rejects requests without an actor id and stores it in the context
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID := strings.TrimSpace(r.Header.Get(ActorHeader))
		if actorID == "" {
			WriteJSONResponse(w, http.StatusUnauthorized, ErrorResponse{Error: "missing " + ActorHeader + " header", Code: CodeUnauthorized})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actorID)))
	})
}

// ActorID is the actor placed in the context by RequireActor
func ActorID(r *http.Request) string {
	id, _ := r.Context().Value(actorKey{}).(string)
	return id
}

// WriteJSONResponse writes v as JSON with the given status
func WriteJSONResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("failed to encode response")
	}
}

// WriteError maps a service error onto a status code and error body
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, CodeInternal

	var pe *services.PolicyError
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &pe):
		code = pe.Code
		switch pe.Code {
		case services.CodeInvalidAction, services.CodeMediaDurationExceeded, services.CodeSelfAction, services.CodeOneTimeViewConsumed:
			status = http.StatusBadRequest
		default:
			status = http.StatusForbidden
		}
	case errors.As(err, &ve), errors.Is(err, errBadRequest):
		status, code = http.StatusBadRequest, CodeValidation
	case errors.Is(err, services.ErrNotFound):
		status, code = http.StatusNotFound, CodeNotFound
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal server error"
	}
	WriteJSONResponse(w, status, ErrorResponse{Error: msg, Code: code})
}

var errBadRequest = errors.New("bad request")

// decodeBody decodes the JSON body into v and validates it
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request payload: %v", errBadRequest, err)
	}
	return validate.Struct(v)
}

// queryInt reads an integer query parameter, returning def when absent
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return n, nil
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// HealthCheckHandler provides a basic health check
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// WelcomeHandler provides a welcome message
func WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Welcome to the Pulse API."})
}
