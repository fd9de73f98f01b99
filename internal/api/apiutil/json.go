package apiutil

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// HandlerError carries the status and public message for a failed request;
// Err is logged, never returned to the client.
type HandlerError struct {
	Status  int
	Message string
	Err     error
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

type errorBody struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteError logs herr and writes its message as a JSON error body.
func WriteError(w http.ResponseWriter, r *http.Request, herr HandlerError) {
	logger := log.Ctx(r.Context())
	event := logger.Warn()
	if herr.Status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(herr.Err).Int("status", herr.Status).Msg(herr.Message)

	if err := WriteJSON(w, herr.Status, errorBody{Error: herr.Message}); err != nil {
		logger.Error().Err(err).Msg("Failed to write error response")
	}
}
