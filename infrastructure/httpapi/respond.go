package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"my-chat-backend/errors"
)

type errorBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy to a status. Internal details of 5xx
// errors are logged, not returned.
func writeError(w http.ResponseWriter, log *slog.Logger, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Message: message})
}

// decode reads a JSON body and validates its struct tags.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, a.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return errors.InvalidArgument(err)
	}
	return errors.InvalidArgument(a.validate.Struct(dst))
}
