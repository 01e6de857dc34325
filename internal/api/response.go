package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// writeStoreError translates a store error into an HTTP response. what names
// the failed operation in logs and in the generic 500 message.
func writeStoreError(w http.ResponseWriter, err error, what string) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		jsonResponse(w, http.StatusUnprocessableEntity, model.BulkResult{
			ProcessedCount: 0,
			Errors:         verr.Failures,
		})
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrSerialConflict):
		jsonError(w, http.StatusConflict, "could not allocate identifier, retry the request")
	case errors.Is(err, store.ErrConcurrentModification):
		jsonError(w, http.StatusConflict, "item changed while the request was processed, retry the request")
	case errors.Is(err, store.ErrInvalidInput):
		jsonError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("failed to "+what, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to "+what)
	}
}

// writeFile sends a stored or rendered document inline.
func writeFile(w http.ResponseWriter, data []byte, mime, fileName string) {
	w.Header().Set("Content-Type", mime)
	if fileName != "" {
		w.Header().Set("Content-Disposition", `inline; filename="`+fileName+`"`)
	}
	w.Write(data)
}
