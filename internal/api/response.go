package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/Parabola/internal/models"
)

// internalErrorBody is written when an envelope cannot be encoded.
var internalErrorBody = mustEncode(models.Error("Internal server error"))

func mustEncode(v models.APIResponse) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic("api: cannot encode fallback envelope: " + err.Error())
	}
	return data
}

// writeJSONResponse encodes the envelope before touching headers so an
// encoding failure can still become a clean 500.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: encode failed", "error", err, "status", statusCode)
		data, statusCode = internalErrorBody, http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(data); err != nil {
		slog.Debug("Server.writeJSONResponse: client went away", "error", err)
	}
}

// writeError writes an error envelope with msg.
func writeError(w http.ResponseWriter, statusCode int, msg string) {
	writeJSONResponse(w, statusCode, models.Error(msg))
}

// decodeJSON decodes the request body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		slog.Warn("Server.decodeJSON: invalid body", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return false
	}
	return true
}
