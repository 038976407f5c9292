package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/Parabola/internal/companion"
	"github.com/BTreeMap/Parabola/internal/models"
)

type ritualRequest struct {
	Goal string `json:"goal"`
}

type summaryRequest struct {
	QuickDump string `json:"quick_dump"`
}

type explainRequest struct {
	ProtocolID string `json:"protocol_id"`
}

// requireCompanion rejects companion requests when no GenAI client is configured.
func (s *Server) requireCompanion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.companion == nil {
			writeError(w, http.StatusServiceUnavailable, "AI companion is not configured")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) ritualHandler(w http.ResponseWriter, r *http.Request) {
	var req ritualRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ritual, err := s.companion.MorningRitual(r.Context(), req.Goal)
	switch {
	case errors.Is(err, companion.ErrEmptyGoal):
		writeError(w, http.StatusBadRequest, "Goal is required")
	case errors.Is(err, companion.ErrRitualFormat):
		writeError(w, http.StatusBadGateway, companion.RitualFormatMessage)
	case err != nil:
		slog.Error("Server.ritualHandler: ritual failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate ritual")
	default:
		writeJSONResponse(w, http.StatusOK, models.Success(ritual))
	}
}

func (s *Server) adviceHandler(w http.ResponseWriter, r *http.Request) {
	var req companion.EveningReview
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.companion.EveningAdvice(r.Context(), req)))
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.companion.Summarize(r.Context(), req.QuickDump)))
}

func (s *Server) explainHandler(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := s.companion.ExplainProtocol(r.Context(), req.ProtocolID)
	if err != nil {
		slog.Warn("Server.explainHandler: unknown protocol", "protocol_id", req.ProtocolID)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(out))
}
