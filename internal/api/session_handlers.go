package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/Parabola/internal/companion"
	"github.com/BTreeMap/Parabola/internal/models"
)

// focusView is the focus countdown snapshot plus the active preset label.
type focusView struct {
	models.CountdownState
	Label string `json:"label"`
}

// configureRequest selects a preset by name or an explicit duration.
type configureRequest struct {
	Preset       string `json:"preset,omitempty"`
	TotalSeconds int    `json:"total_seconds,omitempty"`
}

type breathStartRequest struct {
	SequenceID string `json:"sequence_id"`
}

// protocolView describes a breathing protocol for listing.
type protocolView struct {
	models.PhaseSequence
	Pattern string `json:"pattern"`
}

func (s *Server) focusView() focusView {
	s.mu.Lock()
	label := s.focusLabel
	s.mu.Unlock()
	return focusView{CountdownState: s.focus.State(), Label: label}
}

func (s *Server) focusStateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.focusView()))
}

func (s *Server) focusConfigureHandler(w http.ResponseWriter, r *http.Request) {
	var req configureRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	label, total := "custom", req.TotalSeconds
	if req.Preset != "" {
		p, err := companion.LookupPreset(req.Preset)
		if err != nil {
			slog.Warn("Server.focusConfigureHandler: unknown preset", "preset", req.Preset)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		label, total = p.Name, p.Seconds()
	}

	if err := s.focus.Configure(total); err != nil {
		slog.Warn("Server.focusConfigureHandler: rejected configuration", "error", err, "total_seconds", total)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	s.focusLabel = label
	s.focusStarted = time.Time{}
	s.mu.Unlock()
	slog.Info("Focus countdown configured", "label", label, "total_seconds", total)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Focus countdown configured", s.focusView()))
}

func (s *Server) focusStartHandler(w http.ResponseWriter, r *http.Request) {
	// s.mu serialises concurrent starts so only the run leaving Idle is stamped
	s.mu.Lock()
	fresh := s.focus.State().Status == models.CountdownIdle
	s.focus.Start()
	if fresh {
		s.focusStarted = s.clock.Now()
	}
	s.mu.Unlock()
	writeJSONResponse(w, http.StatusOK, models.Success(s.focusView()))
}

func (s *Server) focusPauseHandler(w http.ResponseWriter, r *http.Request) {
	s.focus.Pause()
	writeJSONResponse(w, http.StatusOK, models.Success(s.focusView()))
}

func (s *Server) focusResetHandler(w http.ResponseWriter, r *http.Request) {
	s.focus.Reset()
	s.mu.Lock()
	s.focusStarted = time.Time{}
	s.mu.Unlock()
	writeJSONResponse(w, http.StatusOK, models.Success(s.focusView()))
}

func (s *Server) breathStateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.breath.State()))
}

func (s *Server) breathProtocolsHandler(w http.ResponseWriter, r *http.Request) {
	seqs := s.catalog.List()
	out := make([]protocolView, 0, len(seqs))
	for _, seq := range seqs {
		out = append(out, protocolView{PhaseSequence: seq, Pattern: seq.Pattern()})
	}
	writeJSONResponse(w, http.StatusOK, models.Success(out))
}

func (s *Server) breathStartHandler(w http.ResponseWriter, r *http.Request) {
	var req breathStartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.breath.Start(req.SequenceID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrConfiguration) {
			status = http.StatusBadRequest
		}
		slog.Warn("Server.breathStartHandler: start rejected", "error", err, "sequence_id", req.SequenceID)
		writeError(w, status, err.Error())
		return
	}
	slog.Info("Breathing session started", "sequence_id", req.SequenceID)
	writeJSONResponse(w, http.StatusOK, models.Success(s.breath.State()))
}

func (s *Server) breathStopHandler(w http.ResponseWriter, r *http.Request) {
	s.breath.Stop()
	writeJSONResponse(w, http.StatusOK, models.Success(s.breath.State()))
}
