package api

import (
	"log/slog"
	"net/http"

	"github.com/BTreeMap/Parabola/internal/companion"
	"github.com/BTreeMap/Parabola/internal/models"
	"github.com/BTreeMap/Parabola/internal/store"
)

type libraryView struct {
	Protocols []companion.Protocol    `json:"protocols"`
	Insights  []companion.Insight     `json:"insights"`
	SwipeFile []companion.Quote       `json:"swipe_file"`
	Presets   []companion.FocusPreset `json:"presets"`
}

type scheduleView struct {
	Items         []companion.ScheduleItem   `json:"items"`
	MinutesByType map[companion.TaskType]int `json:"minutes_by_type"`
}

type historyView struct {
	Sessions  []models.SessionRecord  `json:"sessions"`
	Companion []models.CompanionEntry `json:"companion"`
}

func (s *Server) libraryHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(libraryView{
		Protocols: companion.KnowledgeHub,
		Insights:  companion.DefaultInsights,
		SwipeFile: companion.SwipeFile,
		Presets:   companion.FocusPresets,
	}))
}

func (s *Server) scheduleHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(scheduleView{
		Items:         companion.TodaySchedule,
		MinutesByType: companion.MinutesByType(companion.TodaySchedule),
	}))
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.st.GetSessionRecords(r.Context())
	if err != nil {
		slog.Error("Server.historyHandler: failed to load sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	entries, err := s.st.GetCompanionEntries(r.Context())
	if err != nil {
		slog.Error("Server.historyHandler: failed to load companion entries", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	if sessions == nil {
		sessions = []models.SessionRecord{}
	}
	if entries == nil {
		entries = []models.CompanionEntry{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(historyView{Sessions: sessions, Companion: entries}))
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.st.GetSessionRecords(r.Context())
	if err != nil {
		slog.Error("Server.statsHandler: failed to load sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(store.Summarize(sessions, s.clock.Now())))
}
