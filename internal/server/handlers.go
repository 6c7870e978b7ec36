package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/steward-labs/steward/internal/modules/bubble"
	"github.com/steward-labs/steward/internal/modules/regime"
)

// Trigger runs get their own deadline instead of inheriting the request
// context; the run outlives the HTTP response.
const triggeredRunTimeout = 2 * time.Hour

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "steward",
	})
}

// handleCurrentWatchlist returns the latest snapshot with its movements.
// GET /api/watchlist
func (s *Server) handleCurrentWatchlist(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.watchlist.Current()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load watchlist")
		return
	}
	if snapshot == nil {
		s.writeError(w, http.StatusNotFound, "no screening run yet")
		return
	}

	movements, err := s.watchlist.MovementsFor(snapshot.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load movements")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot":  snapshot,
		"movements": movements,
	})
}

// handleSnapshot returns one historical snapshot by run ID.
// GET /api/watchlist/snapshots/{id}
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snapshot, err := s.watchlist.SnapshotByID(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}
	if snapshot == nil {
		s.writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}

	s.writeJSON(w, http.StatusOK, snapshot)
}

// handleMovements returns the movements recorded with a snapshot.
// GET /api/watchlist/snapshots/{id}/movements
func (s *Server) handleMovements(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snapshot, err := s.watchlist.SnapshotByID(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}
	if snapshot == nil {
		s.writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}

	movements, err := s.watchlist.MovementsFor(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load movements")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot_id": id,
		"movements":   movements,
	})
}

// handleRunHistory lists recent runs, newest first.
// GET /api/watchlist/runs?limit=20
func (s *Server) handleRunHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	runs, err := s.watchlist.History(limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load run history")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs": runs,
	})
}

// handleTriggerRun starts a full screening run in the background. The
// watchlist service single-flights runs; a trigger while one is in flight,
// scheduled or manual, gets a conflict.
// POST /api/watchlist/run
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if err := s.watchlist.TriggerRun(triggeredRunTimeout); err != nil {
		s.writeError(w, http.StatusConflict, "a screening run is already in progress")
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
	})
}

// handleRegime classifies the current market regime from live signals.
// GET /api/regime
func (s *Server) handleRegime(w http.ResponseWriter, r *http.Request) {
	classification := regime.Classify(s.collector.Collect(r.Context()))
	s.writeJSON(w, http.StatusOK, classification)
}

// handleBubbleWarnings scans for overvaluation warnings. The current
// watchlist is scanned when one exists, the trending list otherwise.
// GET /api/bubble/warnings
func (s *Server) handleBubbleWarnings(w http.ResponseWriter, r *http.Request) {
	var symbols []string
	if snapshot, err := s.watchlist.Current(); err == nil && snapshot != nil {
		for i := range snapshot.Assignments {
			symbols = append(symbols, snapshot.Assignments[i].Symbol)
		}
	}

	scanned := len(symbols)
	if scanned == 0 {
		scanned = len(bubble.TrendingSymbols)
	}

	warnings := s.detector.Scan(r.Context(), symbols)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"scanned":  scanned,
		"warnings": warnings,
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
