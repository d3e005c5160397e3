package courtwatch

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Routes returns the HTTP query surface consumed by the external
// scheduler and by operators.
func (s *Service) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/endpoints", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.Endpoints())
	})

	r.Post("/api/ingest/{endpoint}", func(w http.ResponseWriter, req *http.Request) {
		run, err := s.Ingest(req.Context(), chi.URLParam(req, "endpoint"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	// Change events: what moved between the two most recent versions.
	// A parent seen for the first time emits no new_child events; a
	// scheduler that needs first-seen parents watches /api/current.
	r.Get("/api/changes/{endpoint}", func(w http.ResponseWriter, req *http.Request) {
		events, err := s.Changes(req.Context(), chi.URLParam(req, "endpoint"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, events)
	})

	r.Get("/api/current/{endpoint}", func(w http.ResponseWriter, req *http.Request) {
		records, err := s.Current(req.Context(), chi.URLParam(req, "endpoint"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	})

	r.Get("/api/ledger", func(w http.ResponseWriter, req *http.Request) {
		entries, err := s.Ledger(req.Context(), req.URL.Query().Get("endpoint"), queryLimit(req))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	})

	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		runs, err := s.Runs(req.Context(), req.URL.Query().Get("endpoint"), queryLimit(req))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/api/stats", func(w http.ResponseWriter, req *http.Request) {
		stats, err := s.Stats(req.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	return r
}

func (s *Service) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, ErrUnknownEndpoint) {
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("api error", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func queryLimit(req *http.Request) int {
	n, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	return n
}
