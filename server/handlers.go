package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/poiesic/newsrank/indexstore"
	"github.com/poiesic/newsrank/search"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req search.Request
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, start, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	resp, err := s.engine.Search(ctx, req)
	if err != nil {
		s.writeError(w, start, statusFor(err), "search failed", err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	info, err := s.engine.Info()
	if err != nil {
		s.writeError(w, start, statusFor(err), "info unavailable", err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sources, err := s.engine.Sources()
	if err != nil {
		s.writeError(w, start, statusFor(err), "sources unavailable", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"sources": sources})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{
		"ok":     true,
		"loaded": s.engine.Loaded(),
	})
}

// statusFor maps an engine error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, search.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, indexstore.ErrNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, start time.Time, status int, message string, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error(message, "err", err)
	} else {
		s.logger.Debug(message, "err", err)
	}
	s.writeJSON(w, status, search.ErrorResponse{
		Error:   message,
		Details: err.Error(),
		TookMS:  time.Since(start).Milliseconds(),
	})
}
