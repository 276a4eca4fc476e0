package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bobmcallan/keel/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Per-user engine surface
	mux.HandleFunc("/api/users/", s.routeUsers)
}

// routeUsers dispatches /api/users/{user}/* to the appropriate handler.
func (s *Server) routeUsers(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if path == "" {
		WriteError(w, http.StatusBadRequest, "user is required in path")
		return
	}

	parts := strings.SplitN(path, "/", 2)
	userID := parts[0]
	if userID == "" {
		WriteError(w, http.StatusBadRequest, "user is required in path")
		return
	}
	rest := ""
	if len(parts) == 2 {
		rest = parts[1]
	}

	switch rest {
	case "portfolio":
		s.handlePortfolio(w, r, userID)
	case "transactions":
		s.handleTransactions(w, r, userID)
	case "holdings/correct":
		s.handleCorrection(w, r, userID)
	case "valuation":
		s.handleValuation(w, r, userID)
	case "snapshots":
		s.handleSnapshots(w, r, userID)
	case "attribution":
		s.handleAttribution(w, r, userID)
	default:
		WriteError(w, http.StatusNotFound, "Unknown resource: "+rest)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}
