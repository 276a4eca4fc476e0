package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/bobmcallan/keel/internal/models"
)

// writeEngineError maps engine sentinel errors onto HTTP status codes.
// Validation failures are 400, missing things 404, rejected-but-valid
// requests 409, missing history 422, everything else 500.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidTransaction),
		errors.Is(err, models.ErrCurrencyMismatch),
		errors.Is(err, models.ErrUnsupportedCurrencyTransfer):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrUnknownAccount):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrInsufficientHoldings),
		errors.Is(err, models.ErrInsufficientFunds):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrInsufficientHistory):
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// parseTimeParam accepts RFC 3339 timestamps or bare YYYY-MM-DD dates. A
// bare date resolves to the start of that day for dayStart, or its last
// instant otherwise, so ?from=D&to=D covers the whole day D.
func parseTimeParam(value string, dayStart bool) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	day, err := time.Parse(models.SnapshotDateFormat, value)
	if err != nil {
		return time.Time{}, err
	}
	if dayStart {
		return day, nil
	}
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

// handlePortfolio handles GET /api/users/{user}/portfolio.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request, userID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	portfolio, err := s.app.LedgerService.Portfolio(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, portfolio)
}

// handleTransactions handles POST and GET /api/users/{user}/transactions.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodPost:
		var tx models.Transaction
		if !DecodeJSON(w, r, &tx) {
			return
		}
		tx.UserID = userID

		portfolio, err := s.app.LedgerService.Apply(r.Context(), &tx)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, map[string]interface{}{
			"transaction": tx,
			"portfolio":   portfolio,
		})

	case http.MethodGet:
		from, err := parseTimeParam(r.URL.Query().Get("from"), true)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid from: "+err.Error())
			return
		}
		to, err := parseTimeParam(r.URL.Query().Get("to"), false)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid to: "+err.Error())
			return
		}

		txs, err := s.app.LedgerService.Transactions(r.Context(), userID, from, to)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if txs == nil {
			txs = []models.Transaction{}
		}
		WriteJSON(w, http.StatusOK, txs)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleCorrection handles POST /api/users/{user}/holdings/correct.
func (s *Server) handleCorrection(w http.ResponseWriter, r *http.Request, userID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var correction models.Correction
	if !DecodeJSON(w, r, &correction) {
		return
	}

	tx, portfolio, err := s.app.LedgerService.Correct(r.Context(), userID, correction)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transaction": tx,
		"portfolio":   portfolio,
	})
}

// handleValuation handles GET /api/users/{user}/valuation[?refresh=true].
func (s *Server) handleValuation(w http.ResponseWriter, r *http.Request, userID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	portfolio, err := s.app.LedgerService.Portfolio(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	force := r.URL.Query().Get("refresh") == "true"
	valuation, err := s.app.ValuationService.Revalue(r.Context(), portfolio, force)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, valuation)
}

// handleSnapshots handles POST and GET /api/users/{user}/snapshots.
func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodPost:
		portfolio, err := s.app.LedgerService.Portfolio(r.Context(), userID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		valuation, err := s.app.ValuationService.Revalue(r.Context(), portfolio, false)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		snap, created, err := s.app.SnapshotService.EnsureSnapshot(r.Context(), portfolio, valuation)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		WriteJSON(w, status, snap)

	case http.MethodGet:
		snaps, err := s.app.SnapshotService.List(r.Context(), userID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if snaps == nil {
			snaps = []models.Snapshot{}
		}
		WriteJSON(w, http.StatusOK, snaps)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleAttribution handles GET /api/users/{user}/attribution?start=&end=.
func (s *Server) handleAttribution(w http.ResponseWriter, r *http.Request, userID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if start == "" || end == "" {
		WriteError(w, http.StatusBadRequest, "start and end query parameters are required (YYYY-MM-DD)")
		return
	}
	for _, d := range []string{start, end} {
		if _, err := time.Parse(models.SnapshotDateFormat, d); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid date: "+d)
			return
		}
	}

	report, err := s.app.AttributionService.Analyze(r.Context(), userID, start, end)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}
