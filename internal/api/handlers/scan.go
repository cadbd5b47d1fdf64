package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/proquant/screener/internal/contracts"
	"github.com/proquant/screener/internal/engine/ranking"
	"github.com/proquant/screener/internal/marketdata"
	"github.com/proquant/screener/pkg/logger"
)

// Snapshotter serves the latest scan snapshot
type Snapshotter interface {
	Latest(ctx context.Context) (*contracts.Snapshot, error)
	Refresh(ctx context.Context) (*contracts.Snapshot, error)
}

// ScanHandler handles the screener API endpoints
// ⭐ SSOT: 스캔 API 핸들러는 이 구조체에서만
type ScanHandler struct {
	engine Snapshotter
	logger *logger.Logger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(engine Snapshotter, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		engine: engine,
		logger: log,
	}
}

// GetStocks returns the ranked stock rows, optionally filtered
// GET /api/stocks?min_score=&min_vol_ratio=&signal=&q=
func (h *ScanHandler) GetStocks(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Latest(r.Context())
	if err != nil {
		h.respondSnapshotError(w, err)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows := filter.Apply(snap.Stocks)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"taken_at": snap.TakenAt,
		"count":    len(rows),
		"stocks":   rows,
		"excluded": snap.Excluded,
	})
}

// GetSectors returns the per-sector aggregates
// GET /api/sectors
func (h *ScanHandler) GetSectors(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Latest(r.Context())
	if err != nil {
		h.respondSnapshotError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"taken_at": snap.TakenAt,
		"sectors":  snap.Sectors,
	})
}

// GetIndices returns the broad-market index quotes
// GET /api/indices
func (h *ScanHandler) GetIndices(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Latest(r.Context())
	if err != nil {
		h.respondSnapshotError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"taken_at": snap.TakenAt,
		"indices":  snap.Indices,
	})
}

// GetBreakout returns the box-breakout results for the option indices
// GET /api/breakout
func (h *ScanHandler) GetBreakout(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Latest(r.Context())
	if err != nil {
		h.respondSnapshotError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"taken_at":  snap.TakenAt,
		"breakouts": snap.Breakouts,
	})
}

// GetOverview returns a market summary: breadth, movers and indices
// GET /api/overview
func (h *ScanHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Latest(r.Context())
	if err != nil {
		h.respondSnapshotError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"taken_at":    snap.TakenAt,
		"advances":    snap.Advances(),
		"declines":    snap.Declines(),
		"top_gainers": snap.TopGainers(5),
		"top_losers":  snap.TopLosers(5),
		"indices":     snap.Indices,
		"breakouts":   snap.Breakouts,
	})
}

// Refresh forces a scan cycle outside the schedule
// POST /api/refresh
func (h *ScanHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Refresh(r.Context())
	if err != nil {
		h.respondSnapshotError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "refreshed",
		"taken_at": snap.TakenAt,
		"stocks":   len(snap.Stocks),
		"excluded": len(snap.Excluded),
	})
}

// respondSnapshotError maps engine failures to HTTP statuses
func (h *ScanHandler) respondSnapshotError(w http.ResponseWriter, err error) {
	if errors.Is(err, marketdata.ErrNoData) {
		respondError(w, http.StatusServiceUnavailable, "market data unavailable")
		return
	}

	h.logger.WithError(err).Error("Failed to serve snapshot")
	respondError(w, http.StatusInternalServerError, "Failed to retrieve snapshot")
}

// parseFilter reads the filter query parameters
func parseFilter(r *http.Request) (ranking.Filter, error) {
	var filter ranking.Filter
	q := r.URL.Query()

	if raw := q.Get("min_score"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return filter, errors.New("invalid 'min_score' (expected integer)")
		}
		filter.MinScore = v
	}

	if raw := q.Get("min_vol_ratio"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return filter, errors.New("invalid 'min_vol_ratio' (expected number)")
		}
		filter.MinVolumeRatio = v
	}

	switch signal := q.Get("signal"); signal {
	case "", "any", "bullish", "bearish", "neutral":
		filter.Signal = signal
	default:
		return filter, errors.New("invalid 'signal' (valid: any, bullish, bearish, neutral)")
	}

	filter.Symbol = q.Get("q")

	return filter, nil
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
