package ledger

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles trade audit HTTP requests
type Handler struct {
	tradeLog *TradeLogRepository
	log      zerolog.Logger
}

// NewHandler creates a new trade log handler
func NewHandler(tradeLog *TradeLogRepository, log zerolog.Logger) *Handler {
	return &Handler{
		tradeLog: tradeLog,
		log:      log.With().Str("handler", "trade_log").Logger(),
	}
}

// HandleGetRecentTrades returns the most recent trade rows.
// Query param: limit (default 50).
func (h *Handler) HandleGetRecentTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	trades, err := h.tradeLog.GetRecent(limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, trades)
}

// HandleGetTradesByEpoch returns all trades recorded for one epoch
func (h *Handler) HandleGetTradesByEpoch(w http.ResponseWriter, r *http.Request) {
	epoch := chi.URLParam(r, "epoch")
	if epoch == "" {
		h.writeError(w, http.StatusBadRequest, "epoch is required")
		return
	}

	trades, err := h.tradeLog.GetByEpoch(epoch)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, trades)
}

// HandleGetLastCycle returns the most recent cycle record
func (h *Handler) HandleGetLastCycle(w http.ResponseWriter, r *http.Request) {
	record, err := h.tradeLog.GetLastCycle()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if record == nil {
		h.writeError(w, http.StatusNotFound, "no cycles recorded")
		return
	}

	h.writeJSON(w, http.StatusOK, record)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
