package portfolio

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/rs/zerolog"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetPositions returns the active positions, heaviest first
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.service.GetPositions()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result := make([]map[string]interface{}, 0, len(positions))
	for _, pos := range positions {
		result = append(result, map[string]interface{}{
			"ticker":        pos.Ticker,
			"category":      pos.Category,
			"stage":         pos.Stage,
			"weight_pct":    pos.WeightPct,
			"entry_date":    pos.EntryDate,
			"entry_price":   pos.EntryPrice,
			"current_price": pos.CurrentPrice,
			"current_rank":  pos.CurrentRank,
			"hold_weeks":    pos.HoldWeeks,
			"region_flag":   pos.RegionFlag,
			"return_pct":    pos.Return(),
		})
	}

	// Sort by weight (descending)
	sort.Slice(result, func(i, j int) bool {
		return result[i]["weight_pct"].(float64) > result[j]["weight_pct"].(float64)
	})

	h.writeJSON(w, http.StatusOK, result)
}

// HandleGetSummary returns the aggregate portfolio view
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetSummary()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
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
