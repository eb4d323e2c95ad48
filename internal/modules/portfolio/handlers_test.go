package portfolio

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lynchbot/screener-trader/internal/modules/ledger"
)

func setupHandler(t *testing.T) *Handler {
	t.Helper()
	store := ledger.NewStore(filepath.Join(t.TempDir(), "ledger.json"), zerolog.Nop())
	require.NoError(t, store.Save(buildLedger(t)))
	service := NewService(store, zerolog.Nop())
	return NewHandler(service, zerolog.Nop())
}

func TestHandleGetPositions(t *testing.T) {
	handler := setupHandler(t)

	req := httptest.NewRequest("GET", "/api/portfolio/", nil)
	w := httptest.NewRecorder()
	handler.HandleGetPositions(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var result []map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	require.Len(t, result, 3)

	// Heaviest first
	assert.Equal(t, "AAPL", result[0]["ticker"])
	assert.Equal(t, 10.0, result[0]["weight_pct"])
	assert.InDelta(t, 10.0, result[0]["return_pct"].(float64), 1e-9)
	assert.Equal(t, "BABA", result[2]["ticker"])
}

func TestHandleGetSummary(t *testing.T) {
	handler := setupHandler(t)

	req := httptest.NewRequest("GET", "/api/portfolio/summary", nil)
	w := httptest.NewRecorder()
	handler.HandleGetSummary(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var summary Summary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))
	assert.Equal(t, 19.0, summary.InvestedWeight)
	assert.Equal(t, 3, summary.ActiveCount)
}
