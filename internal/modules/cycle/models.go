package cycle

import (
	"github.com/lynchbot/screener-trader/internal/domain"
	"github.com/lynchbot/screener-trader/internal/modules/allocate"
	"github.com/lynchbot/screener-trader/internal/modules/reconcile"
)

// Report is the full outcome of one evaluation cycle. It is returned even
// when persistence fails, so the caller can still assemble its output.
type Report struct {
	RunID          string             `json:"run_id"`
	Epoch          string             `json:"epoch"`
	Actions        []reconcile.Action `json:"actions"`
	Positions      []domain.Position  `json:"positions"`
	ReconcileStats reconcile.Stats    `json:"reconcile_stats"`
	PlanStats      allocate.Stats     `json:"plan_stats"`
	InvestedWeight float64            `json:"invested_weight"`

	// LoadRecovered marks a cycle that started from an empty portfolio
	// because the ledger file was missing or unreadable.
	LoadRecovered bool `json:"load_recovered"`

	// SaveFailed marks results that were computed but not persisted; the
	// next cycle will not see them.
	SaveFailed bool `json:"save_failed"`
}
