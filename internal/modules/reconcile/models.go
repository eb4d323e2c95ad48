package reconcile

import (
	"github.com/lynchbot/screener-trader/internal/domain"
	"github.com/lynchbot/screener-trader/internal/modules/ledger"
)

// Action is one decision taken for a ticker during a cycle
type Action struct {
	Ticker    string            `json:"ticker"`
	Kind      domain.ActionKind `json:"kind"`
	Category  domain.Category   `json:"category"`
	Stage     int               `json:"stage"`
	WeightPct float64           `json:"weight_pct"`
	Rank      int               `json:"rank"`
	Reason    string            `json:"reason"`
}

// Stats summarizes one reconciliation pass. It is returned alongside the
// actions so diagnostics stay a pure function of the inputs instead of
// accumulating in shared state.
type Stats struct {
	Advanced          int               `json:"advanced"`
	Held              int               `json:"held"`
	Watched           int               `json:"watched"`
	Sold              int               `json:"sold"`
	MissingCategories []domain.Category `json:"missing_categories,omitempty"`
}

// Result is the outcome of reconciling one ledger against one candidate set.
// Ledger is a copy; the input snapshot is never mutated.
type Result struct {
	Ledger  *ledger.Ledger
	Actions []Action
	Stats   Stats
}
